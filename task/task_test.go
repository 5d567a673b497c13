package task

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskState_PollToReady(t *testing.T) {
	var enqueued atomic.Int32
	var pending []runnable
	polls := 0
	fut := FutureFunc[int](func(w *Waker) (int, bool) {
		polls++
		if polls < 2 {
			w.Wake()
			return 0, false
		}
		return 42, true
	})

	ts := newTaskState[int](fut, func(r runnable) {
		// A real Pool only ever queues r for some worker goroutine to pick
		// up later; it never calls back into r.pollOnce() on the enqueuing
		// goroutine. Mirror that here instead of polling synchronously,
		// since pollOnce now holds t.mu for the whole Poll call, and a
		// same-goroutine reentrant poll would deadlock on that mutex.
		enqueued.Add(1)
		pending = append(pending, r)
	})

	ts.pollOnce()
	for len(pending) > 0 {
		r := pending[0]
		pending = pending[1:]
		r.pollOnce()
	}
	if v, ready := ts.result(); !ready || v != 42 {
		t.Fatalf("expected ready with value 42, got v=%d ready=%v", v, ready)
	}
	if enqueued.Load() != 1 {
		t.Fatalf("expected exactly one re-enqueue, got %d", enqueued.Load())
	}
}

func TestTaskState_WakeDedupWithinEpisode(t *testing.T) {
	var enqueues atomic.Int32
	fut := FutureFunc[int](func(w *Waker) (int, bool) {
		// Wake twice in the same poll episode; only one re-enqueue should
		// result, per spec.md §3 invariant 3.
		w.Wake()
		w.Wake()
		return 0, false
	})

	ts := newTaskState[int](fut, func(runnable) {
		enqueues.Add(1)
	})

	ts.pollOnce()
	if enqueues.Load() != 1 {
		t.Fatalf("expected 1 enqueue, got %d", enqueues.Load())
	}
}

func TestTaskState_WakeAfterReadyIsNoop(t *testing.T) {
	ts := newTaskState[int](Ready(7), func(runnable) {
		t.Fatalf("a completed task must never be re-enqueued")
	})
	ts.pollOnce()
	ts.waker().Wake()
	if v, ready := ts.result(); !ready || v != 7 {
		t.Fatalf("expected ready 7, got v=%d ready=%v", v, ready)
	}
}

func TestTaskState_Drop_WakesObserver(t *testing.T) {
	ts := newTaskState[int](FutureFunc[int](func(*Waker) (int, bool) {
		return 0, false
	}), func(runnable) {})

	woke := make(chan struct{}, 1)
	obs := &recordingWakeable{fn: func() { woke <- struct{}{} }}
	ts.setObserver(&Waker{target: obs})

	ts.drop()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("observer was not woken on drop")
	}
	if _, ready := ts.result(); !ready {
		t.Fatal("dropped task must report ready")
	}
}

func TestWaker_SameIdentity(t *testing.T) {
	ts1 := newTaskState[int](Ready(0), func(runnable) {})
	ts2 := newTaskState[int](Ready(0), func(runnable) {})

	w1a := ts1.waker()
	w1b := ts1.waker()
	w2 := ts2.waker()

	if !w1a.Same(w1b) {
		t.Fatal("two wakers for the same task must compare equal")
	}
	if w1a.Same(w2) {
		t.Fatal("wakers for different tasks must not compare equal")
	}
}

type recordingWakeable struct {
	fn func()
}

func (r *recordingWakeable) identity() uintptr { return uintptrOf(r) }
func (r *recordingWakeable) wake()             { r.fn() }
