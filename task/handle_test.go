package task

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestSpawnAndAwait(t *testing.T) {
	p, err := NewPool(2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	h, err := Spawn(p, Ready(123))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	v, err := Await(context.Background(), h)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != 123 {
		t.Fatalf("expected 123, got %d", v)
	}
}

// TestAwaitAfterCompletion exercises spec.md §8 scenario 6: awaiting a
// handle long after the task finished must resolve immediately, without
// scheduling a fresh poll.
func TestAwaitAfterCompletion(t *testing.T) {
	p, err := NewPool(1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	h, err := Spawn(p, Ready("done"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	// Give the single poll a moment to actually land before the long wait.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	v, err := Await(context.Background(), h)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if v != "done" {
		t.Fatalf("expected %q, got %q", "done", v)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("await after completion should be near-instant, took %v", elapsed)
	}
}

// TestHandleCancelledOnTaskDrop exercises spec.md §8 scenario 5 from the
// handle's point of view: once the underlying task is collected (here,
// forced via an explicit drop rather than GC, since weak.Pointer liveness
// is not under this test's control), awaiting its handle observes
// ErrTaskCancelled instead of hanging.
func TestHandleCancelledOnTaskDrop(t *testing.T) {
	p, err := NewPool(1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Close()

	blocked := make(chan *Waker, 1)
	fut := FutureFunc[int](func(w *Waker) (int, bool) {
		select {
		case blocked <- w:
		default:
		}
		return 0, false
	})

	ts := newTaskState(fut, func(r runnable) { p.Distribute(r) })
	h := newHandle(ts)
	if err := p.Distribute(ts); err != nil {
		t.Fatalf("Distribute: %v", err)
	}

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("task never polled")
	}

	ts.drop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = Await(ctx, h)
	if !errors.Is(err, ErrTaskCancelled) {
		t.Fatalf("expected ErrTaskCancelled, got %v", err)
	}
}

// TestHandleCancelledOnGC exercises the weak-reference half of spec.md
// §4.5: once nothing strong-references the task anymore, a Handle
// observes ErrTaskCancelled rather than blocking forever.
func TestHandleCancelledOnGC(t *testing.T) {
	fut := FutureFunc[int](func(*Waker) (int, bool) { return 0, false })
	ts := newTaskState(fut, func(runnable) {})
	h := newHandle(ts)
	ts = nil //nolint:ineffassign // drop the only strong reference

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runtime.GC()
		if _, ready := h.Poll(&Waker{}); ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("handle never observed cancellation after the task was collected")
}
