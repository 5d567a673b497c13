package task

import (
	"sync"
	"sync/atomic"
)

// runnable is the type-erased view of a taskState[T] a worker needs: just
// enough to drive one poll step. Keeping this non-generic is what lets a
// single worker's inbound queue carry tasks of differing result types,
// mirroring the trait-object erasure (FutureTaskTrait) in
// _examples/original_source/src/runtime/runtime.rs.
type runnable interface {
	pollOnce()
	// cancel forces the task to Ready without polling it again, waking any
	// observer. Used when a task is orphaned by a panicked worker.
	cancel()
}

// taskState is the heap-resident record for one in-flight computation,
// per spec.md §3. It is always held behind a pointer; the pool holds that
// pointer in a worker's inbox (a strong reference — per spec.md the pool
// "holds a strong reference while the task is queued or in flight"), a
// Handle holds a weak.Pointer to it.
type taskState[T any] struct {
	// mu is held for the entire duration of a Poll call (pollOnce), not
	// just around the fut pointer copy: spec.md §9's mutex design requires
	// that Poll itself never run concurrently with another Poll of the
	// same future, so the lock has to span the call, not merely protect
	// the field read. A second worker whose wake races in mid-poll blocks
	// on this mutex in its own pollOnce rather than dispatching a
	// concurrent Poll; it proceeds with a fresh poll once the first
	// returns, which is a serialised re-poll, not a dropped one.
	mu    sync.Mutex
	fut   Future[T]
	ready atomic.Bool
	value T

	// queued is the wake-episode dedup flag: a task is enqueued by its own
	// waker at most once between polls (spec.md §3 invariant 3).
	queued atomic.Bool

	// enqueue resubmits the task to its worker pool; set once, at spawn
	// time, and never changed — this is the cyclic task->pool reference
	// from spec.md §9, broken naturally once the task stops being
	// resubmitted (there is no explicit teardown needed).
	enqueue func(runnable)

	// obsMu guards observer, the waker of whoever is awaiting this task's
	// completion via a Handle.
	obsMu    sync.Mutex
	observer *Waker

	// dropped is set by drop(), forcing ready=true for a task nobody will
	// ever poll again (spec.md §4.3 "a dropped task forces an immediate
	// transition to Ready").
	dropped atomic.Bool
}

func newTaskState[T any](fut Future[T], enqueue func(runnable)) *taskState[T] {
	return &taskState[T]{fut: fut, enqueue: enqueue}
}

// waker returns the Waker a poll step should hand to the future.
func (t *taskState[T]) waker() *Waker { return &Waker{target: t} }

// identity implements wakeable: task identity is the taskState's own
// address, which is stable for the task's lifetime.
func (t *taskState[T]) identity() uintptr {
	// #nosec G103 -- used only for equality comparison (will_wake), never dereferenced.
	return uintptrOf(t)
}

// wake implements wakeable. It resubmits the task through enqueue (which
// hands it to the pool's worker selection again, not necessarily to the
// worker that polled it last) unless the task is already queued for this
// wake episode or has already completed.
func (t *taskState[T]) wake() {
	if t.ready.Load() {
		return
	}
	if t.queued.CompareAndSwap(false, true) {
		t.enqueue(t)
	}
}

// pollOnce implements runnable. Ordinarily it is called by exactly one
// worker goroutine at a time (spec.md §4.3's serialisation contract,
// following from the pool only ever enqueueing a task via its own waker
// and each dequeue consuming exactly one enqueue); mu is the backstop for
// the one case that contract alone doesn't rule out -- a wake racing in
// while a Poll call is still executing, dispatching this same task to a
// second worker before the first call returns.
func (t *taskState[T]) pollOnce() {
	if t.ready.Load() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the lock: a concurrent pollOnce (blocked on mu while
	// this one ran) may have already driven the future to completion by
	// the time this call gets the lock.
	if t.ready.Load() {
		return
	}

	// Clear the dedup flag before polling: any wake that arrives during
	// this poll (including one the poll itself triggers by re-arming I/O)
	// must schedule a fresh re-poll, not be swallowed by a flag this very
	// call is about to observe as already-set. That re-poll cannot race
	// this one, though -- it has to go through pollOnce on some worker,
	// which blocks on mu until this call returns, so it only ever sees a
	// consistent post-Poll state.
	t.queued.Store(false)

	fut := t.fut
	if fut == nil {
		return
	}

	value, ready := fut.Poll(t.waker())
	if !ready {
		return
	}

	t.value = value
	t.fut = nil
	t.ready.Store(true)

	t.wakeObserver()
}

// result returns the task's output and whether it is ready yet.
func (t *taskState[T]) result() (T, bool) {
	if !t.ready.Load() {
		var zero T
		return zero, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, true
}

// setObserver installs w as the waker to invoke on completion, applying
// the same will_wake dedup as the I/O source table.
func (t *taskState[T]) setObserver(w *Waker) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	if t.observer == nil || !t.observer.Same(w) {
		t.observer = w
	}
}

func (t *taskState[T]) wakeObserver() {
	t.obsMu.Lock()
	w := t.observer
	t.obsMu.Unlock()
	if w != nil {
		w.Wake()
	}
}

// drop forces the task to Ready (spec.md §4.3), waking any observer. This
// is how an await on a task that will never again be polled (runtime
// shutdown, a panicked worker that was not recreated in time) makes
// progress, per spec.md §3 invariant 6.
func (t *taskState[T]) drop() {
	if t.dropped.Swap(true) {
		return
	}
	if !t.ready.Swap(true) {
		t.wakeObserver()
	}
}

// cancel implements runnable; it is exactly drop, named to match the call
// sites that orphan a queued-but-never-polled task.
func (t *taskState[T]) cancel() { t.drop() }
