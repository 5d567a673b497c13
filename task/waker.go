package task

import "github.com/joeycumines/go-asyncrt/reactor"

// wakeable is implemented by *taskState[T] for every T; it is the
// type-erased half of a Waker, letting the reactor hold a waker without
// knowing the task's result type.
type wakeable interface {
	wake()
	identity() uintptr
}

// Waker is a handle that, when woken, causes its associated task to be
// re-polled. It implements reactor.Waker so it can be installed directly
// into the I/O source table via Reactor.AttachWaker.
//
// Grounded on _examples/original_source's ArcWake implementation for Task,
// and on ArcWake::wake_by_ref specifically — Waker.Wake here is always the
// "by reference" form, since Go has no move semantics to distinguish a
// consuming wake from a borrowing one.
type Waker struct {
	target wakeable
}

// Wake enqueues the associated task for re-polling, unless it has already
// been enqueued for this wake episode (spec.md §3 invariant 3) or has
// already completed (spec.md §3 invariant 6 — waking a finished task is a
// harmless no-op).
func (w *Waker) Wake() {
	if w == nil || w.target == nil {
		return
	}
	w.target.wake()
}

// Same implements the will_wake dedup optimisation (spec.md §9): it
// reports whether other refers to the same task as w, so a source record
// can skip replacing its stored waker when a task re-polls without handing
// back a logically different waker.
func (w *Waker) Same(other reactor.Waker) bool {
	if w == nil || w.target == nil {
		return false
	}
	o, ok := other.(*Waker)
	if !ok || o == nil || o.target == nil {
		return false
	}
	return w.target.identity() == o.target.identity()
}

var _ reactor.Waker = (*Waker)(nil)

// funcWakeable adapts a plain function to wakeable, giving callers outside
// this package (tests, such as package delay's, which poll a Future with no
// task of its own) a Waker without needing access to taskState.
type funcWakeable struct {
	fn func()
}

func (f *funcWakeable) identity() uintptr { return uintptrOf(f) }
func (f *funcWakeable) wake()             { f.fn() }

// NewFuncWaker returns a Waker that invokes fn when woken. Each call
// returns a distinct identity, so two func wakers are never considered
// "the same task" by Same.
func NewFuncWaker(fn func()) *Waker {
	return &Waker{target: &funcWakeable{fn: fn}}
}
