// Package task implements the executor half of the runtime: the
// suspendable-computation representation (Future), its waker, the
// goroutine worker pool that polls tasks to completion, and the handle an
// external caller uses to observe a spawned task's result.
//
// Grounded throughout on _examples/original_source's Future/Task/Waker
// trio — this module is, at its core, a Go port of that Rust runtime's
// poll-based execution model, using an interface-with-a-Poll-method in
// place of Rust's Future trait, the idiomatic Go equivalent since the
// language has no async/await.
package task

// Future is a suspendable computation producing a value of type T. Poll is
// called by a worker goroutine; it must return promptly — a Future that
// blocks the calling goroutine defeats the entire point of this package.
//
// Contract (spec.md §3/§4.3): if Poll returns ready=false (pending), it
// must arrange for w.Wake to be called exactly when it becomes worth
// re-polling — typically by handing w to a reactor-backed operation via
// AttachWaker. Calling w.Wake spuriously is harmless (a re-poll of a
// pending future is just another poll), calling it too rarely stalls the
// task.
type Future[T any] interface {
	Poll(w *Waker) (value T, ready bool)
}

// FutureFunc adapts a plain function to the Future interface, the same
// convenience shape the teacher's options.go functions use for wrapping a
// closure behind a named type.
type FutureFunc[T any] func(w *Waker) (T, bool)

// Poll implements Future.
func (f FutureFunc[T]) Poll(w *Waker) (T, bool) { return f(w) }

// Ready returns a Future that is immediately ready with value v — useful
// in tests and as a building block for combinators.
func Ready[T any](v T) Future[T] {
	return FutureFunc[T](func(*Waker) (T, bool) { return v, true })
}
