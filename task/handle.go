package task

import (
	"context"
	"weak"
)

// Result is what a Handle resolves to: either the task's value, or
// ErrTaskCancelled if the task was dropped before completing.
type Result[T any] struct {
	Value T
	Err   error
}

// Handle observes a spawned task's eventual result without keeping it
// alive: it holds a weak.Pointer, not a strong reference, per spec.md
// §4.5 — grounded on
// _examples/joeycumines-go-utilpkg/eventloop/registry.go's use of
// weak.Pointer[promise] for the equivalent purpose, and on
// _examples/original_source's TaskHandle, which likewise only borrows the
// task.
type Handle[T any] struct {
	ref weak.Pointer[taskState[T]]
}

func newHandle[T any](t *taskState[T]) *Handle[T] {
	return &Handle[T]{ref: weak.Make(t)}
}

// Poll implements Future[Result[T]]: it is ready as soon as the task
// completes or is cancelled, and never blocks.
func (h *Handle[T]) Poll(w *Waker) (Result[T], bool) {
	t := h.ref.Value()
	if t == nil {
		return Result[T]{Err: ErrTaskCancelled}, true
	}
	if v, ready := t.result(); ready {
		return h.resultOf(t, v)
	}

	t.setObserver(w)

	// The task may have completed between the check above and
	// setObserver installing our waker; re-check to close that race
	// rather than relying on the observer wake alone.
	if v, ready := t.result(); ready {
		return h.resultOf(t, v)
	}

	var zero Result[T]
	return zero, false
}

func (h *Handle[T]) resultOf(t *taskState[T], v T) (Result[T], bool) {
	if t.dropped.Load() {
		return Result[T]{Err: ErrTaskCancelled}, true
	}
	return Result[T]{Value: v}, true
}

// Await blocks the calling goroutine until h resolves or ctx is done. It is
// meant for callers outside the executor itself (top-level application
// code, tests) — code running inside a task's own Poll must never call
// this, since it would block a worker goroutine.
func Await[T any](ctx context.Context, h *Handle[T]) (T, error) {
	done := make(chan Result[T], 1)
	w := &Waker{target: &channelWake[T]{h: h, done: done}}

	if res, ready := h.Poll(w); ready {
		return res.Value, res.Err
	}

	select {
	case res := <-done:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// channelWake is a wakeable that re-polls h and publishes the result on a
// channel, letting Await block on a channel receive instead of busy-polling.
type channelWake[T any] struct {
	h    *Handle[T]
	done chan Result[T]
}

func (c *channelWake[T]) identity() uintptr { return uintptrOf(c) }

func (c *channelWake[T]) wake() {
	if res, ready := c.h.Poll(&Waker{target: c}); ready {
		select {
		case c.done <- res:
		default:
		}
	}
}
