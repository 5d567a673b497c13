package task

import "errors"

var (
	// errInboxClosed is internal: Pool.Distribute translates it into
	// ErrPoolDispatchFailed after a single retry against the replacement
	// worker.
	errInboxClosed = errors.New("task: worker inbox closed")

	// ErrInvalidWorkerCount is returned by NewPool for n <= 0.
	ErrInvalidWorkerCount = errors.New("task: worker count must be positive")

	// ErrTooManyWorkers is returned by NewPool for n > runtime.NumCPU(),
	// the ok_thread_amount assertion from spec.md §4.4.
	ErrTooManyWorkers = errors.New("task: worker count exceeds hardware parallelism")

	// ErrPoolDispatchFailed is returned by Pool.Distribute when a task
	// could not be handed to any worker, even after the panic-recovery
	// retry.
	ErrPoolDispatchFailed = errors.New("task: dispatch failed")

	// ErrTaskCancelled is the error a Handle observes in place of a value
	// when the underlying task was dropped (by a panicked, un-recreated
	// worker, or by runtime shutdown) before it ever completed — the Go
	// stand-in for spec.md §4.5's "sentinel cancelled value", chosen over
	// a zero-value sentinel since it composes with any T via an explicit
	// error return instead of requiring a magic value of the result type.
	ErrTaskCancelled = errors.New("task: cancelled before completion")
)
