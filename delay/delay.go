// Package delay implements a Future that completes after a fixed duration.
//
// Grounded on _examples/original_source/src/delay_future.rs's Delay, with
// one deliberate change: the original's poll method busy-spins, waking
// itself unconditionally whenever it is not yet ready, relying on the
// caller to repoll promptly. That is a fine fit for the original's
// single-threaded, synchronous executor but would pin a worker goroutine
// here, so this version arms a time.Timer on first poll and only wakes the
// waiter once the timer actually fires — a timer-goroutine, not a
// reactor-registered, future, per spec.md's core explicitly treating a
// timer wheel as a non-goal.
package delay

import (
	"sync"
	"time"

	"github.com/joeycumines/go-asyncrt/task"
)

// Delay is a Future that becomes ready once d has elapsed since the first
// poll.
type Delay struct {
	mu      sync.Mutex
	d       time.Duration
	timer   *time.Timer
	fired   bool
	started bool
}

// New returns a Delay that resolves after d.
func New(d time.Duration) *Delay {
	return &Delay{d: d}
}

// Future adapts d to task.Future[struct{}].
func (d *Delay) Future() task.Future[struct{}] {
	return task.FutureFunc[struct{}](d.poll)
}

func (d *Delay) poll(w *task.Waker) (struct{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fired {
		return struct{}{}, true
	}
	if !d.started {
		d.started = true
		d.timer = time.AfterFunc(d.d, func() {
			d.mu.Lock()
			d.fired = true
			d.mu.Unlock()
			w.Wake()
		})
	}
	return struct{}{}, false
}

// Stop releases the underlying timer, if one was started. It does not
// cause an in-flight poll's waker to be invoked.
func (d *Delay) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// After is a convenience wrapping New(d).Future() for one-shot use.
func After(d time.Duration) task.Future[struct{}] {
	return New(d).Future()
}
