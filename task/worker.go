package task

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-asyncrt/internal/rlog"
)

// worker is one goroutine in a Pool, together with its inbound queue and
// service counters. Grounded on
// _examples/original_source/src/runtime/worker_thread.rs's WorkerThread: a
// named OS thread with an mpsc receiver and a served-task counter there; a
// named goroutine with an inbox and the same counter here.
type worker struct {
	id   int
	name string
	in   *inbox
	pool *Pool

	// sent is every task ever handed to this worker; served is every task
	// this worker has finished polling once (not necessarily completed —
	// "served" means "given one poll step", matching the Rust field's use
	// as a load counter, not a completion counter). Both only grow for the
	// life of this worker; a worker recreated after a panic is a new worker
	// value, so its counters start again from zero.
	sent  atomic.Int64
	served atomic.Int64
}

func (w *worker) depth() int64 { return w.sent.Load() - w.served.Load() }

// run is the worker goroutine body: dequeue, poll once, repeat, until the
// inbox is closed (pool shutdown or this worker being recreated after a
// panic).
func (w *worker) run() {
	log := rlog.Get()
	log.Debug().Str("worker", w.name).Log("worker starting")
	for {
		r, ok := w.in.recv()
		if !ok {
			log.Debug().Str("worker", w.name).Log("worker stopping")
			return
		}
		w.runOne(r)
	}
}

// runOne polls r exactly once, recovering a panic the same way
// _examples/original_source's worker thread catches a panicking poll: the
// offending task is cancelled (its handle observes completion rather than
// hanging forever) and the worker is recreated under the same name, per
// spec.md §4.4.
func (w *worker) runOne(r runnable) {
	defer func() {
		w.served.Add(1)
		if rec := recover(); rec != nil {
			r.cancel()
			w.pool.recreate(w.id, rec)
		}
	}()
	r.pollOnce()
}

func workerName(id int) string { return fmt.Sprintf("worker-%d", id) }
