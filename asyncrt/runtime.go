// Package asyncrt is the process-wide async runtime: it owns the single
// Reactor and worker Pool, and is the entry point spawned tasks and
// registered I/O sources go through.
//
// Grounded on _examples/original_source/src/runtime/runtime.rs's Runtime:
// a OnceCell-backed global holding a Reactor and a ThreadPool, with
// build/get/init/spawn/register/reregister as its public surface. The task
// channel and Arc<Task>/ArcWake machinery that file also defines live
// instead in package task, since that part of the design is reused by
// every executor-adjacent package, not just this singleton.
package asyncrt

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-asyncrt/internal/rlog"
	"github.com/joeycumines/go-asyncrt/reactor"
	"github.com/joeycumines/go-asyncrt/task"
)

// Runtime is the process's async runtime: a reactor plus a worker pool.
// Exactly one is meant to exist per process (spec.md §3 invariant 1); that
// discipline is enforced here, not by the type itself, so tests can still
// construct private Runtimes when they need isolation.
type Runtime struct {
	reactor *reactor.Reactor
	pool    *task.Pool
	log     *rlog.Logger

	// started guards against calling Init twice; done is set just before
	// Init returns, and is what Spawn checks to reject a task submitted
	// after nothing is left to drive the queue.
	started atomic.Bool
	done    atomic.Bool
}

var (
	globalMu  sync.Mutex
	global    *Runtime
	globalSet bool
)

// Build constructs the process singleton with n workers. Calling Build a
// second time returns ErrRuntimeAlreadyBuilt; use Current/MustCurrent to
// retrieve the existing one.
func Build(n int) (*Runtime, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalSet {
		return nil, ErrRuntimeAlreadyBuilt
	}

	r, err := reactor.New()
	if err != nil {
		return nil, err
	}
	pool, err := task.NewPool(n)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{reactor: r, pool: pool, log: rlog.Get()}
	global = rt
	globalSet = true
	return rt, nil
}

// Current returns the process singleton, or ErrNoRuntime if Build has not
// been called yet.
func Current() (*Runtime, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if !globalSet {
		return nil, ErrNoRuntime
	}
	return global, nil
}

// MustCurrent returns the process singleton, panicking if absent. For call
// sites with no error path back to their caller (constructors used purely
// for convenience, like stream dialing helpers written against the global
// runtime instead of an explicit Runtime).
func MustCurrent() *Runtime {
	rt, err := Current()
	if err != nil {
		panic(err)
	}
	return rt
}

// resetForTest tears down the global singleton. Test-only; never exported.
func resetForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
	globalSet = false
}

// Init seeds the runtime with the top-level future f, then runs the
// reactor loop and drains the task queue until f completes or ctx is
// cancelled. Init must be called at most once per Runtime; a second call
// returns ErrAlreadyInitialized. Spawn after Init has returned is rejected
// for the same reason spec.md §8 calls out: there is no longer anyone
// driving the task queue.
func (rt *Runtime) Init(ctx context.Context, f task.Future[struct{}]) error {
	if rt.started.Swap(true) {
		return ErrAlreadyInitialized
	}
	defer rt.done.Store(true)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reactorErr := make(chan error, 1)
	go func() { reactorErr <- rt.reactor.Run(runCtx) }()

	h, err := task.Spawn(rt.pool, f)
	if err != nil {
		cancel()
		return err
	}

	_, err = task.Await(runCtx, h)
	cancel()

	if rerr := <-reactorErr; rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Spawn submits f as a new task, returning a Handle observing its result.
// Rejected with ErrAlreadyInitialized once Init has returned, per spec.md
// §8 — there is nothing left driving the task queue at that point.
func Spawn[T any](rt *Runtime, f task.Future[T]) (*task.Handle[T], error) {
	if rt.done.Load() {
		return nil, ErrAlreadyInitialized
	}
	return task.Spawn(rt.pool, f)
}

// Register registers src with the runtime's reactor.
func (rt *Runtime) Register(src reactor.Source, interests reactor.Interests) (reactor.Token, error) {
	return rt.reactor.Register(src, interests)
}

// Reregister updates the interest set for an already-registered token.
func (rt *Runtime) Reregister(token reactor.Token, interests reactor.Interests) error {
	return rt.reactor.Reregister(token, interests)
}

// Deregister removes a token from the runtime's reactor.
func (rt *Runtime) Deregister(token reactor.Token) error {
	return rt.reactor.Deregister(token)
}

// AttachWaker installs w in the read or write slot for token.
func (rt *Runtime) AttachWaker(token reactor.Token, dir reactor.Direction, w reactor.Waker) error {
	return rt.reactor.AttachWaker(token, dir, w)
}

// Handle returns the reactor.Handle for this runtime, the narrow surface
// packages like stream need without depending on *Runtime directly.
func (rt *Runtime) Handle() reactor.Handle { return rt.reactor.Handle() }

// Close shuts the runtime's reactor and worker pool down. Safe to call
// once Init has returned.
func (rt *Runtime) Close() error {
	rt.pool.Close()
	return rt.reactor.Close()
}
