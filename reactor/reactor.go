// Package reactor owns the I/O source table and the readiness-polling loop
// described in spec.md §4.1: it registers sources with the OS readiness
// primitive (internal/poller), and maps readiness events back to the waker
// of whichever task is blocked on that source.
package reactor

import (
	"context"
	"sync/atomic"

	"github.com/joeycumines/go-asyncrt/internal/poller"
	"github.com/joeycumines/go-asyncrt/internal/rlog"
)

// Token is a dense integer identifier for a registered source, handed
// straight to the readiness primitive.
type Token uint64

// Interests is the set {readable, writable} a source currently subscribes
// to. Re-exported from internal/poller so callers never need to import it
// directly.
type Interests = poller.Interest

const (
	// Readable subscribes to read-readiness.
	Readable = poller.Readable
	// Writable subscribes to write-readiness.
	Writable = poller.Writable
)

// Source is anything that can be registered with the reactor: an object
// exposing the raw OS file descriptor the readiness primitive should watch.
type Source interface {
	Fd() int
}

// Handle is a shared, cheaply clonable reference to the reactor's
// registration surface, distributed to every stream that registers or
// re-registers itself. Copying a Handle is copying a pointer.
type Handle struct {
	r *Reactor
}

// Register is a convenience forwarding to the owning Reactor.
func (h Handle) Register(src Source, interests Interests) (Token, error) {
	return h.r.Register(src, interests)
}

// Reregister is a convenience forwarding to the owning Reactor.
func (h Handle) Reregister(token Token, interests Interests) error {
	return h.r.Reregister(token, interests)
}

// Deregister is a convenience forwarding to the owning Reactor.
func (h Handle) Deregister(token Token) error {
	return h.r.Deregister(token)
}

// AttachWaker is a convenience forwarding to the owning Reactor.
func (h Handle) AttachWaker(token Token, dir Direction, w Waker) error {
	return h.r.AttachWaker(token, dir, w)
}

// Reactor owns the OS-level readiness primitive and dispatches wakeups.
// Per spec.md §3 invariant 1, exactly one Reactor is meant to exist per
// process, but the type itself does not enforce that — the singleton
// discipline lives in the root asyncrt package, same separation of
// concerns as _examples/original_source's Reactor vs Runtime.
type Reactor struct {
	poller *poller.Poller
	table  *table
	log    *rlog.Logger
	closed atomic.Bool
}

// New constructs a Reactor backed by a fresh readiness primitive.
func New() (*Reactor, error) {
	p, err := poller.New()
	if err != nil {
		return nil, err
	}
	return &Reactor{
		poller: p,
		table:  newTable(1024),
		log:    rlog.Get(),
	}, nil
}

// Handle returns a cheaply-clonable reference to this reactor's
// registration surface.
func (r *Reactor) Handle() Handle { return Handle{r: r} }

// Register assigns src a fresh token, subscribes it with the readiness
// primitive for interests, and inserts an empty source record.
func (r *Reactor) Register(src Source, interests Interests) (Token, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	tok, err := r.table.insert()
	if err != nil {
		return 0, err
	}

	if err := r.poller.Register(src.Fd(), uint64(tok), interests); err != nil {
		r.table.remove(tok)
		if err == poller.ErrAlreadyRegistered {
			return 0, ErrAlreadyRegistered
		}
		return 0, err
	}

	return tok, nil
}

// Reregister updates the interest set for an already-registered token.
func (r *Reactor) Reregister(token Token, interests Interests) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if !r.table.contains(token) {
		return ErrUnknownToken
	}
	if err := r.poller.Reregister(uint64(token), interests); err != nil {
		if err == poller.ErrNotRegistered {
			return ErrUnknownToken
		}
		return err
	}
	return nil
}

// Deregister removes token from both the readiness primitive and the
// source table. The token may be reassigned to a future registration, per
// spec.md §8's round-trip law.
func (r *Reactor) Deregister(token Token) error {
	if r.closed.Load() {
		return ErrClosed
	}
	_ = r.poller.Deregister(uint64(token))
	if !r.table.remove(token) {
		return ErrUnknownToken
	}
	return nil
}

// AttachWaker installs w in the read or write slot for token, applying the
// will_wake dedup optimisation described in spec.md §4.1.
func (r *Reactor) AttachWaker(token Token, dir Direction, w Waker) error {
	return r.table.attachWaker(token, dir, w)
}

// Run is the reactor loop: it blocks on the readiness primitive with no
// deadline and, for each returned event, wakes the read and/or write waker
// installed for that event's token. It returns when ctx is cancelled or
// Close is called; any other failure from the readiness primitive is
// fatal, per spec.md §4.1, and is returned wrapped in ErrReactorFatal.
func (r *Reactor) Run(ctx context.Context) error {
	done := ctx.Done()
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-done:
		case <-stopCh:
			return
		}
		r.closed.Store(true)
		_ = r.poller.Wake()
	}()
	defer close(stopCh)

	var buf []poller.Event
	for {
		events, err := r.poller.Wait(-1, buf)
		if err != nil {
			if r.closed.Load() {
				// Close raced with (or preceded) Wait; the readiness
				// primitive was torn down deliberately, not fatally.
				return nil
			}
			r.log.Err().Err(err).Log("reactor: readiness primitive failed fatally")
			return errWrap(ErrReactorFatal, err)
		}
		buf = events

		if r.closed.Load() && len(events) == 0 {
			return nil
		}

		for _, ev := range events {
			tok := Token(ev.Token)
			read, write := r.table.takeWakers(tok, ev.Readable, ev.Writable, ev.Closed)
			if read != nil {
				read.Wake()
			}
			if write != nil {
				write.Wake()
			}
		}

		select {
		case <-done:
			r.closed.Store(true)
		default:
		}
	}
}

// Close shuts the reactor down: it stops accepting new registrations and
// interrupts a blocked Run call. Safe to call more than once.
func (r *Reactor) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	_ = r.poller.Wake()
	return r.poller.Close()
}

func errWrap(sentinel, cause error) error {
	return &wrappedError{sentinel: sentinel, cause: cause}
}

type wrappedError struct {
	sentinel error
	cause    error
}

func (e *wrappedError) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }
func (e *wrappedError) Unwrap() []error {
	return []error{e.sentinel, e.cause}
}
