package task

import "sync"

// inbox is a worker's unbounded inbound queue. spec.md §3/§4.4 calls for an
// unbounded single-producer-many-producer/single-consumer queue per worker;
// the teacher's eventloop.ChunkedIngress is the closest on-domain analogue
// but is documented there as requiring external synchronisation for a
// single-threaded microtask loop, not a blocking cross-goroutine consumer,
// so it is not reused directly. This is the plain, correct alternative: a
// mutex-guarded growable slice paired with a capacity-1 signal channel used
// to wake a blocked consumer, the same "signal channel as semaphore" idiom
// the teacher's poller wake-fd is built on, just in pure Go.
type inbox struct {
	mu     sync.Mutex
	items  []runnable
	signal chan struct{}
	closed bool
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

// send enqueues r. It fails with errInboxClosed once the inbox has been
// retired by the pool (the owning worker panicked and is being recreated).
func (b *inbox) send(r runnable) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errInboxClosed
	}
	b.items = append(b.items, r)
	b.mu.Unlock()
	b.notify()
	return nil
}

func (b *inbox) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// recv blocks until an item is available or the inbox is closed, returning
// ok=false in the latter case.
func (b *inbox) recv() (runnable, bool) {
	for {
		if r, ok := b.tryRecv(); ok {
			return r, true
		}
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil, false
		}
		<-b.signal
	}
}

// tryRecv pops one item without blocking.
func (b *inbox) tryRecv() (runnable, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return nil, false
	}
	r := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return r, true
}

// close retires the inbox: no further sends are accepted, and a blocked
// recv wakes up and returns ok=false. Items already queued remain available
// to drain via tryRecv, for the pool to cancel on the caller's behalf.
func (b *inbox) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.notify()
}
