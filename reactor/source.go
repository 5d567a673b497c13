package reactor

import "sync"

// Direction distinguishes the two waker slots a source record can hold.
type Direction uint8

const (
	// DirRead is the waker slot woken on read-readiness.
	DirRead Direction = iota
	// DirWrite is the waker slot woken on write-readiness.
	DirWrite
)

// Waker is anything that can be woken to cause its associated task to be
// re-polled. Defined here (rather than imported from package task) so the
// reactor has no dependency on the executor — only on the ability to wake
// whoever is blocked.
type Waker interface {
	Wake()
	// Same reports whether other wakes the same task as w, enabling the
	// will_wake dedup optimisation described in spec.md §9: attaching an
	// equivalent waker twice is a no-op, avoiding needless churn when a
	// task re-polls without actually changing which task is waiting.
	Same(other Waker) bool
}

// source is a per-registered-device record: a token plus the two optional
// waker slots mutated by the owning task (on block) and the reactor (on
// wake). Grounded on _examples/original_source/src/io/iosource.rs.
type source struct {
	token Token
	read  Waker
	write Waker
}

// table is the dense, token-keyed collection of source records. Tokens are
// small, reusable dense integers handed straight to the readiness
// primitive, so a free-list over a slice is used instead of a map —
// grounded on the slab::Slab used for the same purpose in
// _examples/original_source/src/io/reactor.rs, reimplemented without an
// external dependency since the standard slice + free list is equally
// O(1) and this is the only place in the module that would need it.
type table struct {
	mu    sync.Mutex
	slots []*source
	free  []uint32
}

func newTable(capacity int) *table {
	return &table{slots: make([]*source, 0, capacity)}
}

// insert reserves the next free token and installs an empty source record.
func (t *table) insert() (Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, nil)
	}
	t.slots[idx] = &source{token: Token(idx)}
	return Token(idx), nil
}

// remove deletes the record for token, returning it to the free list.
func (t *table) remove(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := uint32(tok)
	if int(idx) >= len(t.slots) || t.slots[idx] == nil {
		return false
	}
	t.slots[idx] = nil
	t.free = append(t.free, idx)
	return true
}

// attachWaker installs w in the slot for dir, applying the will_wake dedup
// optimisation: a new waker only replaces an existing one of a different
// identity.
func (t *table) attachWaker(tok Token, dir Direction, w Waker) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := uint32(tok)
	if int(idx) >= len(t.slots) || t.slots[idx] == nil {
		return ErrUnknownToken
	}
	rec := t.slots[idx]
	switch dir {
	case DirRead:
		if rec.read == nil || !rec.read.Same(w) {
			rec.read = w
		}
	case DirWrite:
		if rec.write == nil || !rec.write.Same(w) {
			rec.write = w
		}
	}
	return nil
}

// takeWakers removes and returns the wakers that should fire for the given
// readiness flags, clearing the slots so a waker is invoked at most once
// per readiness batch. A half-close wakes both directions, per spec.md §9's
// resolution of that open question.
func (t *table) takeWakers(tok Token, readable, writable, closed bool) (read, write Waker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := uint32(tok)
	if int(idx) >= len(t.slots) || t.slots[idx] == nil {
		return nil, nil
	}
	rec := t.slots[idx]
	if readable || closed {
		read = rec.read
		rec.read = nil
	}
	if writable || closed {
		write = rec.write
		rec.write = nil
	}
	return read, write
}

func (t *table) contains(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := uint32(tok)
	return int(idx) < len(t.slots) && t.slots[idx] != nil
}
