// Package poller is the readiness-notification primitive the reactor is
// built on: an epoll (linux) or kqueue (darwin) wrapper that reports
// readiness against dense integer tokens, and nothing else. It has no
// notion of tasks, wakers, or futures — that belongs to package reactor.
package poller

import "errors"

// Interest is the set of readiness conditions a registration subscribes to.
type Interest uint8

const (
	// Readable subscribes to read-readiness.
	Readable Interest = 1 << iota
	// Writable subscribes to write-readiness.
	Writable
)

// Event is one readiness notification, reported against the token supplied
// at registration time.
type Event struct {
	Token    uint64
	Readable bool
	Writable bool
	// Closed indicates a hangup or error condition; both directions should
	// be treated as ready so the next read/write surfaces the real error.
	Closed bool
}

// Standard errors returned by a Poller implementation.
var (
	ErrClosed            = errors.New("poller: closed")
	ErrAlreadyRegistered = errors.New("poller: fd already registered")
	ErrNotRegistered     = errors.New("poller: fd not registered")
)

// maxBatch bounds how many events a single Wait call can report; large
// enough that a batch rarely spans more than one syscall's worth of work.
const maxBatch = 256
