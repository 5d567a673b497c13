package reactor

import "errors"

// Error taxonomy for the reactor, per spec.md §7.
var (
	// ErrAlreadyRegistered is returned by Register when the caller supplies
	// a source that already has a token.
	ErrAlreadyRegistered = errors.New("reactor: source already registered")
	// ErrResourceExhausted reports that there is no room for another
	// registration. Register does not return it: the source table grows as
	// needed, and errors from the readiness primitive are returned as they
	// are.
	ErrResourceExhausted = errors.New("reactor: resource exhausted")
	// ErrUnknownToken is returned by Reregister and AttachWaker when no
	// record exists for the given token.
	ErrUnknownToken = errors.New("reactor: unknown token")
	// ErrReactorFatal wraps an unrecoverable error from the readiness
	// primitive; per spec.md §4.1 this terminates the reactor loop.
	ErrReactorFatal = errors.New("reactor: fatal readiness-primitive error")
	// ErrClosed is returned by any operation attempted after Close.
	ErrClosed = errors.New("reactor: closed")
)
