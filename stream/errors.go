package stream

import "errors"

var (
	// ErrClosed is returned by any operation on a Stream or Listener after
	// Close has been called.
	ErrClosed = errors.New("stream: closed")

	// ErrIO is the sentinel spec.md §7 names for "any other I/O failure
	// surfaced by the OS"; wrap it around the concrete unix.Errno/syscall
	// error so callers can errors.Is(err, stream.ErrIO) without caring
	// about the underlying errno.
	ErrIO = errors.New("stream: io error")

	// ErrNotRegistered is the sentinel spec.md §7 names for "async op on
	// an unregistered stream": AsyncRead/AsyncWrite/AsyncAccept surface it
	// when the stream would need to suspend on the reactor but its token
	// is no longer registered there (deregistered without the stream
	// being closed), i.e. reactor.AttachWaker rejects it with
	// reactor.ErrUnknownToken.
	ErrNotRegistered = errors.New("stream: not registered")
)

type wrappedIOError struct {
	cause error
}

func (e *wrappedIOError) Error() string { return ErrIO.Error() + ": " + e.cause.Error() }
func (e *wrappedIOError) Unwrap() []error { return []error{ErrIO, e.cause} }

func ioErr(cause error) error {
	if cause == nil {
		return nil
	}
	return &wrappedIOError{cause: cause}
}
