package stream

import (
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-asyncrt/reactor"
	"github.com/joeycumines/go-asyncrt/task"
)

// Stream is a non-blocking, reactor-registered TCP connection. Grounded on
// _examples/original_source/src/io/tcp_stream.rs's TcpStream / ReadFuture.
type Stream struct {
	fd     int
	token  reactor.Token
	react  reactor.Handle
	closed atomic.Bool

	local, remote net.Addr
}

// Fd implements reactor.Source.
func (s *Stream) Fd() int { return s.fd }

// LocalAddr returns the connection's local endpoint.
func (s *Stream) LocalAddr() net.Addr { return s.local }

// RemoteAddr returns the connection's peer endpoint. It is set only on
// streams returned by Listener.AsyncAccept; for a stream from Dial or New it
// returns nil.
func (s *Stream) RemoteAddr() net.Addr { return s.remote }

func newStream(react reactor.Handle, fd int) (*Stream, error) {
	s := &Stream{fd: fd, react: react}
	tok, err := react.Register(s, reactor.Readable|reactor.Writable)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	s.token = tok
	if addr, err := sockaddrOf(fd); err == nil {
		s.local = addr
	}
	return s, nil
}

// Close deregisters and closes the underlying socket. Safe to call more
// than once.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_ = s.react.Deregister(s.token)
	return unix.Close(s.fd)
}

// AsyncRead returns a Future that resolves to the number of bytes read into
// buf, or an error. An orderly shutdown by the peer resolves to N == 0 with
// a nil Err, not to io.EOF. Mirrors ReadFuture from tcp_stream.rs: try the syscall first,
// and only register a waker on EWOULDBLOCK.
func (s *Stream) AsyncRead(buf []byte) task.Future[ReadResult] {
	return task.FutureFunc[ReadResult](func(w *task.Waker) (ReadResult, bool) {
		return s.pollRead(w, buf)
	})
}

// ReadResult is the outcome of an AsyncRead.
type ReadResult struct {
	N   int
	Err error
}

func (s *Stream) pollRead(w *task.Waker, buf []byte) (ReadResult, bool) {
	if s.closed.Load() {
		return ReadResult{Err: ErrClosed}, true
	}
	n, err := unix.Read(s.fd, buf)
	switch {
	case err == nil:
		return ReadResult{N: n}, true
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		if aerr := s.react.AttachWaker(s.token, reactor.DirRead, w); aerr != nil {
			return ReadResult{Err: ErrNotRegistered}, true
		}
		return ReadResult{}, false
	default:
		return ReadResult{Err: ioErr(err)}, true
	}
}

// AsyncWrite returns a Future that resolves once buf has been fully
// written, or an error occurs. Partial writes are retried internally so
// the caller observes an all-or-nothing result, matching the "write
// future" shape used by _examples/original_source's async_tcp.rs.
func (s *Stream) AsyncWrite(buf []byte) task.Future[WriteResult] {
	st := &writeState{buf: buf}
	return task.FutureFunc[WriteResult](func(w *task.Waker) (WriteResult, bool) {
		return s.pollWrite(w, st)
	})
}

// WriteResult is the outcome of an AsyncWrite.
type WriteResult struct {
	N   int
	Err error
}

type writeState struct {
	mu   sync.Mutex
	buf  []byte
	sent int
}

func (s *Stream) pollWrite(w *task.Waker, st *writeState) (WriteResult, bool) {
	if s.closed.Load() {
		return WriteResult{Err: ErrClosed}, true
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	for st.sent < len(st.buf) {
		n, err := unix.Write(s.fd, st.buf[st.sent:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				if aerr := s.react.AttachWaker(s.token, reactor.DirWrite, w); aerr != nil {
					return WriteResult{N: st.sent, Err: ErrNotRegistered}, true
				}
				return WriteResult{}, false
			}
			return WriteResult{N: st.sent, Err: ioErr(err)}, true
		}
		st.sent += n
	}
	return WriteResult{N: st.sent}, true
}
