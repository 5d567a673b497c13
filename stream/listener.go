package stream

import (
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-asyncrt/reactor"
	"github.com/joeycumines/go-asyncrt/task"
)

// Listener is a non-blocking TCP listener registered with the reactor.
type Listener struct {
	fd     int
	token  reactor.Token
	react  reactor.Handle
	addr   *net.TCPAddr
	closed atomic.Bool
}

// Fd implements reactor.Source.
func (l *Listener) Fd() int { return l.fd }

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.addr }

// Listen binds and listens on address, registering the listening socket
// with react for read-readiness (a pending connection makes the listening
// socket readable, the standard epoll/kqueue accept signal).
func Listen(react reactor.Handle, network, address string) (*Listener, error) {
	sa, family, err := resolveSockaddr(network, address)
	if err != nil {
		return nil, err
	}
	fd, err := newNonblockingSocket(family)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	l := &Listener{fd: fd, react: react}
	tok, err := react.Register(l, reactor.Readable)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	l.token = tok
	if addr, err := sockaddrOf(fd); err == nil {
		l.addr = addr
	}
	return l, nil
}

// Close deregisters and closes the listening socket.
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	_ = l.react.Deregister(l.token)
	return unix.Close(l.fd)
}

// AsyncAccept returns a Future resolving to the next inbound connection.
func (l *Listener) AsyncAccept() task.Future[AcceptResult] {
	return task.FutureFunc[AcceptResult](func(w *task.Waker) (AcceptResult, bool) {
		return l.pollAccept(w)
	})
}

// AcceptResult is the outcome of an AsyncAccept.
type AcceptResult struct {
	Stream *Stream
	Err    error
}

func (l *Listener) pollAccept(w *task.Waker) (AcceptResult, bool) {
	if l.closed.Load() {
		return AcceptResult{Err: ErrClosed}, true
	}
	fd, peer, err := unix.Accept(l.fd)
	switch {
	case err == nil:
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fd)
			return AcceptResult{Err: err}, true
		}
		s, err := newStream(l.react, fd)
		if err != nil {
			return AcceptResult{Err: err}, true
		}
		if addr := tcpAddrOf(peer); addr != nil {
			s.remote = addr
		}
		return AcceptResult{Stream: s}, true
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		if aerr := l.react.AttachWaker(l.token, reactor.DirRead, w); aerr != nil {
			return AcceptResult{Err: ErrNotRegistered}, true
		}
		return AcceptResult{}, false
	default:
		return AcceptResult{Err: ioErr(err)}, true
	}
}
