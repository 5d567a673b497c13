// Package stream implements non-blocking TCP I/O driven by the reactor
// package, per spec.md §6's stream surface. Grounded on
// _examples/original_source/src/io/tcp_stream.rs and
// _examples/original_source/src/asyncio/async_tcp.rs: both wrap a raw,
// non-blocking socket and turn EWOULDBLOCK into a registered waker instead
// of a blocking syscall. Go's net package already has its own internal
// (runtime-level) netpoller, which would fight with ours for the same fd,
// so this package talks to the kernel directly via golang.org/x/sys/unix
// rather than through net.Conn.
package stream

import (
	"net"

	"golang.org/x/sys/unix"
)

func resolveSockaddr(network, address string) (unix.Sockaddr, int, error) {
	addr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, 0, err
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, unix.AF_INET, nil
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], addr.IP.To16())
	return &sa, unix.AF_INET6, nil
}

func sockaddrOf(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	return tcpAddrOf(sa), nil
}

func tcpAddrOf(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	default:
		return nil
	}
}

func newNonblockingSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	return fd, nil
}

// socketError reads SO_ERROR off fd, the standard way to learn whether a
// non-blocking connect that returned EINPROGRESS ultimately succeeded.
func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}
