//go:build linux

package poller

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Poller is an epoll-backed readiness notifier. Registrations are indexed by
// a dense token the caller controls (the reactor owns token assignment); the
// poller itself has no opinion about what a token means.
//
// Grounded on the teacher's eventloop/poller_linux.go FastPoller, adapted
// from inline-callback dispatch to token-batch dispatch: the reactor (not
// the poller) decides which waker a readiness event wakes, per the
// lock-ordering discipline of the spec this module implements.
type Poller struct {
	mu      sync.Mutex
	epfd    int
	closed  bool
	wakeRd  int
	wakeWr  int
	evBuf   [maxBatch]unix.EpollEvent
	tokenOf map[int32]uint64 // epoll-reported fd -> caller token
	fdOf    map[uint64]int32 // caller token -> fd, for Reregister/Deregister
}

// New creates and initializes an epoll instance, plus the self-wake eventfd
// used to interrupt a blocked Wait call.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	p := &Poller{
		epfd:    epfd,
		tokenOf: make(map[int32]uint64),
		fdOf:    make(map[uint64]int32),
	}

	rd, wr, err := createWakeFd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	p.wakeRd, p.wakeWr = rd, wr

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, p.wakeRd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(p.wakeRd),
	}); err != nil {
		_ = closeWakeFd(rd, wr)
		_ = unix.Close(epfd)
		return nil, err
	}

	return p, nil
}

// Register subscribes fd for the given interests, reporting readiness
// against token.
func (p *Poller) Register(fd int, token uint64, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, ok := p.fdOf[token]; ok {
		return ErrAlreadyRegistered
	}
	if _, ok := p.tokenOf[int32(fd)]; ok {
		return ErrAlreadyRegistered
	}

	ev := &unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.tokenOf[int32(fd)] = token
	p.fdOf[token] = int32(fd)
	return nil
}

// Reregister updates the interest set for an already-registered token.
func (p *Poller) Reregister(token uint64, interest Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	fd, ok := p.fdOf[token]
	if !ok {
		return ErrNotRegistered
	}
	ev := &unix.EpollEvent{Events: toEpoll(interest), Fd: fd}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), ev)
}

// Deregister removes token's fd from the poller.
func (p *Poller) Deregister(token uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	fd, ok := p.fdOf[token]
	if !ok {
		return ErrNotRegistered
	}
	delete(p.fdOf, token)
	delete(p.tokenOf, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

// Wait blocks until at least one readiness event is available, the poller is
// woken via Wake, or the poller is closed. A negative timeoutMs blocks with
// no deadline, matching spec.md's "no timeout" reactor loop.
func (p *Poller) Wait(timeoutMs int, out []Event) ([]Event, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.evBuf[:], timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return out, err
		}

		out = out[:0]
		p.mu.Lock()
		for i := 0; i < n; i++ {
			fd := p.evBuf[i].Fd
			if int(fd) == p.wakeRd {
				_ = drainWakeFd(p.wakeRd)
				continue
			}
			token, ok := p.tokenOf[fd]
			if !ok {
				continue
			}
			mask := p.evBuf[i].Events
			out = append(out, Event{
				Token:    token,
				Readable: mask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
				Writable: mask&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0,
				Closed:   mask&(unix.EPOLLHUP|unix.EPOLLERR) != 0,
			})
		}
		p.mu.Unlock()

		return out, nil
	}
}

// Wake interrupts a blocked Wait call; safe to call from any goroutine,
// including concurrently with Close.
func (p *Poller) Wake() error {
	return wakeFd(p.wakeWr)
}

// Close releases the epoll instance and the wake eventfd.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	epfd := p.epfd
	rd, wr := p.wakeRd, p.wakeWr
	p.mu.Unlock()

	_ = closeWakeFd(rd, wr)
	return unix.Close(epfd)
}

func toEpoll(interest Interest) uint32 {
	var mask uint32
	if interest&Readable != 0 {
		mask |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}
