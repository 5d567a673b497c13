//go:build darwin

package poller

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Poller is a kqueue-backed readiness notifier, the darwin counterpart to
// poller_linux.go's epoll implementation. Grounded on the teacher's
// eventloop/poller_darwin.go FastPoller, adapted to token-batch dispatch.
type Poller struct {
	mu      sync.Mutex
	kq      int
	closed  bool
	wakeRd  int
	wakeWr  int
	evBuf   [maxBatch]unix.Kevent_t
	tokenOf map[int32]uint64
	fdOf    map[uint64]int32
	intOf   map[uint64]Interest
}

// New creates a kqueue instance and the self-pipe used to interrupt Wait.
func New() (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)

	p := &Poller{
		kq:      kq,
		tokenOf: make(map[int32]uint64),
		fdOf:    make(map[uint64]int32),
		intOf:   make(map[uint64]Interest),
	}

	rd, wr, err := createWakeFd(0, 0)
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	p.wakeRd, p.wakeWr = rd, wr

	changes := []unix.Kevent_t{{
		Ident:  uint64(p.wakeRd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		_ = closeWakeFd(rd, wr)
		_ = unix.Close(kq)
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

	if err := p.applyKevents(fd, interest, true); err != nil {
		return err
	}
	p.tokenOf[int32(fd)] = token
	p.fdOf[token] = int32(fd)
	p.intOf[token] = interest
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
	old := p.intOf[token]
	if err := p.applyKeventsDiff(int(fd), old, interest); err != nil {
		return err
	}
	p.intOf[token] = interest
	return nil
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
	_ = p.applyKevents(int(fd), p.intOf[token], false)
	delete(p.fdOf, token)
	delete(p.tokenOf, fd)
	delete(p.intOf, token)
	return nil
}

func (p *Poller) applyKevents(fd int, interest Interest, add bool) error {
	flag := uint16(unix.EV_DELETE)
	if add {
		flag = unix.EV_ADD | unix.EV_CLEAR
	}
	var changes []unix.Kevent_t
	if interest&Readable != 0 || !add {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flag})
	}
	if interest&Writable != 0 || !add {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flag})
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *Poller) applyKeventsDiff(fd int, old, next Interest) error {
	var changes []unix.Kevent_t
	if old&Readable != 0 && next&Readable == 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	} else if old&Readable == 0 && next&Readable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_CLEAR})
	}
	if old&Writable != 0 && next&Writable == 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	} else if old&Writable == 0 && next&Writable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

// Wait blocks until at least one readiness event is available, the poller is
// woken via Wake, or the poller is closed. A negative timeoutMs blocks with
// no deadline.
func (p *Poller) Wait(timeoutMs int, out []Event) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1e6))
		ts = &t
	}

	for {
		n, err := unix.Kevent(p.kq, nil, p.evBuf[:], ts)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return out, err
		}

		out = out[:0]
		p.mu.Lock()
		for i := 0; i < n; i++ {
			ev := p.evBuf[i]
			if int(ev.Ident) == p.wakeRd {
				_ = drainWakeFd(p.wakeRd)
				continue
			}
			token, ok := p.tokenOf[int32(ev.Ident)]
			if !ok {
				continue
			}
			closed := ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0
			out = append(out, Event{
				Token:    token,
				Readable: ev.Filter == unix.EVFILT_READ || closed,
				Writable: ev.Filter == unix.EVFILT_WRITE || closed,
				Closed:   closed,
			})
		}
		p.mu.Unlock()

		return out, nil
	}
}

// Wake interrupts a blocked Wait call.
func (p *Poller) Wake() error {
	return wakeFd(p.wakeWr)
}

// Close releases the kqueue instance and the wake pipe.
func (p *Poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	kq := p.kq
	rd, wr := p.wakeRd, p.wakeWr
	p.mu.Unlock()

	_ = closeWakeFd(rd, wr)
	return unix.Close(kq)
}
