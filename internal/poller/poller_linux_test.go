//go:build linux

package poller

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestPoller_RegisterAndWaitReadable(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	_ = unix.SetNonblock(fds[0], true)

	if err := p.Register(fds[0], 7, Readable); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("hi")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	events, err := p.Wait(2000, nil)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(events) != 1 || events[0].Token != 7 || !events[0].Readable {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestPoller_WakeInterruptsWait(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	done := make(chan struct{})
	go func() {
		_, _ = p.Wait(-1, nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond) // let Wait actually block
	if err := p.Wake(); err != nil {
		t.Fatalf("Wake: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not interrupt a blocked Wait")
	}
}

func TestPoller_DeregisterThenReregisterUnknown(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	if err := p.Reregister(123, Readable); err != ErrNotRegistered {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
	if err := p.Deregister(123); err != ErrNotRegistered {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}
