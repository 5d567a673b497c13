//go:build linux || darwin

package reactor

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

type fdSource struct{ fd int }

func (s fdSource) Fd() int { return s.fd }

type chanWaker struct{ ch chan struct{} }

func (w *chanWaker) Wake() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}
func (w *chanWaker) Same(other Waker) bool {
	o, ok := other.(*chanWaker)
	return ok && o == w
}

func TestReactor_RegisterAndWakeOnReadable(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	_ = unix.SetNonblock(fds[0], true)

	tok, err := r.Register(fdSource{fds[0]}, Readable)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	w := &chanWaker{ch: make(chan struct{}, 1)}
	if err := r.AttachWaker(tok, DirRead, w); err != nil {
		t.Fatalf("AttachWaker: %v", err)
	}

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-w.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("waker was never woken on readability")
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestReactor_CloseIsIdempotentAndStopsRun(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run returned error after Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}

	if _, err := r.Register(fdSource{0}, Readable); err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestReactor_DeregisterUnknownToken(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Deregister(Token(999)); err != ErrUnknownToken {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}
