//go:build linux || darwin

package stream

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-asyncrt/reactor"
	"github.com/joeycumines/go-asyncrt/task"
)

type testEnv struct {
	react reactor.Handle
	pool  *task.Pool
	done  func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r, err := reactor.New()
	require.NoError(t, err)
	p, err := task.NewPool(2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	return &testEnv{
		react: r.Handle(),
		pool:  p,
		done: func() {
			cancel()
			p.Close()
			<-runErr
		},
	}
}

// TestEchoRoundTrip exercises spec.md §8 scenario 1: write N bytes to a
// loopback peer, read N bytes back, expect buffer equality, under 2s.
func TestEchoRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	defer env.done()

	ln, err := Listen(env.react, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	acceptH, err := task.Spawn(env.pool, ln.AsyncAccept())
	require.NoError(t, err)

	dialH, err := task.Spawn(env.pool, New(env.react, ln.Addr().String()))
	require.NoError(t, err)

	acceptRes, err := task.Await(ctx, acceptH)
	require.NoError(t, err)
	require.NoError(t, acceptRes.Err)
	server := acceptRes.Stream
	defer server.Close()

	dialRes, err := task.Await(ctx, dialH)
	require.NoError(t, err)
	require.NoError(t, dialRes.Err)
	client := dialRes.Stream
	defer client.Close()

	// Server echoes whatever it reads.
	echoDone := make(chan struct{})
	go func() {
		defer close(echoDone)
		buf := make([]byte, 16)
		h, err := task.Spawn(env.pool, server.AsyncRead(buf))
		if err != nil {
			return
		}
		res, err := task.Await(ctx, h)
		if err != nil || res.Err != nil {
			return
		}
		wh, err := task.Spawn(env.pool, server.AsyncWrite(buf[:res.N]))
		if err != nil {
			return
		}
		_, _ = task.Await(ctx, wh)
	}()

	out := []byte{5, 4, 3, 2, 1}
	wh, err := task.Spawn(env.pool, client.AsyncWrite(out))
	require.NoError(t, err)
	wres, err := task.Await(ctx, wh)
	require.NoError(t, err)
	require.NoError(t, wres.Err)

	in := make([]byte, len(out))
	rh, err := task.Spawn(env.pool, client.AsyncRead(in))
	require.NoError(t, err)
	rres, err := task.Await(ctx, rh)
	require.NoError(t, err)
	require.NoError(t, rres.Err)
	require.Equal(t, len(out), rres.N)
	require.Equal(t, out, in[:rres.N])

	<-echoDone
}

// TestTwoConcurrentReads exercises spec.md §8 scenario 2: two independent
// connections each write-then-read; both must complete regardless of
// interleaving.
func TestTwoConcurrentReads(t *testing.T) {
	env := newTestEnv(t)
	defer env.done()

	ln, err := Listen(env.react, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	runOne := func() error {
		acceptH, err := task.Spawn(env.pool, ln.AsyncAccept())
		if err != nil {
			return err
		}
		dialH, err := task.Spawn(env.pool, New(env.react, ln.Addr().String()))
		if err != nil {
			return err
		}
		acceptRes, err := task.Await(ctx, acceptH)
		if err != nil {
			return err
		}
		server := acceptRes.Stream
		defer server.Close()

		dialRes, err := task.Await(ctx, dialH)
		if err != nil {
			return err
		}
		client := dialRes.Stream
		defer client.Close()

		go func() {
			buf := make([]byte, 16)
			h, _ := task.Spawn(env.pool, server.AsyncRead(buf))
			res, err := task.Await(ctx, h)
			if err != nil || res.Err != nil {
				return
			}
			wh, _ := task.Spawn(env.pool, server.AsyncWrite(buf[:res.N]))
			_, _ = task.Await(ctx, wh)
		}()

		out := []byte{5, 4, 3, 2, 1}
		wh, err := task.Spawn(env.pool, client.AsyncWrite(out))
		if err != nil {
			return err
		}
		if _, err := task.Await(ctx, wh); err != nil {
			return err
		}
		in := make([]byte, len(out))
		rh, err := task.Spawn(env.pool, client.AsyncRead(in))
		if err != nil {
			return err
		}
		res, err := task.Await(ctx, rh)
		if err != nil {
			return err
		}
		return res.Err
	}

	errs := make(chan error, 2)
	go func() { errs <- runOne() }()
	go func() { errs <- runOne() }()

	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
	}
}

// TestPendingThenWake exercises spec.md §8 scenario 3: a read registered
// against a stream with no data available must not be re-polled (the
// Future must stay pending) during an initial quiet window, and must
// complete shortly after the peer actually writes.
func TestPendingThenWake(t *testing.T) {
	env := newTestEnv(t)
	defer env.done()

	ln, err := Listen(env.react, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	acceptH, err := task.Spawn(env.pool, ln.AsyncAccept())
	require.NoError(t, err)
	dialH, err := task.Spawn(env.pool, New(env.react, ln.Addr().String()))
	require.NoError(t, err)

	acceptRes, err := task.Await(ctx, acceptH)
	require.NoError(t, err)
	require.NoError(t, acceptRes.Err)
	server := acceptRes.Stream
	defer server.Close()

	dialRes, err := task.Await(ctx, dialH)
	require.NoError(t, err)
	require.NoError(t, dialRes.Err)
	client := dialRes.Stream
	defer client.Close()

	var polls atomic.Int64
	buf := make([]byte, 16)
	fut := task.FutureFunc[ReadResult](func(w *task.Waker) (ReadResult, bool) {
		polls.Add(1)
		return client.pollRead(w, buf)
	})
	rh, err := task.Spawn(env.pool, fut)
	require.NoError(t, err)

	// Quiet window: nothing written yet, so the read must remain pending
	// and must not have been spuriously re-polled.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int64(1), polls.Load(), "read future was re-polled without a wake")

	start := time.Now()
	wh, err := task.Spawn(env.pool, server.AsyncWrite([]byte{9, 8, 7}))
	require.NoError(t, err)
	wres, err := task.Await(ctx, wh)
	require.NoError(t, err)
	require.NoError(t, wres.Err)

	res, err := task.Await(ctx, rh)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, []byte{9, 8, 7}, buf[:res.N])
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestAsyncReadOnClosedStream exercises the boundary behaviour of a Close'd
// stream: reading after Close must fail with ErrClosed, not block.
func TestAsyncReadOnClosedStream(t *testing.T) {
	env := newTestEnv(t)
	defer env.done()

	ln, err := Listen(env.react, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dialH, err := task.Spawn(env.pool, New(env.react, ln.Addr().String()))
	require.NoError(t, err)
	dialRes, err := task.Await(ctx, dialH)
	require.NoError(t, err)
	require.NoError(t, dialRes.Err)
	client := dialRes.Stream
	require.NoError(t, client.Close())

	buf := make([]byte, 4)
	h, err := task.Spawn(env.pool, client.AsyncRead(buf))
	require.NoError(t, err)
	res, err := task.Await(ctx, h)
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrClosed)
}

// TestAsyncReadOnUnregisteredStream exercises spec.md §8's literal boundary
// case: "async read on an unregistered stream is rejected with
// NotRegistered". This is distinct from TestAsyncReadOnClosedStream above —
// the stream's fd is still open and unclosed, only its reactor
// registration is gone (deregistered directly, bypassing Close), so the
// read syscall itself may still return EAGAIN and only then discover, via
// AttachWaker, that there is no registration left to suspend on.
func TestAsyncReadOnUnregisteredStream(t *testing.T) {
	env := newTestEnv(t)
	defer env.done()

	ln, err := Listen(env.react, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dialH, err := task.Spawn(env.pool, New(env.react, ln.Addr().String()))
	require.NoError(t, err)
	dialRes, err := task.Await(ctx, dialH)
	require.NoError(t, err)
	require.NoError(t, dialRes.Err)
	client := dialRes.Stream
	defer client.Close()

	// Deregister the reactor's record of the stream without closing the
	// underlying fd, so AsyncRead finds nothing to wait on and reports
	// NotRegistered instead of blocking indefinitely.
	require.NoError(t, env.react.Deregister(client.token))

	buf := make([]byte, 4)
	h, err := task.Spawn(env.pool, client.AsyncRead(buf))
	require.NoError(t, err)
	res, err := task.Await(ctx, h)
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrNotRegistered)
}
