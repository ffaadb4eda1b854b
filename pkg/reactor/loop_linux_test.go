//go:build linux

package reactor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sys/unix"
)

type event struct {
	fd int
	ev Events
}

func newTestLoop(t *testing.T, cfg LoopConfig) *Loop {
	t.Helper()

	l, err := NewLoop(cfg)
	if err != nil {
		t.Fatalf("NewLoop(): %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func socketPair(t *testing.T) (int, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func runLoop(t *testing.T, l *Loop) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	})
	return cancel
}

func waitEvent(t *testing.T, ch <-chan event) event {
	t.Helper()

	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for readiness notification")
		return event{}
	}
}

func TestLoop_ReadReadiness(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t, LoopConfig{})
	a, b := socketPair(t)

	events := make(chan event, 4)
	tok, err := l.Register(a, func(fd int, ev Events) {
		var buf [16]byte
		_, _ = unix.Read(fd, buf[:])
		events <- event{fd, ev}
	}, Read)
	if err != nil {
		t.Fatalf("Register(): %v", err)
	}
	if tok.FD() != a {
		t.Errorf("token fd = %d; want %d", tok.FD(), a)
	}

	runLoop(t, l)

	if _, err := unix.Write(b, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	e := waitEvent(t, events)
	if e.fd != a || !e.ev.Readable() || e.ev.Writable() {
		t.Errorf("got notification %d %s; want %d read", e.fd, e.ev, a)
	}
}

func TestLoop_UpdateWriteInterest(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t, LoopConfig{})
	a, _ := socketPair(t)

	events := make(chan event, 16)
	var once sync.Once
	var tok Token
	var err error
	tok, err = l.Register(a, func(fd int, ev Events) {
		if ev.Writable() {
			// stop write notifications after the first one
			once.Do(func() { _ = l.Update(tok, Read) })
			events <- event{fd, ev}
		}
	}, Read)
	if err != nil {
		t.Fatalf("Register(): %v", err)
	}

	runLoop(t, l)

	if err := l.Update(tok, Read|Write); err != nil {
		t.Fatalf("Update(): %v", err)
	}

	e := waitEvent(t, events)
	if !e.ev.Writable() {
		t.Errorf("got %s; want write readiness", e.ev)
	}
}

func TestLoop_RegisterErrors(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t, LoopConfig{})
	a, _ := socketPair(t)
	noop := func(int, Events) {}

	tok, err := l.Register(a, noop, Read)
	if err != nil {
		t.Fatalf("Register(): %v", err)
	}
	if _, err := l.Register(a, noop, Read); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Register() = %v; want %v", err, ErrAlreadyRegistered)
	}
	if _, err := l.Register(a+1000, noop, Read); err == nil {
		t.Error("Register() of a closed descriptor succeeded")
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d; want 1", l.Len())
	}

	stale := NewToken(a, tok.Generation()+1)
	if err := l.Update(stale, Read); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Update(stale) = %v; want %v", err, ErrUnknownToken)
	}
	if err := l.Deregister(stale); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Deregister(stale) = %v; want %v", err, ErrUnknownToken)
	}

	if err := l.Deregister(tok); err != nil {
		t.Fatalf("Deregister(): %v", err)
	}
	if err := l.Deregister(tok); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("second Deregister() = %v; want %v", err, ErrUnknownToken)
	}
	if _, ok := l.Interest(a); ok {
		t.Error("descriptor still registered after Deregister()")
	}
}

func TestLoop_Interest(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t, LoopConfig{})
	a, _ := socketPair(t)

	tok, err := l.Register(a, func(int, Events) {}, Read)
	if err != nil {
		t.Fatalf("Register(): %v", err)
	}
	if got, _ := l.Interest(a); got != Read {
		t.Errorf("Interest() = %s; want read", got)
	}
	if err := l.Update(tok, Read|Write); err != nil {
		t.Fatalf("Update(): %v", err)
	}
	if got, _ := l.Interest(a); got != Read|Write {
		t.Errorf("Interest() = %s; want read|write", got)
	}
}

func TestLoop_Post(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t, LoopConfig{})

	ran := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		if err := l.Post(func() { ran <- i }); err != nil {
			t.Fatalf("Post(): %v", err)
		}
	}

	runLoop(t, l)

	for want := 0; want < 3; want++ {
		select {
		case got := <-ran:
			if got != want {
				t.Errorf("posted function %d ran, want %d (order)", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("posted function did not run")
		}
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	l := newTestLoop(t, LoopConfig{Metrics: m})

	ran := make(chan struct{})
	_ = l.Post(func() { panic("boom") })
	_ = l.Post(func() { close(ran) })

	runLoop(t, l)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after a panicking function")
	}
	if got := testutil.ToFloat64(m.Panics); got != 1 {
		t.Errorf("panics = %v; want 1", got)
	}
}

func TestLoop_Close(t *testing.T) {
	t.Parallel()

	l, err := NewLoop(LoopConfig{})
	if err != nil {
		t.Fatalf("NewLoop(): %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	// give Run a chance to enter epoll_wait
	time.Sleep(20 * time.Millisecond)

	if err := l.Close(); err != nil {
		t.Fatalf("Close(): %v", err)
	}
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Close()")
	}

	if err := l.Close(); err != nil {
		t.Errorf("second Close() = %v; want nil", err)
	}
	if err := l.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Post() after Close() = %v; want %v", err, ErrClosed)
	}
	if _, err := l.Register(0, func(int, Events) {}, Read); !errors.Is(err, ErrClosed) {
		t.Errorf("Register() after Close() = %v; want %v", err, ErrClosed)
	}
	if err := l.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Run() after Close() = %v; want %v", err, ErrClosed)
	}
}

func TestLoop_RunTwice(t *testing.T) {
	t.Parallel()

	l := newTestLoop(t, LoopConfig{})
	if l.Running() {
		t.Error("Running() = true before Run")
	}
	started := make(chan struct{})
	_ = l.Post(func() { close(started) })

	runLoop(t, l)
	<-started

	if !l.Running() {
		t.Error("Running() = false while running")
	}
	if err := l.Run(context.Background()); !errors.Is(err, errAlreadyRunning) {
		t.Errorf("concurrent Run() = %v; want %v", err, errAlreadyRunning)
	}
}

func TestLoop_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	l := newTestLoop(t, LoopConfig{Metrics: m})
	a, b := socketPair(t)

	events := make(chan event, 4)
	tok, err := l.Register(a, func(fd int, ev Events) {
		var buf [16]byte
		_, _ = unix.Read(fd, buf[:])
		events <- event{fd, ev}
	}, Read)
	if err != nil {
		t.Fatalf("Register(): %v", err)
	}
	if got := testutil.ToFloat64(m.Registrations); got != 1 {
		t.Errorf("registrations = %v; want 1", got)
	}

	runLoop(t, l)
	_, _ = unix.Write(b, []byte("x"))
	waitEvent(t, events)

	if got := testutil.ToFloat64(m.Events.WithLabelValues("read")); got != 1 {
		t.Errorf("read events = %v; want 1", got)
	}

	if err := l.Deregister(tok); err != nil {
		t.Fatalf("Deregister(): %v", err)
	}
	if got := testutil.ToFloat64(m.Registrations); got != 0 {
		t.Errorf("registrations = %v; want 0", got)
	}
}

// Not parallel: the test relies on the kernel handing out the lowest free
// descriptor number.
func TestLoop_ReusedDescriptorSkipsStaleEvent(t *testing.T) {
	l := newTestLoop(t, LoopConfig{})

	var pairs [2][2]int
	var toks [2]Token
	var fresh []int
	defer func() {
		for _, p := range pairs {
			_ = unix.Close(p[0])
			_ = unix.Close(p[1])
		}
		for _, fd := range fresh {
			_ = unix.Close(fd)
		}
	}()

	for i := range pairs {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
		if err != nil {
			t.Fatalf("socketpair: %v", err)
		}
		pairs[i] = fds
	}

	stale := make(chan Events, 4)
	reused := make(chan int, 1)
	handled := false

	// The first callback of the batch closes the other pair and registers a
	// new socket that takes over its descriptor number.
	first := func(self int) Callback {
		return func(fd int, _ Events) {
			var buf [16]byte
			_, _ = unix.Read(fd, buf[:])
			if handled {
				return
			}
			handled = true

			other := 1 - self
			n := pairs[other][0]
			if err := l.Deregister(toks[other]); err != nil {
				t.Errorf("Deregister(): %v", err)
			}
			_ = unix.Close(n)
			pairs[other][0] = -1

			fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
			if err != nil {
				t.Errorf("socketpair: %v", err)
				reused <- -1
				return
			}
			fresh = append(fresh, fds[0], fds[1])

			target := -1
			for _, fd := range fds {
				if fd == n {
					target = fd
				}
			}
			if target >= 0 {
				if _, err := l.Register(target, func(_ int, ev Events) { stale <- ev }, Read); err != nil {
					t.Errorf("Register() reused fd: %v", err)
				}
			}
			// posted functions run after the rest of the batch
			_ = l.Post(func() { reused <- target })
		}
	}

	for i := range pairs {
		tok, err := l.Register(pairs[i][0], first(i), Read)
		if err != nil {
			t.Fatalf("Register(): %v", err)
		}
		toks[i] = tok
		if _, err := unix.Write(pairs[i][1], []byte("x")); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	runLoop(t, l)

	var target int
	select {
	case target = <-reused:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for readiness notification")
	}
	if target < 0 {
		t.Skip("closed descriptor number was not reused")
	}

	select {
	case ev := <-stale:
		t.Errorf("new registration on fd %d received stale %s notification", target, ev)
	default:
	}
}

func TestEpollTranslation(t *testing.T) {
	t.Parallel()

	if got := toEpoll(Read); got&unix.EPOLLIN == 0 || got&unix.EPOLLOUT != 0 {
		t.Errorf("toEpoll(read) = %#x", got)
	}
	if got := toEpoll(Read | Write); got&unix.EPOLLIN == 0 || got&unix.EPOLLOUT == 0 {
		t.Errorf("toEpoll(read|write) = %#x", got)
	}

	tests := []struct {
		in   uint32
		want Events
	}{
		{unix.EPOLLIN, Read},
		{unix.EPOLLOUT, Write},
		{unix.EPOLLIN | unix.EPOLLOUT, Read | Write},
		{unix.EPOLLERR, Read | Error},
		{unix.EPOLLHUP | unix.EPOLLOUT, Read | Write | Error},
	}
	for _, tc := range tests {
		if got := fromEpoll(tc.in); got != tc.want {
			t.Errorf("fromEpoll(%#x) = %s; want %s", tc.in, got, tc.want)
		}
	}
}
