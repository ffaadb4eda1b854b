package entrypoint

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"snmpcarrier/mocks"
	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/reactor"
)

// fakeLoop runs posted functions on the goroutine that calls Run.
type fakeLoop struct {
	*mocks.MockReactor

	posted  chan func()
	started chan struct{}
	once    sync.Once
	running atomic.Bool
	closed  atomic.Bool
	runErr  error
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		MockReactor: mocks.NewMockReactor(),
		posted:      make(chan func(), 16),
		started:     make(chan struct{}),
	}
}

func (l *fakeLoop) Run(ctx context.Context) error {
	if l.runErr != nil {
		return l.runErr
	}

	l.running.Store(true)
	defer l.running.Store(false)
	l.once.Do(func() { close(l.started) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.posted:
			fn()
		}
	}
}

func (l *fakeLoop) Post(fn func()) error {
	if l.closed.Load() {
		return reactor.ErrClosed
	}
	l.posted <- fn
	return nil
}

func (l *fakeLoop) Running() bool { return l.running.Load() }

func (l *fakeLoop) Close() error {
	l.closed.Store(true)
	return nil
}

// runOnLoop runs fn on the loop and waits for it.
func (l *fakeLoop) runOnLoop(fn func()) {
	done := make(chan struct{})
	_ = l.Post(func() {
		fn()
		close(done)
	})
	<-done
}

func (l *fakeLoop) factory() loopFactory {
	return func(reactor.LoopConfig) (eventLoop, error) { return l, nil }
}

type sentMsg struct {
	msg string
	dst net.Addr
}

// fakeTransport records the calls made by the commands.
type fakeTransport struct {
	carrier.Base

	local       net.Addr
	serverIface net.Addr
	clientCalls int
	openErr     error
	sendErr     error
	sent        []sentMsg
	closed      int
	onSend      func(f *fakeTransport, msg []byte, dst net.Addr)
}

func (f *fakeTransport) OpenClientMode(iface net.Addr) error {
	f.clientCalls++
	return f.openErr
}

func (f *fakeTransport) OpenServerMode(iface net.Addr) error {
	f.serverIface = iface
	return f.openErr
}

func (f *fakeTransport) SendMessage(msg []byte, dst net.Addr) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMsg{string(msg), dst})
	if f.onSend != nil {
		f.onSend(f, msg, dst)
	}
	return nil
}

func (f *fakeTransport) CloseTransport() error {
	f.closed++
	return f.Base.CloseTransport()
}

func (f *fakeTransport) LocalAddr() net.Addr { return f.local }

func (f *fakeTransport) factory() transportFactory {
	return func(*config.Shared, reactor.Reactor) (carrierTransport, error) { return f, nil }
}

func failingLoopFactory(err error) loopFactory {
	return func(reactor.LoopConfig) (eventLoop, error) { return nil, err }
}

func failingTransportFactory(err error) transportFactory {
	return func(*config.Shared, reactor.Reactor) (carrierTransport, error) { return nil, err }
}

// testConfig creates a standard test configuration.
func testConfig() *config.Shared {
	return &config.Shared{
		Protocol: config.ProtoUDP,
		Host:     "127.0.0.1",
		Port:     1161,
		Timeout:  100 * time.Millisecond,
		Deps:     &config.Dependencies{},
	}
}

var errTest = errors.New("test error")
