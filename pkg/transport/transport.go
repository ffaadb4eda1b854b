// Package transport binds non-blocking carrier sockets to a reactor.
//
// Transport owns one socket, registers it with a reactor.Reactor for read
// readiness and translates every readiness notification into calls of the
// Handler supplied by the concrete socket family (see the udp and unixdgram
// packages):
//
//   - Read (or Error) readiness calls Handler.HandleRead
//   - Write readiness calls Handler.HandleWrite
//
// Both may be called for one notification, read first. Write readiness is
// only requested while SetWritable(true) is in effect, which concrete
// transports do while they have queued outbound data.
//
// OpenClientMode, OpenServerMode and SendMessage are extension points: on
// a bare Transport they fail with carrier.ErrNotImplemented. Concrete
// transports embed *Transport and override them.
//
// A Transport is owned by the reactor goroutine. Construction, SetWritable
// and CloseTransport must run there (or before the reactor runs).
package transport

import (
	"errors"
	"fmt"
	"net"

	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/log"
	"snmpcarrier/pkg/reactor"
	"snmpcarrier/pkg/socket"

	"golang.org/x/sys/unix"
)

// Handler receives the readiness notifications of a Transport.
type Handler interface {
	HandleRead()
	HandleWrite()
}

// Transport is the reactor binding of one socket.
type Transport struct {
	carrier.Base

	handler Handler
	ops     socket.Ops
	reactor reactor.Reactor
	logger  *log.Logger

	fd     int
	family int
	sotype int
	token  reactor.Token

	connected bool
	writable  bool
	closed    bool
}

var _ carrier.Transport = (*Transport)(nil)

// New wraps a socket and registers it with a reactor for read readiness.
//
// Without WithSocket a socket is created from the family and type given by
// WithFamily; if either is missing New fails with a
// *carrier.ConfigurationError before anything is created. Without
// WithReactor the process-wide reactor.Current is used.
//
// Buffer tuning is best effort. Any other failure closes a socket New
// created itself; a socket passed with WithSocket stays with the caller.
func New(h Handler, opts ...Option) (*Transport, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if h == nil {
		return nil, &carrier.ConfigurationError{Op: "nil handler"}
	}
	if !o.hasFD {
		if o.family == 0 {
			return nil, &carrier.ConfigurationError{Op: "address family not supported"}
		}
		if o.sotype == 0 {
			return nil, &carrier.ConfigurationError{Op: "socket type not supported"}
		}
	}

	r := o.reactor
	if r == nil {
		var err error
		if r, err = reactor.Current(); err != nil {
			return nil, &carrier.ConfigurationError{Op: "no reactor", Err: err}
		}
	}

	ops := config.GetSocketOps(o.deps)
	fd, owned := o.fd, false
	if !o.hasFD {
		var err error
		if fd, err = ops.Socket(o.family, o.sotype); err != nil {
			return nil, &carrier.ConfigurationError{Op: "socket() failed", Err: err}
		}
		owned = true
	}

	t := &Transport{
		handler: h,
		ops:     ops,
		reactor: r,
		logger:  o.logger,
		fd:      fd,
		family:  o.family,
		sotype:  o.sotype,
	}

	if o.bufferSize > 0 {
		t.logTuning(socket.TuneBuffers(ops, fd, o.bufferSize))
	}

	if err := t.setup(); err != nil {
		if owned {
			_ = ops.Close(fd)
		}
		return nil, err
	}

	t.connected = true
	t.writable = false
	return t, nil
}

func (t *Transport) setup() error {
	if err := t.ops.SetsockoptInt(t.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt(%d, SO_REUSEADDR): %w", t.fd, err)
	}
	if err := t.ops.SetNonblock(t.fd, true); err != nil {
		return fmt.Errorf("set non-blocking(%d): %w", t.fd, err)
	}

	tok, err := t.reactor.Register(t.fd, t.HandleEvents, reactor.Read)
	if err != nil {
		return fmt.Errorf("registering socket %d: %w", t.fd, err)
	}
	t.token = tok
	return nil
}

func (t *Transport) logTuning(res socket.TuneResult) {
	for _, c := range res.Changes {
		t.logger.VerboseMsg("socket %d: %s increased from %d to %d", t.fd, c.Option, c.From, c.To)
	}
	if !res.OK() {
		t.logger.VerboseMsg("socket %d: buffer size tuning failed: %s", t.fd, res.Err)
	}
}

// HandleEvents is the reactor callback of the transport.
func (t *Transport) HandleEvents(fd int, ev reactor.Events) {
	t.logger.VerboseMsg("socket %d: R: %t W: %t", fd, ev.Readable() || ev.Failed(), ev.Writable())

	if t.closed {
		return
	}
	if ev.Readable() || ev.Failed() {
		t.handler.HandleRead()
	}
	// the read handler may have closed the transport
	if ev.Writable() && !t.closed {
		t.handler.HandleWrite()
	}
}

// SetWritable adds or removes write readiness from the reactor
// registration. It does not call the reactor if the state is unchanged.
func (t *Transport) SetWritable(writable bool) error {
	if t.closed {
		return carrier.ErrClosed
	}
	if t.writable == writable {
		return nil
	}

	interest := reactor.Read
	if writable {
		interest |= reactor.Write
	}
	if err := t.reactor.Update(t.token, interest); err != nil {
		return fmt.Errorf("socket %d: updating interest to %s: %w", t.fd, interest, err)
	}
	t.writable = writable
	return nil
}

// OpenClientMode implements carrier.Transport.
func (t *Transport) OpenClientMode(iface net.Addr) error {
	return carrier.ErrNotImplemented
}

// OpenServerMode implements carrier.Transport.
func (t *Transport) OpenServerMode(iface net.Addr) error {
	return carrier.ErrNotImplemented
}

// SendMessage implements carrier.Transport.
func (t *Transport) SendMessage(msg []byte, dst net.Addr) error {
	return carrier.ErrNotImplemented
}

// CloseTransport runs the carrier teardown hook, removes the socket from
// the reactor and closes it. Calling it again does nothing.
func (t *Transport) CloseTransport() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if err := t.Base.CloseTransport(); err != nil {
		errs = append(errs, err)
	}
	if err := t.reactor.Deregister(t.token); err != nil {
		errs = append(errs, fmt.Errorf("deregistering socket %d: %w", t.fd, err))
	}
	if err := t.ops.Close(t.fd); err != nil {
		errs = append(errs, fmt.Errorf("closing socket %d: %w", t.fd, err))
	}

	t.connected = false
	t.writable = false
	t.logger.VerboseMsg("socket %d: closed", t.fd)
	return errors.Join(errs...)
}

// Connected reports whether the socket is registered and open.
func (t *Transport) Connected() bool { return t.connected }

// Writable reports whether write readiness is currently requested.
func (t *Transport) Writable() bool { return t.writable }

// Closed reports whether CloseTransport was called.
func (t *Transport) Closed() bool { return t.closed }

// FD returns the socket descriptor.
func (t *Transport) FD() int { return t.fd }

// Family returns the socket family, or 0 if it was not configured.
func (t *Transport) Family() int { return t.family }

// Type returns the socket type, or 0 if it was not configured.
func (t *Transport) Type() int { return t.sotype }

// Token returns the reactor registration.
func (t *Transport) Token() reactor.Token { return t.token }

// Reactor returns the reactor the socket is registered with.
func (t *Transport) Reactor() reactor.Reactor { return t.reactor }

// Ops returns the socket operations used by the transport.
func (t *Transport) Ops() socket.Ops { return t.ops }

// Logger returns the transport logger, which may be nil.
func (t *Transport) Logger() *log.Logger { return t.logger }

// LocalAddr returns the address the socket is bound to, or nil.
func (t *Transport) LocalAddr() net.Addr {
	if t.closed {
		return nil
	}
	sa, err := t.ops.Getsockname(t.fd)
	if err != nil {
		return nil
	}
	return socket.AddrFromSockaddr(sa)
}
