// Package dgram implements the datagram socket behavior shared by the udp
// and unixdgram transports: queued sends flushed on write readiness and one
// recvfrom per read readiness.
package dgram

import (
	"errors"
	"fmt"
	"net"

	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/socket"
	"snmpcarrier/pkg/transport"

	"github.com/Workiva/go-datastructures/queue"
	"golang.org/x/sys/unix"
)

// MaxDatagramSize is the receive buffer size, large enough for any
// datagram.
const MaxDatagramSize = 65535

type outgoing struct {
	msg  []byte
	dst  unix.Sockaddr
	addr net.Addr
}

// Stats counts the datagrams handled by a transport.
type Stats struct {
	Sent     uint64
	Received uint64
	Dropped  uint64
	Pending  int
}

// Transport is a datagram socket bound to a reactor.
type Transport struct {
	*transport.Transport

	owner   carrier.Transport
	queue   *queue.Queue
	recvBuf []byte
	stats   Stats
}

// New creates a datagram socket of the given family and registers it.
func New(family, sotype int, opts ...transport.Option) (*Transport, error) {
	d := &Transport{
		queue:   queue.New(16),
		recvBuf: make([]byte, MaxDatagramSize),
	}
	d.owner = d

	base, err := transport.New(d, append([]transport.Option{transport.WithFamily(family, sotype)}, opts...)...)
	if err != nil {
		return nil, err
	}
	d.Transport = base
	return d, nil
}

// SetOwner sets the transport handed to receive callbacks. Transports that
// embed *Transport pass themselves.
func (d *Transport) SetOwner(t carrier.Transport) {
	d.owner = t
}

// OpenClientMode binds the socket to iface if it is not nil. Otherwise the
// kernel picks a local address on the first send.
func (d *Transport) OpenClientMode(iface net.Addr) error {
	if iface == nil {
		return nil
	}
	return d.Bind(iface)
}

// OpenServerMode binds the socket to iface.
func (d *Transport) OpenServerMode(iface net.Addr) error {
	if iface == nil {
		return &carrier.ConfigurationError{Op: "server mode requires a local address"}
	}
	return d.Bind(iface)
}

// Bind binds the socket to addr.
func (d *Transport) Bind(addr net.Addr) error {
	if d.Closed() {
		return carrier.ErrClosed
	}

	sa, err := socket.SockaddrFromAddr(d.Family(), addr)
	if err != nil {
		return &carrier.ConfigurationError{Op: fmt.Sprintf("bad local address %v", addr), Err: err}
	}
	if err := d.Ops().Bind(d.FD(), sa); err != nil {
		return fmt.Errorf("bind(%s): %w", addr, err)
	}

	d.Logger().VerboseMsg("socket %d: bound to %s", d.FD(), addr)
	return nil
}

// SendMessage queues msg for dst and requests write readiness.
func (d *Transport) SendMessage(msg []byte, dst net.Addr) error {
	if d.Closed() {
		return carrier.ErrClosed
	}

	sa, err := socket.SockaddrFromAddr(d.Family(), dst)
	if err != nil {
		return fmt.Errorf("destination %v: %w", dst, err)
	}

	out := outgoing{msg: append([]byte(nil), msg...), dst: sa, addr: dst}
	if err := d.queue.Put(out); err != nil {
		if errors.Is(err, queue.ErrDisposed) {
			return carrier.ErrClosed
		}
		return fmt.Errorf("queueing message: %w", err)
	}

	d.Logger().VerboseMsg("socket %d: queued %d octets for %s", d.FD(), len(msg), dst)
	return d.SetWritable(true)
}

// HandleWrite sends one queued datagram. Datagrams the kernel refuses are
// dropped, the protocol layer above is responsible for retries.
func (d *Transport) HandleWrite() {
	if !d.queue.Empty() {
		items, err := d.queue.Get(1)
		if err == nil && len(items) == 1 {
			d.send(items[0].(outgoing))
		}
	}

	if d.queue.Empty() {
		if err := d.SetWritable(false); err != nil && !d.Closed() {
			d.Logger().ErrorMsg("socket %d: %s", d.FD(), err)
		}
	}
}

func (d *Transport) send(out outgoing) {
	err := d.Ops().Sendto(d.FD(), out.msg, 0, out.dst)
	if err == nil {
		d.stats.Sent++
		d.Logger().VerboseMsg("socket %d: sent %d octets to %s", d.FD(), len(out.msg), out.addr)
		return
	}

	d.stats.Dropped++
	if socket.IsTemporary(err) {
		d.Logger().VerboseMsg("socket %d: sendto %s: %s, message dropped", d.FD(), out.addr, err)
		return
	}
	d.Logger().ErrorMsg("socket %d: sendto %s: %s", d.FD(), out.addr, err)
}

// HandleRead receives one datagram and delivers it to the receive callback.
func (d *Transport) HandleRead() {
	n, from, err := d.Ops().Recvfrom(d.FD(), d.recvBuf, 0)
	if err != nil {
		switch {
		case socket.IsTemporary(err):
		case errors.Is(err, unix.ECONNREFUSED), errors.Is(err, unix.ECONNRESET):
			// ICMP errors for earlier sends surface here
			d.Logger().VerboseMsg("socket %d: recvfrom: %s", d.FD(), err)
		default:
			d.Logger().ErrorMsg("socket %d: recvfrom: %s", d.FD(), err)
		}
		return
	}

	msg := append([]byte(nil), d.recvBuf[:n]...)
	src := socket.AddrFromSockaddr(from)
	d.stats.Received++
	d.Logger().VerboseMsg("socket %d: received %d octets from %v", d.FD(), n, src)

	if !d.Deliver(d.owner, src, msg) {
		d.stats.Dropped++
		d.Logger().VerboseMsg("socket %d: no receiver registered, message dropped", d.FD())
	}
}

// CloseTransport discards queued datagrams and closes the socket.
func (d *Transport) CloseTransport() error {
	if pending := d.queue.Dispose(); len(pending) > 0 {
		d.stats.Dropped += uint64(len(pending))
		d.Logger().VerboseMsg("socket %d: %d queued messages discarded", d.FD(), len(pending))
	}
	return d.Transport.CloseTransport()
}

// Stats returns the datagram counters.
func (d *Transport) Stats() Stats {
	s := d.stats
	s.Pending = int(d.queue.Len())
	return s
}
