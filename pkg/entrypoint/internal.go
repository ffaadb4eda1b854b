package entrypoint

import (
	"context"
	"fmt"
	"io"
	"net"

	"snmpcarrier/pkg/carrier"
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/format"
	"snmpcarrier/pkg/reactor"
	"snmpcarrier/pkg/transport"
	"snmpcarrier/pkg/transport/udp"
	"snmpcarrier/pkg/transport/unixdgram"
)

// eventLoop defines the interface of the reactor driven by the commands.
type eventLoop interface {
	reactor.Reactor
	Run(ctx context.Context) error
	Post(fn func()) error
	Running() bool
	Close() error
}

// loopFactory is a function type for creating event loops.
type loopFactory func(cfg reactor.LoopConfig) (eventLoop, error)

// realLoopFactory returns the epoll loop factory used in production.
func realLoopFactory() loopFactory {
	return func(cfg reactor.LoopConfig) (eventLoop, error) {
		l, err := reactor.NewLoop(cfg)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// carrierTransport is a transport that can report its local address.
type carrierTransport interface {
	carrier.Transport
	LocalAddr() net.Addr
}

// transportFactory is a function type for creating transports bound to r.
type transportFactory func(cfg *config.Shared, r reactor.Reactor) (carrierTransport, error)

// realTransportFactory returns the transport factory used in production.
func realTransportFactory() transportFactory {
	return newTransport
}

func newTransport(cfg *config.Shared, r reactor.Reactor) (carrierTransport, error) {
	opts := []transport.Option{
		transport.WithReactor(r),
		transport.WithBufferSize(cfg.BufferSize),
		transport.WithLogger(cfg.Logger),
		transport.WithDependencies(cfg.Deps),
	}

	switch cfg.Protocol {
	case config.ProtoUDP:
		t, err := udp.New(opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.ProtoUDP6:
		t, err := udp.New6(opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.ProtoUnix:
		t, err := unixdgram.New(opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.Protocol)
	}
}

func printDatagram(out io.Writer, dir string, peer net.Addr, msg []byte) {
	_, _ = fmt.Fprintf(out, "%s %s (%d octets)\n%s", dir, format.Peer(peer), len(msg), format.Payload(msg))
}
