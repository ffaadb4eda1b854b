// Package udp provides UDP over IPv4 and IPv6 transports.
package udp

import (
	"snmpcarrier/pkg/transport"
	"snmpcarrier/pkg/transport/dgram"

	"golang.org/x/sys/unix"
)

// Transport is a UDP socket bound to a reactor.
type Transport struct {
	*dgram.Transport
}

// New creates an IPv4 UDP transport.
func New(opts ...transport.Option) (*Transport, error) {
	return newTransport(unix.AF_INET, opts)
}

// New6 creates an IPv6 UDP transport.
func New6(opts ...transport.Option) (*Transport, error) {
	return newTransport(unix.AF_INET6, opts)
}

func newTransport(family int, opts []transport.Option) (*Transport, error) {
	d, err := dgram.New(family, unix.SOCK_DGRAM, opts...)
	if err != nil {
		return nil, err
	}

	t := &Transport{Transport: d}
	d.SetOwner(t)
	return t, nil
}
