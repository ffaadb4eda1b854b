// Package carrier defines the contract shared by all SNMP carrier
// transports: the Transport interface that concrete socket families
// implement, the Base every transport embeds, and the carrier errors.
package carrier

import (
	"net"
	"sync"
	"time"
)

// RecvFunc is invoked for every message a transport receives.
type RecvFunc func(t Transport, src net.Addr, msg []byte)

// Transport is one communication endpoint.
type Transport interface {
	// OpenClientMode prepares the transport for sending requests,
	// optionally bound to the local interface iface.
	OpenClientMode(iface net.Addr) error
	// OpenServerMode binds the transport to iface to receive requests.
	OpenServerMode(iface net.Addr) error
	// SendMessage queues msg for delivery to dst.
	SendMessage(msg []byte, dst net.Addr) error
	// CloseTransport releases every resource held by the transport.
	CloseTransport() error

	RegisterRecvFunc(fn RecvFunc) error
	UnregisterRecvFunc()
}

// Base holds the state every transport shares regardless of socket family.
//
// RetryCount and RetryInterval are part of the carrier surface but are not
// used by the transports in this module.
type Base struct {
	RetryCount    int
	RetryInterval time.Duration

	mu   sync.Mutex
	recv RecvFunc
}

// RegisterRecvFunc installs the receive callback. Only one callback may be
// registered at a time.
func (b *Base) RegisterRecvFunc(fn RecvFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recv != nil {
		return ErrCallbackRegistered
	}
	b.recv = fn
	return nil
}

// UnregisterRecvFunc removes the receive callback, if any.
func (b *Base) UnregisterRecvFunc() {
	b.mu.Lock()
	b.recv = nil
	b.mu.Unlock()
}

// Deliver hands msg to the registered callback. It reports false if no
// callback is registered and the message was dropped.
func (b *Base) Deliver(t Transport, src net.Addr, msg []byte) bool {
	b.mu.Lock()
	fn := b.recv
	b.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(t, src, msg)
	return true
}

// CloseTransport is the teardown hook concrete transports call before
// releasing their own resources.
func (b *Base) CloseTransport() error {
	b.UnregisterRecvFunc()
	return nil
}
