// Package unixdgram provides a transport over Unix domain datagram sockets.
package unixdgram

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"snmpcarrier/pkg/transport"
	"snmpcarrier/pkg/transport/dgram"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Transport is a Unix domain datagram socket bound to a reactor. Socket
// files it binds are removed again when the transport is closed.
type Transport struct {
	*dgram.Transport

	path string
}

// New creates a Unix domain datagram transport.
func New(opts ...transport.Option) (*Transport, error) {
	d, err := dgram.New(unix.AF_UNIX, unix.SOCK_DGRAM, opts...)
	if err != nil {
		return nil, err
	}

	t := &Transport{Transport: d}
	d.SetOwner(t)
	return t, nil
}

// TempAddr returns a fresh socket path in the temporary directory.
func TempAddr() *net.UnixAddr {
	name := fmt.Sprintf("snmpcarrier-%s.sock", uuid.NewString())
	return &net.UnixAddr{Name: filepath.Join(os.TempDir(), name), Net: "unixgram"}
}

// OpenClientMode binds the socket to iface. Without iface a temporary path
// is bound so that peers can reply.
func (t *Transport) OpenClientMode(iface net.Addr) error {
	if iface == nil {
		iface = TempAddr()
	}
	return t.bind(iface)
}

// OpenServerMode binds the socket to iface.
func (t *Transport) OpenServerMode(iface net.Addr) error {
	if iface == nil {
		return t.Transport.OpenServerMode(nil)
	}
	return t.bind(iface)
}

func (t *Transport) bind(iface net.Addr) error {
	if err := t.Transport.Bind(iface); err != nil {
		return err
	}
	if ua, ok := iface.(*net.UnixAddr); ok && ua.Name != "" && ua.Name[0] != '@' {
		t.path = ua.Name
	}
	return nil
}

// Path returns the socket file bound by this transport, if any.
func (t *Transport) Path() string {
	return t.path
}

// CloseTransport closes the socket and removes its socket file.
func (t *Transport) CloseTransport() error {
	if t.Closed() {
		return nil
	}

	err := t.Transport.CloseTransport()
	if t.path != "" {
		if rmErr := os.Remove(t.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("removing %s: %w", t.path, rmErr))
		}
		t.path = ""
	}
	return err
}
