// Package socket wraps the raw socket system calls used by the carrier
// transports behind the Ops interface, so tests can simulate OS failures.
package socket

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Ops is the set of socket system calls the transports rely on.
type Ops interface {
	Socket(family, sotype int) (int, error)
	GetsockoptInt(fd, level, opt int) (int, error)
	SetsockoptInt(fd, level, opt, value int) error
	SetNonblock(fd int, nonblocking bool) error
	Bind(fd int, sa unix.Sockaddr) error
	Getsockname(fd int) (unix.Sockaddr, error)
	Sendto(fd int, p []byte, flags int, to unix.Sockaddr) error
	Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error)
	Close(fd int) error
}

// System implements Ops with the operating system's socket calls.
type System struct{}

// Socket creates a close-on-exec socket.
func (System) Socket(family, sotype int) (int, error) {
	fd, err := unix.Socket(family, sotype, 0)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func (System) GetsockoptInt(fd, level, opt int) (int, error) {
	return unix.GetsockoptInt(fd, level, opt)
}

func (System) SetsockoptInt(fd, level, opt, value int) error {
	return unix.SetsockoptInt(fd, level, opt, value)
}

func (System) SetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

func (System) Bind(fd int, sa unix.Sockaddr) error {
	return unix.Bind(fd, sa)
}

func (System) Getsockname(fd int) (unix.Sockaddr, error) {
	return unix.Getsockname(fd)
}

func (System) Sendto(fd int, p []byte, flags int, to unix.Sockaddr) error {
	return unix.Sendto(fd, p, flags, to)
}

func (System) Recvfrom(fd int, p []byte, flags int) (int, unix.Sockaddr, error) {
	return unix.Recvfrom(fd, p, flags)
}

func (System) Close(fd int) error {
	return unix.Close(fd)
}

// IsTemporary reports whether err is a transient socket condition after
// which the operation may simply be attempted again on the next readiness
// notification.
func IsTemporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.ENOBUFS)
}
