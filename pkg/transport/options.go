package transport

import (
	"snmpcarrier/pkg/config"
	"snmpcarrier/pkg/log"
	"snmpcarrier/pkg/reactor"
	"snmpcarrier/pkg/socket"
)

// Option configures New.
type Option func(*options)

type options struct {
	fd         int
	hasFD      bool
	family     int
	sotype     int
	reactor    reactor.Reactor
	bufferSize int
	logger     *log.Logger
	deps       *config.Dependencies
}

func defaultOptions() options {
	return options{
		fd:         -1,
		bufferSize: socket.DefaultBufferSize,
	}
}

// WithSocket wraps an already open socket instead of creating one. The
// transport takes ownership and closes it in CloseTransport.
func WithSocket(fd int) Option {
	return func(o *options) {
		o.fd = fd
		o.hasFD = true
	}
}

// WithFamily sets the address family and socket type, e.g. unix.AF_INET
// and unix.SOCK_DGRAM.
func WithFamily(family, sotype int) Option {
	return func(o *options) {
		o.family = family
		o.sotype = sotype
	}
}

// WithReactor registers the socket with r instead of reactor.Current().
func WithReactor(r reactor.Reactor) Option {
	return func(o *options) {
		o.reactor = r
	}
}

// WithBufferSize sets the minimum socket buffer size. Zero disables tuning.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithLogger sets the logger for verbose socket diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDependencies injects socket operations.
func WithDependencies(deps *config.Dependencies) Option {
	return func(o *options) {
		o.deps = deps
	}
}
