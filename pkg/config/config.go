// Package config holds the configuration of the snmpcarrier commands and
// the injectable dependencies used to construct transports.
package config

import (
	"fmt"
	"net"
	"time"

	"snmpcarrier/pkg/log"

	"github.com/google/uuid"
)

// Protocol is the socket family a command operates on.
type Protocol int

const (
	ProtoUDP  Protocol = 1
	ProtoUDP6 Protocol = 2
	ProtoUnix Protocol = 3
)

func (p Protocol) String() string {
	switch p {
	case ProtoUDP:
		return "udp"
	case ProtoUDP6:
		return "udp6"
	case ProtoUnix:
		return "unix"
	default:
		return ""
	}
}

// Shared contains the configuration common to all commands.
type Shared struct {
	ID         string
	Protocol   Protocol
	Host       string
	Port       int
	Path       string
	BufferSize int
	Verbose    bool
	Timeout    time.Duration

	Logger *log.Logger
	Deps   *Dependencies
}

// Validate checks the Shared configuration and returns all errors found.
func (c *Shared) Validate() []error {
	var errors []error

	switch c.Protocol {
	case ProtoUDP, ProtoUDP6:
		if err := validatePort(c.Port); err != nil {
			errors = append(errors, fmt.Errorf("port: %s", err))
		}
		if err := validateHost(c.Protocol, c.Host); err != nil {
			errors = append(errors, fmt.Errorf("host: %s", err))
		}
	case ProtoUnix:
		if c.Path == "" {
			errors = append(errors, fmt.Errorf("unix transport requires a socket path"))
		}
	default:
		errors = append(errors, fmt.Errorf("unsupported protocol %d", c.Protocol))
	}

	if c.BufferSize < 0 {
		errors = append(errors, fmt.Errorf("'--buffer-size' must not be negative"))
	}
	if c.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("'--timeout' must be positive"))
	}

	return errors
}

// Addr returns the transport address described by the configuration.
// Validate must have succeeded.
func (c *Shared) Addr() net.Addr {
	if c.Protocol == ProtoUnix {
		return &net.UnixAddr{Name: c.Path, Net: "unixgram"}
	}
	return &net.UDPAddr{IP: net.ParseIP(c.Host), Port: c.Port}
}

// GenerateId returns a short random identifier used to tag log output.
func GenerateId() string {
	return uuid.NewString()[:8]
}

func validateHost(proto Protocol, host string) error {
	if host == "" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%q is not an IP address", host)
	}
	if proto == ProtoUDP && ip.To4() == nil {
		return fmt.Errorf("%s is not an IPv4 address, use udp6://", host)
	}
	return nil
}
