// Package format renders addresses and datagrams for console output.
package format

import (
	"fmt"
	"net"
	"strings"
)

// Addr joins host and port, bracketing IPv6 hosts.
func Addr(host string, port int) string {
	if strings.ContainsAny(host, ":") { // IPv6
		return fmt.Sprintf("[%s]:%d", host, port)
	} else { // IPv4
		return fmt.Sprintf("%s:%d", host, port)
	}
}

// Peer renders addr, or "-" if there is no address to show. Unbound unix
// sockets have an empty name.
func Peer(addr net.Addr) string {
	if addr == nil {
		return "-"
	}
	if s := addr.String(); s != "" {
		return s
	}
	return "-"
}
