package socket

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// SockaddrFromAddr converts addr into a socket address for a socket of the
// given family. Only literal addresses are accepted, no names are resolved.
func SockaddrFromAddr(family int, addr net.Addr) (unix.Sockaddr, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return sockaddrFromIP(family, a.IP, a.Port, a.Zone)
	case *net.UnixAddr:
		if family != unix.AF_UNIX {
			return nil, fmt.Errorf("unix address %q on non-unix socket", a.Name)
		}
		return &unix.SockaddrUnix{Name: a.Name}, nil
	case nil:
		return nil, fmt.Errorf("nil address")
	default:
		return nil, fmt.Errorf("unsupported address type %T", addr)
	}
}

func sockaddrFromIP(family int, ip net.IP, port int, zone string) (unix.Sockaddr, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("port %d not in [0, 65535]", port)
	}

	switch family {
	case unix.AF_INET:
		sa := &unix.SockaddrInet4{Port: port}
		if len(ip) == 0 {
			return sa, nil
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("%s is not an IPv4 address", ip)
		}
		copy(sa.Addr[:], ip4)
		return sa, nil
	case unix.AF_INET6:
		sa := &unix.SockaddrInet6{Port: port}
		if len(ip) == 0 {
			return sa, nil
		}
		ip16 := ip.To16()
		if ip16 == nil {
			return nil, fmt.Errorf("%s is not an IP address", ip)
		}
		copy(sa.Addr[:], ip16)
		if zone != "" {
			ifi, err := net.InterfaceByName(zone)
			if err != nil {
				return nil, fmt.Errorf("zone %q: %w", zone, err)
			}
			sa.ZoneId = uint32(ifi.Index)
		}
		return sa, nil
	default:
		return nil, fmt.Errorf("IP address on socket family %d", family)
	}
}

// AddrFromSockaddr converts a socket address returned by the kernel into a
// net.Addr. It returns nil for unknown address types.
func AddrFromSockaddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		addr := &net.UDPAddr{IP: ip, Port: a.Port}
		if a.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(a.ZoneId)); err == nil {
				addr.Zone = ifi.Name
			}
		}
		return addr
	case *unix.SockaddrUnix:
		return &net.UnixAddr{Name: a.Name, Net: "unixgram"}
	default:
		return nil
	}
}
