package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"snmpcarrier/pkg/config"
)

// Transport is a parsed transport argument.
type Transport struct {
	Protocol config.Protocol
	Host     string
	Port     int
	Path     string
}

var (
	inetRe = regexp.MustCompile(`^(udp|udp6)://(\[[^\]]*\]|[^:\[\]]*):(\d+)$`)
	unixRe = regexp.MustCompile(`^unix://(.+)$`)
)

// ParseTransport parses a transport string in the format "udp://host:port",
// "udp6://[host]:port" or "unix://path". The host can be empty or "*" to
// bind to all interfaces.
func ParseTransport(s string) (t Transport, err error) {
	if matches := unixRe.FindStringSubmatch(s); len(matches) == 2 {
		t.Protocol = config.ProtoUnix
		t.Path = matches[1]
		return t, nil
	}

	matches := inetRe.FindStringSubmatch(s)
	if len(matches) != 4 {
		return Transport{}, parsingError(s)
	}

	switch matches[1] {
	case "udp":
		t.Protocol = config.ProtoUDP
	case "udp6":
		t.Protocol = config.ProtoUDP6
	default:
		return Transport{}, parsingError(s)
	}

	t.Host = strings.TrimSuffix(strings.TrimPrefix(matches[2], "["), "]")
	if t.Host == "*" { // also counts as all interfaces
		t.Host = ""
	}

	t.Port, err = strconv.Atoi(matches[3])
	if err != nil || t.Port < 1 || t.Port > 65535 {
		return Transport{}, parsingError(s)
	}

	return t, nil
}

func parsingError(s string) error {
	return fmt.Errorf("parsing %s: format should be 'udp://host:port', 'udp6://[host]:port' or 'unix://path'", s)
}
