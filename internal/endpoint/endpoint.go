// Package endpoint resolves WAF engine addressing from connection strings
// and explicit overrides.
package endpoint

import (
	"net"
	"strconv"
	"strings"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 9089
)

var schemes = []string{"tls://", "tcp://", "https://", "http://"}

// Endpoint is a resolved (host, port) pair.
type Endpoint struct {
	Host string
	Port int
}

// Default returns the fallback endpoint used when nothing resolves.
func Default() Endpoint {
	return Endpoint{Host: DefaultHost, Port: DefaultPort}
}

// Addr renders the endpoint in dialable host:port form.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Resolve parses a raw connection string into an Endpoint. Recognized scheme
// prefixes and any path suffix are stripped first; a leading ":" means the
// default host with an explicit port. Resolve never fails: an empty or
// unparseable input yields (zero, false) and the caller falls back to
// defaults.
func Resolve(raw string) (Endpoint, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, false
	}
	for _, scheme := range schemes {
		if strings.HasPrefix(strings.ToLower(s), scheme) {
			s = s[len(scheme):]
			break
		}
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return Endpoint{}, false
	}
	if strings.HasPrefix(s, ":") {
		port, ok := parsePort(s[1:])
		if !ok {
			return Endpoint{}, false
		}
		return Endpoint{Host: DefaultHost, Port: port}, true
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// A bare hostname is still a usable endpoint on the default port.
		if !strings.Contains(s, ":") {
			return Endpoint{Host: s, Port: DefaultPort}, true
		}
		return Endpoint{}, false
	}
	if host == "" {
		host = DefaultHost
	}
	port, ok := parsePort(portStr)
	if !ok {
		return Endpoint{}, false
	}
	return Endpoint{Host: host, Port: port}, true
}

func parsePort(s string) (int, bool) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}
