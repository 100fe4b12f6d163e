package tenants

import (
	"net"
	"strings"
)

// NormalizeHost strips the port, lowercases and drops a trailing dot.
func NormalizeHost(hostname string) string {
	h := strings.TrimSpace(hostname)
	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	h = strings.Trim(h, "[]")
	h = strings.ToLower(h)
	return strings.TrimSuffix(h, ".")
}

// FirstLabel returns the first dot-delimited label ("acme" for "acme.example.com").
func FirstLabel(host string) string {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}
