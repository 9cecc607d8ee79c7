package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds the proxies whose forwarding headers are trusted
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies
	prefixes       []netip.Prefix
}

// NewIPConfig parses the trusted proxy CIDRs once, skipping invalid ones
func NewIPConfig(trustedProxies []string) *IPConfig {
	cfg := &IPConfig{TrustedProxies: trustedProxies}
	for _, cidr := range trustedProxies {
		if prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr)); err == nil {
			cfg.prefixes = append(cfg.prefixes, prefix.Masked())
		}
	}
	return cfg
}

// ExtractClientIP returns the client address. X-Forwarded-For and X-Real-IP are honoured only
// when the direct peer is a trusted proxy, so clients cannot pick the address the per-IP
// limits are keyed on.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := remoteAddr(r)

	if config == nil || !config.trusts(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			if addr, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
				return addr.String()
			}
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}

	return remoteIP
}

func (c *IPConfig) trusts(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range c.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteAddr strips the port from RemoteAddr when present
func remoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
