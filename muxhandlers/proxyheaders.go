package muxhandlers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrInvalidProxy is returned when a TrustedProxies entry is neither an IP
// address nor a CIDR range.
var ErrInvalidProxy = errors.New("proxy headers: invalid proxy entry")

// DefaultTrustedProxies are the loopback, private and CGNAT ranges trusted
// when ProxyHeadersConfig.TrustedProxies is empty.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"::1/128",
	"fc00::/7",
}

// ProxyHeadersConfig configures the ProxyHeaders middleware behaviour.
type ProxyHeadersConfig struct {
	// TrustedProxies lists the peers whose forwarding headers are honoured,
	// as addresses ("10.0.0.1") or prefixes ("fd00::/8").
	TrustedProxies []string

	// TrustCloudflare prefers CF-Connecting-IP over X-Forwarded-For.
	TrustCloudflare bool
}

// ProxyHeadersMiddleware returns a middleware that rewrites the request seen
// by the rest of the chain from reverse proxy headers, when the peer is a
// trusted proxy:
//
//   - RemoteAddr: CF-Connecting-IP (TrustCloudflare), X-Forwarded-For, X-Real-IP
//   - URL.Scheme: X-Forwarded-Proto, X-Forwarded-Scheme
//   - Host:       X-Forwarded-Host
//
// The original request is left untouched.
func ProxyHeadersMiddleware(cfg ProxyHeadersConfig) (mux.HandlerFunc, error) {
	entries := cfg.TrustedProxies
	if len(entries) == 0 {
		entries = DefaultTrustedProxies
	}

	trusted, err := parseTrustedProxies(entries)
	if err != nil {
		return nil, err
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		r := mc.Request()
		if !trusted.contains(r.RemoteAddr) {
			return mc.Next()
		}

		r = r.Clone(r.Context())

		if ip := forwardedClient(r.Header, cfg.TrustCloudflare); ip != "" {
			r.RemoteAddr = ip
		}

		if scheme := forwardedScheme(r.Header); scheme != "" {
			r.URL.Scheme = scheme
		}

		if host := r.Header.Get("X-Forwarded-Host"); host != "" {
			r.Host = host
		}

		return mc.NextWith(r)
	}, nil
}

type trustedProxies []netip.Prefix

func parseTrustedProxies(entries []string) (trustedProxies, error) {
	out := make(trustedProxies, 0, len(entries))

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
			}
			out = append(out, p.Masked())

			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}

	return out, nil
}

// contains reports whether the peer in remoteAddr, with or without a port,
// is a trusted proxy.
func (t trustedProxies) contains(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

func forwardedClient(h http.Header, cloudflare bool) string {
	if cloudflare {
		if ip := validIP(h.Get("CF-Connecting-IP")); ip != "" {
			return ip
		}
	}

	if xff := h.Get("X-Forwarded-For"); xff != "" {
		// Leftmost valid entry is the client.
		for part := range strings.SplitSeq(xff, ",") {
			if ip := validIP(part); ip != "" {
				return ip
			}
		}

		return ""
	}

	return validIP(h.Get("X-Real-IP"))
}

func forwardedScheme(h http.Header) string {
	for _, name := range []string{"X-Forwarded-Proto", "X-Forwarded-Scheme"} {
		if v := h.Get(name); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "http" || v == "https" {
				return v
			}

			return ""
		}
	}

	return ""
}

func validIP(s string) string {
	s = strings.TrimSpace(s)
	if _, err := netip.ParseAddr(s); err != nil {
		return ""
	}

	return s
}
