// Package requestmeta captures who sent a request (address and user agent)
// so later layers can key limits and record provenance without touching
// the *http.Request.
package requestmeta

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/bossnet/party-signup/internal/model"
)

type contextKeyProvenance struct{}

// Resolver determines the client address of a request. Forwarding headers
// are only believed when the connecting peer is a trusted proxy; the zero
// value trusts nobody and always uses the socket address.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver parses trusted proxy entries, each a single address or a CIDR
// range.
func NewResolver(trusted []string) (*Resolver, error) {
	prefixes, err := ParseTrusted(trusted)
	if err != nil {
		return nil, err
	}
	return &Resolver{trusted: prefixes}, nil
}

// ParseTrusted converts addresses and CIDR ranges into prefixes.
func ParseTrusted(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// Middleware stores the request's provenance in its context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prov := model.Provenance{
			IPAddress: res.ClientIP(r),
			UserAgent: r.Header.Get("User-Agent"),
		}
		next.ServeHTTP(w, r.WithContext(WithProvenance(r.Context(), prov)))
	})
}

// ClientIP returns the client address of r. Behind trusted proxies it walks
// X-Forwarded-For from the right and returns the first hop that is not a
// trusted proxy; X-Real-IP is used when there is no X-Forwarded-For.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := PeerIP(r)
	if res == nil || !res.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !res.isTrusted(hop) {
				return hop
			}
			peer = hop
		}
		return peer
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (res *Resolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// WithProvenance injects provenance into a context. Useful in tests that
// don't run the middleware chain.
func WithProvenance(ctx context.Context, prov model.Provenance) context.Context {
	return context.WithValue(ctx, contextKeyProvenance{}, prov)
}

// FromContext returns the provenance stored by Middleware.
func FromContext(ctx context.Context) model.Provenance {
	prov, _ := ctx.Value(contextKeyProvenance{}).(model.Provenance)
	return prov
}

// PeerIP returns the address of the connecting socket without the port.
func PeerIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Anonymize drops the host part of an address for logging: the last octet
// of IPv4, the last 80 bits of IPv6.
func Anonymize(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IP(v4).Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
