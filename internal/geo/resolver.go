// Package geo resolves client IP addresses to coarse locations through an
// external geolocation service fronted by a bounded TTL cache.
package geo

import (
	"context"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/adalliance/tracker/internal/visit"
)

// localLocation is the fixed result for private and loopback addresses;
// those never hit the network.
var localLocation = visit.Location{
	Country:     "Local",
	CountryCode: "LOCAL",
	City:        "Localhost",
}

// Lookuper is the upstream lookup; satisfied by *Client.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (*visit.Location, error)
}

// Resolver implements visit.Geolocator: cache in front of the upstream
// service, with private-IP short-circuit. Lookup failures degrade to an
// unknown location and are cached under the failure TTL so the next
// request for the same IP does not repeat the call immediately.
type Resolver struct {
	client Lookuper
	cache  *Cache
	log    zerolog.Logger
}

func NewResolver(client Lookuper, cache *Cache, log zerolog.Logger) *Resolver {
	return &Resolver{client: client, cache: cache, log: log}
}

// Resolve returns the location for ip, or nil when unknown. It never
// returns an error: geolocation is best-effort and must not fail visit
// creation.
func (r *Resolver) Resolve(ctx context.Context, ip string) *visit.Location {
	if ip == "" || ip == "unknown" {
		return nil
	}
	if IsPrivateIP(ip) {
		loc := localLocation
		return &loc
	}

	if loc, ok := r.cache.Get(ip); ok {
		return loc
	}

	loc, err := r.client.Lookup(ctx, ip)
	if err != nil {
		r.log.Warn().Str("ip", ip).Err(err).Msg("geolocation lookup failed, treating as unknown")
		r.cache.Put(ip, nil)
		return nil
	}

	r.cache.Put(ip, loc)
	return loc
}

// CacheStats exposes the underlying cache counters for metrics.
func (r *Resolver) CacheStats() CacheStats { return r.cache.Stats() }

// SweepExpired triggers an expiry sweep of the cache and reports the
// number of entries removed.
func (r *Resolver) SweepExpired() int { return r.cache.SweepExpired() }

// IsPrivateIP reports whether ip is loopback, link-local, or RFC1918/ULA
// private space. Unparseable values are treated as non-private.
func IsPrivateIP(ip string) bool {
	if strings.EqualFold(ip, "localhost") {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast()
}
