// Package cache keeps recent geocode lookups in process so repeated place
// names in one graph or timeline do not reach the store or the remote service.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// coords is one lookup result; nil fields record a known miss
type coords struct {
	lat, lon *float64
}

// PlaceCache stores geocode results by normalized place name
type PlaceCache struct {
	items   *gocache.Cache
	missTTL time.Duration
}

// NewPlaceCache creates a cache whose hits live for ttl and whose misses
// live for missTTL, after which the place is looked up again
func NewPlaceCache(ttl, missTTL time.Duration) *PlaceCache {
	cleanup := ttl
	if cleanup <= 0 || cleanup > 10*time.Minute {
		cleanup = 10 * time.Minute
	}
	if missTTL <= 0 {
		missTTL = ttl
	}
	return &PlaceCache{
		items:   gocache.New(ttl, cleanup),
		missTTL: missTTL,
	}
}

// FromConfig builds the cache described by config, or nil when disabled
func FromConfig(config model.CacheConfig) *PlaceCache {
	if !config.Enabled {
		return nil
	}
	return NewPlaceCache(config.TTL, config.MissTTL)
}

// PlaceKey normalizes a place name. Case and runs of whitespace do not
// distinguish places.
func PlaceKey(place string) string {
	return strings.ToLower(strings.Join(strings.Fields(place), " "))
}

// Get returns cached coordinates. found is false when the place was never
// cached or its entry expired; found with nil coordinates is a cached miss.
func (p *PlaceCache) Get(place string) (lat, lon *float64, found bool) {
	v, ok := p.items.Get(PlaceKey(place))
	if !ok {
		return nil, nil, false
	}
	c := v.(coords)
	return c.lat, c.lon, true
}

// Put caches a lookup result
func (p *PlaceCache) Put(place string, lat, lon *float64) {
	ttl := gocache.DefaultExpiration
	if lat == nil || lon == nil {
		lat, lon = nil, nil
		ttl = p.missTTL
	}
	p.items.Set(PlaceKey(place), coords{lat: lat, lon: lon}, ttl)
}

// Len returns the number of cached places, expired ones included until the
// next cleanup
func (p *PlaceCache) Len() int {
	return p.items.ItemCount()
}

// Clear drops every cached place
func (p *PlaceCache) Clear() {
	p.items.Flush()
}
