package country

import (
	"context"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/NERVsystems/tripmcp/pkg/monitoring"
)

// DefaultCacheSize bounds the number of cached coordinates.
const DefaultCacheSize = 100000

// cacheResolution rounds coordinates to 1e-4 degrees (about 11 m).
const cacheResolution = 1e4

type cacheKey struct {
	lat, lng int32
}

type cacheEntry struct {
	code  string
	found bool
}

// CachedLocator memoises lookups of an underlying Locator. Both hits and
// misses are cached so open-ocean samples are not re-tested.
type CachedLocator struct {
	next  Locator
	cache *lru.Cache[cacheKey, cacheEntry]
}

// NewCachedLocator wraps next with an LRU cache of the given size.
func NewCachedLocator(next Locator, size int) (*CachedLocator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachedLocator{next: next, cache: cache}, nil
}

// Lookup consults the cache before delegating.
func (c *CachedLocator) Lookup(ctx context.Context, lat, lng float64) (string, bool) {
	key := cacheKey{
		lat: int32(math.Round(lat * cacheResolution)),
		lng: int32(math.Round(lng * cacheResolution)),
	}

	if e, ok := c.cache.Get(key); ok {
		monitoring.RecordCacheHit(monitoring.CacheTypeCountry)
		return e.code, e.found
	}
	monitoring.RecordCacheMiss(monitoring.CacheTypeCountry)

	code, found := c.next.Lookup(ctx, lat, lng)
	monitoring.RecordLocatorLookup(found)
	c.cache.Add(key, cacheEntry{code: code, found: found})
	monitoring.UpdateCacheSize(monitoring.CacheTypeCountry, c.cache.Len())
	return code, found
}

// Len returns the number of cached coordinates.
func (c *CachedLocator) Len() int {
	return c.cache.Len()
}

// Purge empties the cache.
func (c *CachedLocator) Purge() {
	c.cache.Purge()
	monitoring.UpdateCacheSize(monitoring.CacheTypeCountry, 0)
}
