package indicator

import (
	"github.com/jellydator/ttlcache/v3"
)

// FetchKey identifies one indicator fetch. Code is an ISO3 code or "all".
type FetchKey struct {
	Indicator string
	Code      string
	YearFrom  int
	YearTo    int
}

// Cache stores completed fetch results for the process lifetime. Entries
// are immutable once stored; concurrent population of the same key may
// duplicate a remote fetch but last write wins without corruption.
type Cache interface {
	Get(key FetchKey) ([]Observation, bool)
	Set(key FetchKey, obs []Observation)
}

// MemoryCache is the default Cache. Entries carry no TTL and are never
// evicted.
type MemoryCache struct {
	cache *ttlcache.Cache[FetchKey, []Observation]
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: ttlcache.New[FetchKey, []Observation]()}
}

// Get returns the cached observations for a key.
func (c *MemoryCache) Get(key FetchKey) ([]Observation, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set stores observations for a key.
func (c *MemoryCache) Set(key FetchKey, obs []Observation) {
	c.cache.Set(key, obs, ttlcache.NoTTL)
}
