package common

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// GoCache is the caching layer implemented by go-cache.
type GoCache struct {
	*gocache.Cache
}

// NewGoCache creates a go-cache cache with a given default expiration duration
// and cleanup interval.
func NewGoCache(defaultExpiration, cleanupInterval time.Duration) *GoCache {
	return &GoCache{
		Cache: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Add adds an item only if the key is absent or expired. Returns an error
// otherwise.
func (gc *GoCache) Add(key string, value interface{}) error {
	return gc.Cache.Add(key, value, gocache.DefaultExpiration)
}

// Set replaces any existing item using the default expiration.
func (gc *GoCache) Set(key string, value interface{}) {
	gc.Cache.SetDefault(key, value)
}

// FirstSeen records key and reports whether it was not already present. It
// is the dedup primitive for ledger notifications delivered more than once.
func (gc *GoCache) FirstSeen(key string) bool {
	return gc.Add(key, struct{}{}) == nil
}
