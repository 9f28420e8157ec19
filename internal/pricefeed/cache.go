package pricefeed

import (
	"sync"
	"time"
)

// Cache is a TTL cache for USD prices keyed by pair symbol. One instance is
// constructed per batch run and handed to the Service; there is no ambient
// package-level state.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]cacheEntry
}

type cacheEntry struct {
	priceUSD float64
	fetched  time.Time
}

// NewCache creates a price cache with the given time-to-live.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, m: make(map[string]cacheEntry)}
}

// Get returns the cached USD price for symbol if it has not expired.
func (c *Cache) Get(symbol string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[symbol]
	if !ok || time.Since(e.fetched) >= c.ttl {
		return 0, false
	}
	return e.priceUSD, true
}

// Set stores the USD price for symbol with the current timestamp.
func (c *Cache) Set(symbol string, priceUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[symbol] = cacheEntry{priceUSD: priceUSD, fetched: time.Now()}
}

// Reset drops all cached entries.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]cacheEntry)
}
