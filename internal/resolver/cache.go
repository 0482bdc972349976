package resolver

import (
	"sync"

	"github.com/hiroksarker/testgenius-ai-sub000/api/schemas"
)

type cacheKey struct {
	description string
	elementType string
}

// CacheStats is a snapshot of cache effectiveness counters.
type CacheStats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// matchCache memoizes resolved matches for the lifetime of one resolver.
// Entries never expire on their own; the owner clears the cache when the
// page state it was built against is gone.
type matchCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*schemas.ElementMatch
	hits    uint64
	misses  uint64
}

func newMatchCache() *matchCache {
	return &matchCache{entries: make(map[cacheKey]*schemas.ElementMatch)}
}

func (c *matchCache) get(description, elementType string) (*schemas.ElementMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[cacheKey{description, elementType}]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return m, ok
}

func (c *matchCache) put(description, elementType string, m *schemas.ElementMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{description, elementType}] = m
}

func (c *matchCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*schemas.ElementMatch)
}

func (c *matchCache) stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
}
