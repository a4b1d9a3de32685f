// Package cache provides short-lived in-memory memoization of provider
// answers. Entries are keyed by (query text, provider, model) so a change of
// model or provider never reuses an answer produced by another one. The cache
// is process-local and never persisted; a restart starts cold.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/snipq/snipq/internal/provider"
)

// DefaultTTL is the validity window for a cached answer.
const DefaultTTL = 30 * time.Minute

type entry struct {
	value     string
	createdAt time.Time
}

// Cache is a TTL-bounded answer store. Expiry is lazy: expired entries are
// treated as absent on Get and evicted opportunistically.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a Cache with the given TTL. A non-positive ttl falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Key derives the cache key for a query against a provider and model. The
// composite is hashed so arbitrary query text cannot collide with the
// delimiter scheme.
func Key(query string, id provider.ID, model string) string {
	h := blake3.New()
	_, _ = fmt.Fprintf(h, "%d:%s", len(query), query)
	_, _ = fmt.Fprintf(h, "%d:%s", len(id), id)
	_, _ = fmt.Fprintf(h, "%d:%s", len(model), model)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the cached value for key, or ok=false if the key was never
// stored or its entry has outlived the TTL.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if c.now().Sub(e.createdAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.now().Sub(cur.createdAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Put stores value under key, overwriting any previous entry and resetting
// its timestamp.
func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, createdAt: c.now()}
	c.mu.Unlock()
}

// Len reports the number of physically held entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes all expired entries and reports how many were evicted.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) >= c.ttl {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}
