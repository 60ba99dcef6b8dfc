// Package memory provides an in-process response cache bounded by entry
// lifetime and entry count.
package memory

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.ResponseCache = (*Cache)(nil)

// Default configuration values.
const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 1000
)

// Cache wraps go-cache with a size bound. When full, the entry closest to
// expiry is evicted, which with a single TTL is the oldest entry.
type Cache struct {
	// mu serialises Set so the size check and eviction are atomic.
	mu         sync.Mutex
	items      *gocache.Cache
	maxEntries int
}

// New creates a cache. Non-positive values select the defaults.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		items:      gocache.New(ttl, ttl/2),
		maxEntries: maxEntries,
	}
}

// Get returns a live entry.
func (c *Cache) Get(key string) (string, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set stores value with the default TTL.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items.Get(key); !exists {
		c.items.DeleteExpired()
		for c.items.ItemCount() >= c.maxEntries {
			if !c.evictOne() {
				break
			}
		}
	}
	c.items.SetDefault(key, value)
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.items.Delete(key)
}

// Len returns the number of entries, which may include expired entries
// not yet collected.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.items.Flush()
}

func (c *Cache) evictOne() bool {
	var (
		victim  string
		soonest int64
		found   bool
	)
	for k, item := range c.items.Items() {
		if !found || item.Expiration < soonest {
			victim, soonest, found = k, item.Expiration, true
		}
	}
	if found {
		c.items.Delete(victim)
	}
	return found
}
