package credentials

import (
	"sync"
	"time"
)

// GlobalKey is the reserved cache key holding the shared fallback credential.
const GlobalKey = "global"

// Status describes a cache entry without exposing the credential value.
type Status struct {
	Present   bool
	Preview   string
	ExpiresAt time.Time
	Global    bool
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache is a TTL keyed store for upstream API credentials. Entries expire
// lazily on read; the global fallback entry never expires.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Set stores a credential under key, resetting its TTL.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{value: value}
	if key != GlobalKey {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = e
}

// Get returns the credential under key. An expired entry is evicted and
// reported as a miss.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Clear removes the entry under key. Clearing the global key removes the
// shared fallback.
func (c *Cache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// StatusFor reports whether key resolves to a credential and which one,
// without returning the full value. Preview is at most the first eight
// characters of the credential.
func (c *Cache) StatusFor(key string) Status {
	if v, ok := c.Get(key); ok {
		st := Status{Present: true, Preview: preview(v), Global: key == GlobalKey}
		c.mu.RLock()
		st.ExpiresAt = c.entries[key].expiresAt
		c.mu.RUnlock()
		return st
	}
	if key != GlobalKey {
		if v, ok := c.Get(GlobalKey); ok {
			return Status{Present: true, Preview: preview(v), Global: true}
		}
	}
	return Status{}
}

func preview(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
