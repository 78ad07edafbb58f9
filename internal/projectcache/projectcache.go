// Package projectcache caches project public keys so repeat requests for the
// same project skip the store (§4.7).
package projectcache

import (
	"sync"
	"time"
)

type entry struct {
	publicKey *string
	cachedAt  time.Time
}

// Cache maps project_id -> (public_key, cached_at) with a configurable TTL.
// Bounded only by project count, which spec.md §4.7 expects to be small.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[int32]entry
}

// New constructs a Cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[int32]entry),
	}
}

// Check returns (matched, found): found reports whether the cache can
// answer definitively for projectID; matched reports whether its cached key
// equals key. On a stale or missing entry, or on a live entry whose cached
// key doesn't match the submitted one, found is false and the caller must
// fall through to the store — a mismatch here only means "not current",
// since key rotation can make a cached key stale before its TTL expires.
func (c *Cache) Check(projectID int32, key string) (matched, found bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[projectID]
	if !ok || time.Since(e.cachedAt) > c.ttl {
		return false, false
	}
	if e.publicKey == nil {
		return true, true
	}
	if *e.publicKey != key {
		return false, false
	}
	return true, true
}

// Set refreshes the cache entry after a successful store-backed validation.
func (c *Cache) Set(projectID int32, publicKey *string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[projectID] = entry{publicKey: publicKey, cachedAt: time.Now()}
}

// Invalidate drops a project's cache entry. Project deletion does not call
// it; a deleted project's entry stays until its TTL expires.
func (c *Cache) Invalidate(projectID int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}
