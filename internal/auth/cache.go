// Package auth decides whether a user may run gated operations. Decisions
// derive from the store (sudo list, token/premium entitlements) and are held
// in a short-TTL cache so bursts of traffic do not hammer the database.
package auth

import (
	"sync"
	"time"
)

// Kind names an independent authorization check. Each kind has its own
// cache slot per user.
type Kind string

const (
	KindSudo    Kind = "sudo"
	KindToken   Kind = "token"
	KindPremium Kind = "premium"
)

// DefaultTTL bounds how long a cached decision is trusted.
const DefaultTTL = 60 * time.Second

type cacheKey struct {
	userID int64
	kind   Kind
}

type cacheEntry struct {
	decision bool
	expiry   time.Time
}

// Cache maps (user id, check kind) to a boolean decision with a TTL.
// An entry past its expiry is treated as absent; entries are overwritten,
// never merged. There is no eviction beyond expiry-on-read: the key space
// equals the active user set.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// SetClock overrides the cache's time source. Test hook.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns (decision, true) on a live entry and (false, false) on a miss.
// An expired entry is a miss.
func (c *Cache) Get(userID int64, kind Kind) (bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[cacheKey{userID, kind}]
	now := c.now()
	c.mu.RUnlock()
	if !ok || !now.Before(e.expiry) {
		return false, false
	}
	return e.decision, true
}

func (c *Cache) Put(userID int64, kind Kind, decision bool, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.entries[cacheKey{userID, kind}] = cacheEntry{decision: decision, expiry: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate drops the entry for (userID, kind); the next Get is a miss.
func (c *Cache) Invalidate(userID int64, kind Kind) {
	c.mu.Lock()
	delete(c.entries, cacheKey{userID, kind})
	c.mu.Unlock()
}
