package auth

import (
	"context"
	"sync"
	"time"

	"quizbot/internal/storage"
	"quizbot/pkg/logx"
)

// Store is the authoritative source of access records.
type Store interface {
	IsSudo(ctx context.Context, userID int64) (bool, error)
	GetEntitlement(ctx context.Context, userID int64, kind string) (storage.Entitlement, bool, error)
	DeleteEntitlement(ctx context.Context, userID int64, kind string) error
}

// Resolver composes the three authorization predicates into one access
// decision. Every resolution, positive or negative, is written back to the
// cache with the standard TTL.
type Resolver struct {
	store Store
	cache *Cache
	log   logx.Logger

	mu  sync.RWMutex
	ttl time.Duration

	now func() time.Time
}

func NewResolver(store Store, cache *Cache, ttl time.Duration, log logx.Logger) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Resolver{store: store, cache: cache, log: log, ttl: ttl, now: time.Now}
}

// SetClock overrides the resolver's time source. Test hook.
func (r *Resolver) SetClock(now func() time.Time) { r.now = now }

// SetTTL applies a new cache TTL for future resolutions (config reload).
func (r *Resolver) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r.mu.Lock()
	r.ttl = ttl
	r.mu.Unlock()
}

func (r *Resolver) cacheTTL() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ttl
}

// Invalidate drops every cached decision for a user. Called after grants
// and revocations so they take effect immediately.
func (r *Resolver) Invalidate(userID int64) {
	r.cache.Invalidate(userID, KindSudo)
	r.cache.Invalidate(userID, KindToken)
	r.cache.Invalidate(userID, KindPremium)
}

// HasAccess reports whether the user may run gated operations:
// sudo, active premium, or active token — in that order.
func (r *Resolver) HasAccess(ctx context.Context, userID int64) bool {
	if r.IsSudo(ctx, userID) {
		return true
	}
	if r.IsPremiumActive(ctx, userID) {
		return true
	}
	return r.IsTokenActive(ctx, userID)
}

// IsSudo reports permanent operator status. No expiry.
func (r *Resolver) IsSudo(ctx context.Context, userID int64) bool {
	if dec, ok := r.cache.Get(userID, KindSudo); ok {
		return dec
	}
	dec, err := r.store.IsSudo(ctx, userID)
	if err != nil {
		// Fail closed, and do not poison the cache with an error-path result.
		r.log.Warn("sudo lookup failed", logx.Int64("user_id", userID), logx.Err(err))
		return false
	}
	r.cache.Put(userID, KindSudo, dec, r.cacheTTL())
	return dec
}

// IsTokenActive reports a token grant whose expiry is strictly in the
// future. Expired token rows are removed by the sweeper, not here.
func (r *Resolver) IsTokenActive(ctx context.Context, userID int64) bool {
	return r.timeBounded(ctx, userID, KindToken, false)
}

// IsPremiumActive reports a premium grant whose expiry is strictly in the
// future. A stored-but-expired premium record is deleted at the source:
// the store has no TTL-driven auto-delete for premium.
func (r *Resolver) IsPremiumActive(ctx context.Context, userID int64) bool {
	return r.timeBounded(ctx, userID, KindPremium, true)
}

func (r *Resolver) timeBounded(ctx context.Context, userID int64, kind Kind, cleanExpired bool) bool {
	if dec, ok := r.cache.Get(userID, kind); ok {
		return dec
	}
	ent, found, err := r.store.GetEntitlement(ctx, userID, string(kind))
	if err != nil {
		r.log.Warn("entitlement lookup failed",
			logx.Int64("user_id", userID), logx.String("kind", string(kind)), logx.Err(err))
		return false
	}

	dec := found && ent.ExpiresAt.After(r.now())
	if found && !dec && cleanExpired {
		if derr := r.store.DeleteEntitlement(ctx, userID, string(kind)); derr != nil {
			r.log.Warn("expired entitlement cleanup failed",
				logx.Int64("user_id", userID), logx.String("kind", string(kind)), logx.Err(derr))
		}
	}
	r.cache.Put(userID, kind, dec, r.cacheTTL())
	return dec
}
