package auth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"quizbot/internal/storage"
	"quizbot/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type stubStore struct {
	mu sync.Mutex

	sudo map[int64]bool
	ents map[string]storage.Entitlement // key: "<id>/<kind>"

	sudoLookups int
	entLookups  int
	deletes     []string
}

func newStubStore() *stubStore {
	return &stubStore{sudo: map[int64]bool{}, ents: map[string]storage.Entitlement{}}
}

func entKey(id int64, kind string) string {
	return strconv.FormatInt(id, 10) + "/" + kind
}

func (s *stubStore) IsSudo(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sudoLookups++
	return s.sudo[userID], nil
}

func (s *stubStore) GetEntitlement(ctx context.Context, userID int64, kind string) (storage.Entitlement, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entLookups++
	e, ok := s.ents[entKey(userID, kind)]
	return e, ok, nil
}

func (s *stubStore) DeleteEntitlement(ctx context.Context, userID int64, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ents, entKey(userID, kind))
	s.deletes = append(s.deletes, kind)
	return nil
}

func newTestResolver(st *stubStore, clock *fakeClock) (*Resolver, *Cache) {
	cache := NewCache()
	cache.SetClock(clock.Now)
	r := NewResolver(st, cache, DefaultTTL, logx.Nop())
	r.SetClock(clock.Now)
	return r, cache
}

func TestCacheExpiryIsMiss(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := NewCache()
	c.SetClock(clock.Now)

	c.Put(1, KindToken, true, 60*time.Second)

	if dec, ok := c.Get(1, KindToken); !ok || !dec {
		t.Fatalf("Get right after Put = (%v, %v), want (true, true)", dec, ok)
	}

	clock.Advance(59 * time.Second)
	if _, ok := c.Get(1, KindToken); !ok {
		t.Fatal("entry at T+59s should still be a hit")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get(1, KindToken); ok {
		t.Fatal("entry at T+61s must be treated as absent")
	}
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := NewCache()
	c.SetClock(clock.Now)

	c.Put(7, KindSudo, true, time.Minute)
	c.Invalidate(7, KindSudo)
	if _, ok := c.Get(7, KindSudo); ok {
		t.Fatal("read after Invalidate must be a miss")
	}
}

func TestCacheOverwrite(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := NewCache()
	c.SetClock(clock.Now)

	c.Put(3, KindPremium, true, time.Minute)
	c.Put(3, KindPremium, false, time.Minute)
	dec, ok := c.Get(3, KindPremium)
	if !ok || dec {
		t.Fatalf("recomputation must overwrite: got (%v, %v), want (false, true)", dec, ok)
	}
}

func TestResolverCachesSingleLookupPerTTL(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	st := newStubStore()
	st.ents[entKey(1, "token")] = storage.Entitlement{
		UserID: 1, Kind: "token", ExpiresAt: clock.Now().Add(time.Hour),
	}
	r, _ := newTestResolver(st, clock)

	for i := 0; i < 5; i++ {
		if !r.IsTokenActive(context.Background(), 1) {
			t.Fatal("token should be active")
		}
	}
	if st.entLookups != 1 {
		t.Fatalf("entLookups = %d, want 1 (decisions within TTL come from cache)", st.entLookups)
	}

	clock.Advance(59 * time.Second)
	r.IsTokenActive(context.Background(), 1)
	if st.entLookups != 1 {
		t.Fatalf("entLookups at T+59s = %d, want 1", st.entLookups)
	}

	clock.Advance(2 * time.Second)
	r.IsTokenActive(context.Background(), 1)
	if st.entLookups != 2 {
		t.Fatalf("entLookups at T+61s = %d, want exactly 2", st.entLookups)
	}
}

func TestResolverCachesNegativeDecisions(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	st := newStubStore()
	r, _ := newTestResolver(st, clock)

	for i := 0; i < 10; i++ {
		if r.IsTokenActive(context.Background(), 42) {
			t.Fatal("unknown user must not have an active token")
		}
	}
	if st.entLookups != 1 {
		t.Fatalf("entLookups = %d, want 1 (negative result must be cached too)", st.entLookups)
	}
}

func TestResolverPremiumExpiryCleansStore(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	st := newStubStore()
	st.ents[entKey(9, "premium")] = storage.Entitlement{
		UserID: 9, Kind: "premium", ExpiresAt: clock.Now().Add(-time.Minute),
	}
	r, _ := newTestResolver(st, clock)

	if r.IsPremiumActive(context.Background(), 9) {
		t.Fatal("expired premium must report inactive")
	}
	if got := len(st.deletes); got != 1 || st.deletes[0] != "premium" {
		t.Fatalf("deletes = %v, want exactly one premium deletion", st.deletes)
	}

	// The negative decision is cached; a second check within the TTL issues
	// neither a lookup nor another delete.
	r.IsPremiumActive(context.Background(), 9)
	if st.entLookups != 1 {
		t.Fatalf("entLookups = %d, want 1", st.entLookups)
	}
	if len(st.deletes) != 1 {
		t.Fatalf("deletes = %v, want it unchanged", st.deletes)
	}
}

func TestResolverExpiredTokenIsNotDeleted(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	st := newStubStore()
	st.ents[entKey(5, "token")] = storage.Entitlement{
		UserID: 5, Kind: "token", ExpiresAt: clock.Now().Add(-time.Second),
	}
	r, _ := newTestResolver(st, clock)

	if r.IsTokenActive(context.Background(), 5) {
		t.Fatal("expired token must report inactive")
	}
	// Token rows expire via the sweeper, not resolver-side cleanup.
	if len(st.deletes) != 0 {
		t.Fatalf("deletes = %v, want none for tokens", st.deletes)
	}
}

func TestResolverExpiryIsStrict(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	st := newStubStore()
	st.ents[entKey(2, "premium")] = storage.Entitlement{
		UserID: 2, Kind: "premium", ExpiresAt: clock.Now(),
	}
	r, _ := newTestResolver(st, clock)

	// expiresAt == now is NOT strictly greater than now.
	if r.IsPremiumActive(context.Background(), 2) {
		t.Fatal("grant expiring exactly now must be inactive")
	}
}

func TestHasAccessComposition(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()

	tests := []struct {
		name    string
		sudo    bool
		token   time.Duration // offset from now; 0 = absent
		premium time.Duration
		want    bool
	}{
		{name: "nothing", want: false},
		{name: "sudo only", sudo: true, want: true},
		{name: "active token", token: time.Hour, want: true},
		{name: "active premium", premium: time.Hour, want: true},
		{name: "expired token", token: -time.Hour, want: false},
		{name: "expired premium active token", premium: -time.Hour, token: time.Hour, want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := newStubStore()
			st.sudo[1] = tt.sudo
			if tt.token != 0 {
				st.ents[entKey(1, "token")] = storage.Entitlement{UserID: 1, Kind: "token", ExpiresAt: clock.Now().Add(tt.token)}
			}
			if tt.premium != 0 {
				st.ents[entKey(1, "premium")] = storage.Entitlement{UserID: 1, Kind: "premium", ExpiresAt: clock.Now().Add(tt.premium)}
			}
			r, _ := newTestResolver(st, clock)
			if got := r.HasAccess(context.Background(), 1); got != tt.want {
				t.Fatalf("HasAccess = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolverInvalidateForcesFreshLookup(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	st := newStubStore()
	r, _ := newTestResolver(st, clock)

	r.IsSudo(context.Background(), 8)
	if st.sudoLookups != 1 {
		t.Fatalf("sudoLookups = %d, want 1", st.sudoLookups)
	}

	st.mu.Lock()
	st.sudo[8] = true
	st.mu.Unlock()
	r.Invalidate(8)

	if !r.IsSudo(context.Background(), 8) {
		t.Fatal("grant after Invalidate must be visible immediately")
	}
	if st.sudoLookups != 2 {
		t.Fatalf("sudoLookups = %d, want 2", st.sudoLookups)
	}
}
