package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/cascade"
)

type cacheKey struct {
	kind cascade.Kind
	job  string
}

type cacheEntry struct {
	cfg       *LinkConfig
	fetchedAt time.Time
}

// Resolver reads link configs through a TTL cache so that chain
// continuations resolve in O(1) without a store round trip per link.
// Cancellation (Active=false) becomes visible within one TTL at the
// latest; Invalidate makes it immediate.
type Resolver struct {
	store Store
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[cacheKey]cacheEntry

	// now is swapped in tests.
	now func() time.Time
}

// NewResolver creates a Resolver over the given store. A zero ttl
// disables caching entirely: every Resolve hits the store.
func NewResolver(store Store, ttl time.Duration) *Resolver {
	return &Resolver{
		store: store,
		ttl:   ttl,
		cache: make(map[cacheKey]cacheEntry),
		now:   time.Now,
	}
}

// Resolve returns the link config for a job identifier. The returned
// value is a copy; callers may mutate it freely.
func (r *Resolver) Resolve(ctx context.Context, kind cascade.Kind, job string) (*LinkConfig, error) {
	key := cacheKey{kind: kind, job: job}

	if r.ttl > 0 {
		r.mu.RLock()
		entry, ok := r.cache[key]
		r.mu.RUnlock()
		if ok && r.now().Sub(entry.fetchedAt) < r.ttl {
			cp := *entry.cfg
			return &cp, nil
		}
	}

	cfg, err := r.store.GetLink(ctx, kind, job)
	if err != nil {
		return nil, fmt.Errorf("chain: resolve %s/%s: %w", kind, job, err)
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[key] = cacheEntry{cfg: cfg, fetchedAt: r.now()}
		r.mu.Unlock()
	}

	cp := *cfg
	return &cp, nil
}

// Invalidate drops the cached config for one job identifier.
func (r *Resolver) Invalidate(kind cascade.Kind, job string) {
	r.mu.Lock()
	delete(r.cache, cacheKey{kind: kind, job: job})
	r.mu.Unlock()
}

// InvalidateAll drops every cached config.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[cacheKey]cacheEntry)
	r.mu.Unlock()
}
