package chain_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// countingStore wraps a single config and counts GetLink calls.
type countingStore struct {
	cfg  *chain.LinkConfig
	gets atomic.Int32
}

func (s *countingStore) PutLink(_ context.Context, cfg *chain.LinkConfig) error {
	s.cfg = cfg
	return nil
}

func (s *countingStore) GetLink(_ context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	s.gets.Add(1)
	if s.cfg == nil || s.cfg.Kind != kind || s.cfg.Job != job {
		return nil, cascade.ErrConfigNotFound
	}
	cp := *s.cfg
	return &cp, nil
}

func (s *countingStore) ListLinks(_ context.Context, _ chain.ListOpts) ([]*chain.LinkConfig, error) {
	if s.cfg == nil {
		return nil, nil
	}
	cp := *s.cfg
	return []*chain.LinkConfig{&cp}, nil
}

func (s *countingStore) DeleteLink(_ context.Context, _ cascade.Kind, _ string) error {
	s.cfg = nil
	return nil
}

func testConfig() *chain.LinkConfig {
	return &chain.LinkConfig{
		Entity: cascade.NewEntity(),
		Kind:   cascade.KindBatch,
		Job:    "extract-accounts",
		Next:   "transform-accounts",
		Active: true,
	}
}

func TestResolver_CachesWithinTTL(t *testing.T) {
	s := &countingStore{cfg: testConfig()}
	r := chain.NewResolver(s, time.Minute)
	ctx := context.Background()

	for range 5 {
		cfg, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.Next != "transform-accounts" {
			t.Errorf("Next = %q, want %q", cfg.Next, "transform-accounts")
		}
	}

	if got := s.gets.Load(); got != 1 {
		t.Errorf("store gets = %d, want 1 (cached)", got)
	}
}

func TestResolver_ExpiredEntryRefetches(t *testing.T) {
	s := &countingStore{cfg: testConfig()}
	r := chain.NewResolver(s, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts"); err != nil {
		t.Fatalf("Resolve after expiry: %v", err)
	}

	if got := s.gets.Load(); got != 2 {
		t.Errorf("store gets = %d, want 2 (expired)", got)
	}
}

func TestResolver_ZeroTTLDisablesCache(t *testing.T) {
	s := &countingStore{cfg: testConfig()}
	r := chain.NewResolver(s, 0)
	ctx := context.Background()

	for range 3 {
		if _, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts"); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}

	if got := s.gets.Load(); got != 3 {
		t.Errorf("store gets = %d, want 3 (uncached)", got)
	}
}

func TestResolver_NotFound(t *testing.T) {
	s := &countingStore{}
	r := chain.NewResolver(s, time.Minute)

	_, err := r.Resolve(context.Background(), cascade.KindBatch, "missing")
	if !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestResolver_InvalidateForcesRefetch(t *testing.T) {
	s := &countingStore{cfg: testConfig()}
	r := chain.NewResolver(s, time.Minute)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Deactivate behind the resolver's back; the cache still serves the
	// active copy until invalidated.
	s.cfg.Active = false
	cfg, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.Active {
		t.Fatal("expected cached active copy before invalidation")
	}

	r.Invalidate(cascade.KindBatch, "extract-accounts")
	cfg, err = r.Resolve(ctx, cascade.KindBatch, "extract-accounts")
	if err != nil {
		t.Fatalf("Resolve after invalidate: %v", err)
	}
	if cfg.Active {
		t.Error("expected deactivated config after invalidation")
	}
}

func TestResolver_ReturnsCopies(t *testing.T) {
	s := &countingStore{cfg: testConfig()}
	r := chain.NewResolver(s, time.Minute)
	ctx := context.Background()

	first, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	first.Next = "mutated"

	second, err := r.Resolve(ctx, cascade.KindBatch, "extract-accounts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.Next != "transform-accounts" {
		t.Errorf("cache poisoned: Next = %q, want %q", second.Next, "transform-accounts")
	}
}

func TestLinkConfig_Validate(t *testing.T) {
	cfg := &chain.LinkConfig{Kind: cascade.KindBatch, Job: "extract-accounts", Active: true}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.BatchSize != chain.DefaultBatchSize {
		t.Errorf("BatchSize = %d, want default %d", cfg.BatchSize, chain.DefaultBatchSize)
	}
	if cfg.Timeout != chain.DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.Timeout, chain.DefaultTimeout)
	}

	bad := &chain.LinkConfig{Kind: "mystery", Job: "x"}
	if err := bad.Validate(); !errors.Is(err, cascade.ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}

	if err := (&chain.LinkConfig{Kind: cascade.KindQueueable}).Validate(); err == nil {
		t.Error("expected error for empty job identifier")
	}
}
