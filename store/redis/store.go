// Package redis implements store.Store using Redis for high-throughput
// deployments. Records are stored as Redis Hashes; activations and dead
// letters carry Sorted Set indexes keyed by time so due scans and
// newest-first listings are range queries.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/trigger"
)

// Compile-time interface checks.
var (
	_ chain.Store      = (*Store)(nil)
	_ schedule.Store   = (*Store)(nil)
	_ deadletter.Store = (*Store)(nil)
	_ trigger.Store    = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the composite store.Store interface backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Migrate is a no-op for Redis (schemaless).
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// ── shared helpers ──

// marshalParams encodes a params map as a JSON string field.
func marshalParams(p cascade.Params) string {
	b, _ := json.Marshal(p) //nolint:errcheck // params maps are JSON-safe by contract
	return string(b)
}

// unmarshalParams parses a JSON params field.
func unmarshalParams(s string) cascade.Params {
	if s == "" || s == "null" {
		return nil
	}
	var p cascade.Params
	_ = json.Unmarshal([]byte(s), &p) //nolint:errcheck // best-effort parse from trusted Redis data
	return p
}
