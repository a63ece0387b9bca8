// Package mongo implements the store on MongoDB collections. Documents
// carry string IDs in _id, uniqueness rides unique indexes, and the due
// scan is a range filter over an eligible_at index.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/trigger"
)

// Collection name constants.
const (
	colLinks       = "cascade_links"
	colActivations = "cascade_activations"
	colDeadLetters = "cascade_deadletters"
	colTriggers    = "cascade_triggers"
)

// Compile-time interface checks.
var (
	_ chain.Store      = (*Store)(nil)
	_ schedule.Store   = (*Store)(nil)
	_ deadletter.Store = (*Store)(nil)
	_ trigger.Store    = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store.
type Store struct {
	client          *mongod.Client
	db              *mongod.Database
	logger          *slog.Logger
	callerOwnsConns bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New connects to MongoDB at uri and uses the named database.
func New(uri, database string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cascade/mongo: connect: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromClient wraps an existing client. The caller owns the client
// lifecycle; Close becomes a no-op.
func NewFromClient(client *mongod.Client, database string, opts ...Option) *Store {
	s := &Store{
		client:          client,
		db:              client.Database(database),
		logger:          slog.Default(),
		callerOwnsConns: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates indexes for all cascade collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("cascade/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client unless it was supplied via NewFromClient.
func (s *Store) Close() error {
	if s.callerOwnsConns {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Database returns the underlying *mongo.Database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "E11000")
}

// migrationIndexes returns the index definitions for all cascade collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colLinks: {
			// One config per (kind, job).
			{
				Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "job", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			// Active filter for list queries.
			{Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "active", Value: 1},
			}},
		},
		colActivations: {
			// Due scan index.
			{Keys: bson.D{{Key: "eligible_at", Value: 1}}},
		},
		colDeadLetters: {
			// Newest abort first.
			{Keys: bson.D{{Key: "aborted_at", Value: -1}}},
			{Keys: bson.D{
				{Key: "kind", Value: 1},
				{Key: "aborted_at", Value: -1},
			}},
		},
		colTriggers: {
			// Unique name index.
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
