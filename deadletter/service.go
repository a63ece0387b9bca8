package deadletter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// StartFunc launches a fresh chain start for a replayed entry. The
// owning engine provides the implementation; the indirection keeps this
// package free of engine imports.
type StartFunc func(ctx context.Context, job string, params cascade.Params) (id.ChainID, error)

// Service provides high-level dead-letter operations over a Store.
type Service struct {
	store  Store
	logger *slog.Logger

	startsMu sync.RWMutex
	starts   map[cascade.Kind]StartFunc
}

// NewService creates a dead-letter service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		starts: make(map[cascade.Kind]StartFunc),
	}
}

// Bind registers the start function replays of the given kind go through.
func (s *Service) Bind(kind cascade.Kind, start StartFunc) {
	s.startsMu.Lock()
	defer s.startsMu.Unlock()
	s.starts[kind] = start
}

// Record builds an Entry from an aborted attempt and persists it.
// The chain is already terminated by the time Record runs; a store
// failure here loses the post-mortem record, not correctness, so the
// engines log it and move on.
func (s *Service) Record(ctx context.Context, att *cascade.Attempt, maxRetries int, cause error) error {
	now := time.Now().UTC()
	entry := &Entry{
		Entity:     cascade.NewEntity(),
		ID:         id.NewDeadLetterID(),
		ChainID:    att.ChainID,
		Kind:       att.Kind,
		Job:        att.Job,
		Params:     att.Params.Clone(),
		Attempts:   att.Number,
		MaxRetries: maxRetries,
		Hops:       att.Hops,
		AbortedAt:  now,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := s.store.PushDeadLetter(ctx, entry); err != nil {
		return fmt.Errorf("cascade/deadletter: record %s/%s: %w", att.Kind, att.Job, err)
	}

	s.logger.Info("link dead-lettered",
		slog.String("entry_id", entry.ID.String()),
		slog.String("chain_id", att.ChainID.String()),
		slog.String("kind", att.Kind.String()),
		slog.String("job", att.Job),
		slog.Int("attempts", att.Number),
		slog.String("error", entry.Error),
	)
	return nil
}

// Store returns the underlying store for direct access to List, Get,
// Purge, and Count operations.
func (s *Service) Store() Store {
	return s.store
}
