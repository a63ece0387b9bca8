// Package sqlite implements the store on a single SQLite file via the
// pure-Go modernc.org/sqlite driver. Time columns hold unix nanoseconds
// so eligibility scans and recency ordering compare numerically.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

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

const schema = `
CREATE TABLE IF NOT EXISTS cascade_links (
    kind                TEXT    NOT NULL,
    job                 TEXT    NOT NULL,
    next                TEXT    NOT NULL DEFAULT '',
    batch_size          INTEGER NOT NULL DEFAULT 0,
    delay_ns            INTEGER NOT NULL DEFAULT 0,
    timeout_ns          INTEGER NOT NULL DEFAULT 0,
    max_retries         INTEGER NOT NULL DEFAULT 0,
    active              INTEGER NOT NULL DEFAULT 0,
    continue_on_failure INTEGER NOT NULL DEFAULT 0,
    use_completion_hook INTEGER NOT NULL DEFAULT 0,
    description         TEXT    NOT NULL DEFAULT '',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL,
    PRIMARY KEY (kind, job)
);

CREATE TABLE IF NOT EXISTS cascade_activations (
    id          TEXT PRIMARY KEY,
    kind        TEXT    NOT NULL,
    job         TEXT    NOT NULL,
    chain_id    TEXT    NOT NULL,
    params      TEXT,
    attempt     INTEGER NOT NULL DEFAULT 0,
    hops        INTEGER NOT NULL DEFAULT 0,
    reason      TEXT    NOT NULL,
    eligible_at INTEGER NOT NULL,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cascade_activations_eligible_at
    ON cascade_activations (eligible_at);

CREATE TABLE IF NOT EXISTS cascade_deadletters (
    id          TEXT PRIMARY KEY,
    chain_id    TEXT    NOT NULL,
    kind        TEXT    NOT NULL,
    job         TEXT    NOT NULL,
    params      TEXT,
    error       TEXT    NOT NULL DEFAULT '',
    attempts    INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 0,
    hops        INTEGER NOT NULL DEFAULT 0,
    aborted_at  INTEGER NOT NULL,
    replayed_at INTEGER,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cascade_deadletters_aborted_at
    ON cascade_deadletters (aborted_at DESC);
CREATE INDEX IF NOT EXISTS idx_cascade_deadletters_kind
    ON cascade_deadletters (kind);

CREATE TABLE IF NOT EXISTS cascade_triggers (
    id          TEXT PRIMARY KEY,
    name        TEXT    NOT NULL UNIQUE,
    schedule    TEXT    NOT NULL,
    kind        TEXT    NOT NULL,
    job         TEXT    NOT NULL,
    params      TEXT,
    last_run_at INTEGER,
    next_run_at INTEGER,
    enabled     INTEGER NOT NULL DEFAULT 0,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
`

// Store is a SQLite implementation of store.Store.
type Store struct {
	db           *sql.DB
	logger       *slog.Logger
	callerOwnsDB bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens (or creates) the SQLite database at path. WAL mode is enabled
// so readers do not block the single writer.
func New(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: open: %w", err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cascade/sqlite: %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromDB wraps an existing *sql.DB. The caller owns the db lifecycle;
// Close becomes a no-op.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.callerOwnsDB = true
	return s
}

// Migrate creates the schema. Every statement is idempotent, so repeated
// calls are safe.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("cascade/sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database unless it was supplied via NewFromDB.
func (s *Store) Close() error {
	if s.callerOwnsDB {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ── helpers ──────────────────────────────────────────────────────

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a SQLite error is a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// nanosPtr converts an optional time to a nullable column value.
func nanosPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixNano()
}

func marshalParams(params cascade.Params) string {
	if len(params) == 0 {
		return ""
	}
	data, _ := json.Marshal(params) //nolint:errcheck // Params hold JSON-safe values only
	return string(data)
}

func unmarshalParams(raw sql.NullString) cascade.Params {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	var params cascade.Params
	if err := json.Unmarshal([]byte(raw.String), &params); err != nil {
		return nil
	}
	return params
}
