package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

// PushDeadLetter adds an aborted link entry.
func (s *Store) PushDeadLetter(ctx context.Context, entry *deadletter.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cascade_deadletters (
			id, chain_id, kind, job, params, error,
			attempts, max_retries, hops, aborted_at, replayed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID.String(), entry.ChainID.String(), entry.Kind.String(),
		entry.Job, entry.Params, entry.Error,
		entry.Attempts, entry.MaxRetries, entry.Hops,
		entry.AbortedAt, entry.ReplayedAt,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves an entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, chain_id, kind, job, params, error,
			attempts, max_retries, hops, aborted_at, replayed_at,
			created_at, updated_at
		FROM cascade_deadletters
		WHERE id = $1`,
		entryID.String(),
	)

	entry, err := scanDeadLetter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get dead letter: %w", err)
	}
	return entry, nil
}

// ListDeadLetters returns entries matching the given options, newest
// abort first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	query := `
		SELECT
			id, chain_id, kind, job, params, error,
			attempts, max_retries, hops, aborted_at, replayed_at,
			created_at, updated_at
		FROM cascade_deadletters
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, opts.Kind.String())
		argIdx++
	}

	query += " ORDER BY aborted_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list dead letters: %w", err)
	}
	defer rows.Close()

	var entries []*deadletter.Entry
	for rows.Next() {
		entry, scanErr := scanDeadLetter(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/postgres: scan dead letter row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate dead letter rows: %w", err)
	}
	return entries, nil
}

// MarkReplayed sets ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DeadLetterID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cascade_deadletters SET replayed_at = NOW(), updated_at = NOW() WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: mark replayed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes entries with AbortedAt before the given time.
// Returns the number of entries removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cascade_deadletters WHERE aborted_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("cascade/postgres: purge dead letters: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDeadLetters returns the total number of entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM cascade_deadletters`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("cascade/postgres: count dead letters: %w", err)
	}
	return count, nil
}

// scanDeadLetter scans a single dead letter row.
func scanDeadLetter(row pgx.Row) (*deadletter.Entry, error) {
	var entry deadletter.Entry
	err := row.Scan(
		&entry.ID, &entry.ChainID, &entry.Kind, &entry.Job, &entry.Params, &entry.Error,
		&entry.Attempts, &entry.MaxRetries, &entry.Hops,
		&entry.AbortedAt, &entry.ReplayedAt,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
