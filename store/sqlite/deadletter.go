package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

// PushDeadLetter adds an aborted link entry.
func (s *Store) PushDeadLetter(ctx context.Context, entry *deadletter.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cascade_deadletters (
			id, chain_id, kind, job, params, error, attempts, max_retries,
			hops, aborted_at, replayed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.ChainID, entry.Kind, entry.Job,
		marshalParams(entry.Params), entry.Error, entry.Attempts,
		entry.MaxRetries, entry.Hops, nanos(entry.AbortedAt),
		nanosPtr(entry.ReplayedAt), nanos(entry.CreatedAt), nanos(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves an entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chain_id, kind, job, params, error, attempts, max_retries,
		       hops, aborted_at, replayed_at, created_at, updated_at
		FROM cascade_deadletters
		WHERE id = ?
	`, entryID)

	entry, err := scanDeadLetter(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get dead letter: %w", err)
	}
	return entry, nil
}

// ListDeadLetters returns entries matching the given options, newest
// abort first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	query := `
		SELECT id, chain_id, kind, job, params, error, attempts, max_retries,
		       hops, aborted_at, replayed_at, created_at, updated_at
		FROM cascade_deadletters`

	var (
		clauses []string
		args    []any
	)
	if opts.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, opts.Kind)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY aborted_at DESC"
	query, args = appendLimitOffset(query, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list dead letters: %w", err)
	}
	defer rows.Close()

	var out []*deadletter.Entry
	for rows.Next() {
		entry, scanErr := scanDeadLetter(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan dead letter: %w", scanErr)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list dead letters: %w", err)
	}
	return out, nil
}

// MarkReplayed sets ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DeadLetterID) error {
	now := nanos(time.Now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_deadletters
		SET replayed_at = ?, updated_at = ?
		WHERE id = ?
	`, now, now, entryID)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: mark replayed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: mark replayed: %w", err)
	}
	if n == 0 {
		return cascade.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes entries aborted strictly before the given
// time and returns the number removed.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cascade_deadletters WHERE aborted_at < ?`, nanos(before))
	if err != nil {
		return 0, fmt.Errorf("cascade/sqlite: purge dead letters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cascade/sqlite: purge dead letters: %w", err)
	}
	return n, nil
}

// CountDeadLetters returns the total number of entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cascade_deadletters`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("cascade/sqlite: count dead letters: %w", err)
	}
	return count, nil
}

func scanDeadLetter(row rowScanner) (*deadletter.Entry, error) {
	var (
		entry      deadletter.Entry
		params     sql.NullString
		abortedNs  int64
		replayedNs sql.NullInt64
		createdNs  int64
		updatedNs  int64
	)
	err := row.Scan(
		&entry.ID, &entry.ChainID, &entry.Kind, &entry.Job, &params,
		&entry.Error, &entry.Attempts, &entry.MaxRetries, &entry.Hops,
		&abortedNs, &replayedNs, &createdNs, &updatedNs,
	)
	if err != nil {
		return nil, err
	}
	entry.Params = unmarshalParams(params)
	entry.AbortedAt = fromNanos(abortedNs)
	if replayedNs.Valid {
		t := fromNanos(replayedNs.Int64)
		entry.ReplayedAt = &t
	}
	entry.CreatedAt = fromNanos(createdNs)
	entry.UpdatedAt = fromNanos(updatedNs)
	return &entry, nil
}
