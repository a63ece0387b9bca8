package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

// RegisterTrigger persists a new entry. The UNIQUE constraint on name
// enforces one trigger per name.
func (s *Store) RegisterTrigger(ctx context.Context, entry *trigger.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cascade_triggers (
			id, name, schedule, kind, job, params, last_run_at, next_run_at,
			enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.Name, entry.Schedule, entry.Kind, entry.Job,
		marshalParams(entry.Params), nanosPtr(entry.LastRunAt),
		nanosPtr(entry.NextRunAt), entry.Enabled,
		nanos(entry.CreatedAt), nanos(entry.UpdatedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateTrigger
		}
		return fmt.Errorf("cascade/sqlite: register trigger: %w", err)
	}
	return nil
}

// GetTrigger retrieves an entry by ID.
func (s *Store) GetTrigger(ctx context.Context, tid id.TriggerID) (*trigger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, schedule, kind, job, params, last_run_at,
		       next_run_at, enabled, created_at, updated_at
		FROM cascade_triggers
		WHERE id = ?
	`, tid)

	entry, err := scanTrigger(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get trigger: %w", err)
	}
	return entry, nil
}

// ListTriggers returns all entries ordered by name.
func (s *Store) ListTriggers(ctx context.Context) ([]*trigger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, schedule, kind, job, params, last_run_at,
		       next_run_at, enabled, created_at, updated_at
		FROM cascade_triggers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list triggers: %w", err)
	}
	defer rows.Close()

	var out []*trigger.Entry
	for rows.Next() {
		entry, scanErr := scanTrigger(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan trigger: %w", scanErr)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list triggers: %w", err)
	}
	return out, nil
}

// UpdateTrigger replaces an entry's mutable fields.
func (s *Store) UpdateTrigger(ctx context.Context, entry *trigger.Entry) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_triggers
		SET name = ?, schedule = ?, kind = ?, job = ?, params = ?,
		    last_run_at = ?, next_run_at = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`,
		entry.Name, entry.Schedule, entry.Kind, entry.Job,
		marshalParams(entry.Params), nanosPtr(entry.LastRunAt),
		nanosPtr(entry.NextRunAt), entry.Enabled, nanos(entry.UpdatedAt),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: update trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: update trigger: %w", err)
	}
	if n == 0 {
		return cascade.ErrTriggerNotFound
	}
	return nil
}

// DeleteTrigger removes an entry by ID.
func (s *Store) DeleteTrigger(ctx context.Context, tid id.TriggerID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cascade_triggers WHERE id = ?`, tid)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete trigger: %w", err)
	}
	if n == 0 {
		return cascade.ErrTriggerNotFound
	}
	return nil
}

func scanTrigger(row rowScanner) (*trigger.Entry, error) {
	var (
		entry     trigger.Entry
		params    sql.NullString
		lastRunNs sql.NullInt64
		nextRunNs sql.NullInt64
		createdNs int64
		updatedNs int64
	)
	err := row.Scan(
		&entry.ID, &entry.Name, &entry.Schedule, &entry.Kind, &entry.Job,
		&params, &lastRunNs, &nextRunNs, &entry.Enabled,
		&createdNs, &updatedNs,
	)
	if err != nil {
		return nil, err
	}
	entry.Params = unmarshalParams(params)
	if lastRunNs.Valid {
		t := fromNanos(lastRunNs.Int64)
		entry.LastRunAt = &t
	}
	if nextRunNs.Valid {
		t := fromNanos(nextRunNs.Int64)
		entry.NextRunAt = &t
	}
	entry.CreatedAt = fromNanos(createdNs)
	entry.UpdatedAt = fromNanos(updatedNs)
	return &entry, nil
}
