package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

// RegisterTrigger persists a new entry, rejecting duplicate names.
func (s *Store) RegisterTrigger(ctx context.Context, entry *trigger.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cascade_triggers (
			id, name, schedule, kind, job, params,
			last_run_at, next_run_at, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID.String(), entry.Name, entry.Schedule,
		entry.Kind.String(), entry.Job, entry.Params,
		entry.LastRunAt, entry.NextRunAt, entry.Enabled,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateTrigger
		}
		return fmt.Errorf("cascade/postgres: register trigger: %w", err)
	}
	return nil
}

// GetTrigger retrieves an entry by ID.
func (s *Store) GetTrigger(ctx context.Context, tid id.TriggerID) (*trigger.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, name, schedule, kind, job, params,
			last_run_at, next_run_at, enabled, created_at, updated_at
		FROM cascade_triggers
		WHERE id = $1`,
		tid.String(),
	)

	entry, err := scanTrigger(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrTriggerNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get trigger: %w", err)
	}
	return entry, nil
}

// ListTriggers returns all entries sorted by name.
func (s *Store) ListTriggers(ctx context.Context) ([]*trigger.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, name, schedule, kind, job, params,
			last_run_at, next_run_at, enabled, created_at, updated_at
		FROM cascade_triggers
		ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list triggers: %w", err)
	}
	defer rows.Close()

	var entries []*trigger.Entry
	for rows.Next() {
		entry, scanErr := scanTrigger(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/postgres: scan trigger row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate trigger rows: %w", err)
	}
	return entries, nil
}

// UpdateTrigger updates an entry.
func (s *Store) UpdateTrigger(ctx context.Context, entry *trigger.Entry) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_triggers SET
			name = $2,
			schedule = $3,
			kind = $4,
			job = $5,
			params = $6,
			last_run_at = $7,
			next_run_at = $8,
			enabled = $9,
			updated_at = $10
		WHERE id = $1`,
		entry.ID.String(), entry.Name, entry.Schedule,
		entry.Kind.String(), entry.Job, entry.Params,
		entry.LastRunAt, entry.NextRunAt, entry.Enabled,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: update trigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrTriggerNotFound
	}
	return nil
}

// DeleteTrigger removes an entry by ID.
func (s *Store) DeleteTrigger(ctx context.Context, tid id.TriggerID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cascade_triggers WHERE id = $1`,
		tid.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: delete trigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrTriggerNotFound
	}
	return nil
}

// scanTrigger scans a single trigger row.
func scanTrigger(row pgx.Row) (*trigger.Entry, error) {
	var entry trigger.Entry
	err := row.Scan(
		&entry.ID, &entry.Name, &entry.Schedule, &entry.Kind, &entry.Job, &entry.Params,
		&entry.LastRunAt, &entry.NextRunAt, &entry.Enabled,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
