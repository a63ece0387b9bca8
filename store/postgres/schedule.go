package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
)

// PutActivation persists an activation.
func (s *Store) PutActivation(ctx context.Context, act *schedule.Activation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cascade_activations (
			id, kind, job, chain_id, params, attempt, hops, reason,
			eligible_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			job = EXCLUDED.job,
			chain_id = EXCLUDED.chain_id,
			params = EXCLUDED.params,
			attempt = EXCLUDED.attempt,
			hops = EXCLUDED.hops,
			reason = EXCLUDED.reason,
			eligible_at = EXCLUDED.eligible_at,
			updated_at = EXCLUDED.updated_at`,
		act.ID.String(), act.Kind.String(), act.Job, act.ChainID.String(),
		act.Params, act.Attempt, act.Hops, string(act.Reason),
		act.EligibleAt, act.CreatedAt, act.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: put activation: %w", err)
	}
	return nil
}

// GetActivation retrieves an activation by ID.
func (s *Store) GetActivation(ctx context.Context, sid id.ScheduleID) (*schedule.Activation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			id, kind, job, chain_id, params, attempt, hops, reason,
			eligible_at, created_at, updated_at
		FROM cascade_activations
		WHERE id = $1`,
		sid.String(),
	)

	act, err := scanActivation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get activation: %w", err)
	}
	return act, nil
}

// DueActivations returns activations eligible at or before now, oldest
// eligibility first.
func (s *Store) DueActivations(ctx context.Context, now time.Time, limit int) ([]*schedule.Activation, error) {
	query := `
		SELECT
			id, kind, job, chain_id, params, attempt, hops, reason,
			eligible_at, created_at, updated_at
		FROM cascade_activations
		WHERE eligible_at <= $1
		ORDER BY eligible_at ASC`
	args := []interface{}{now}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: due activations: %w", err)
	}
	defer rows.Close()

	return collectActivations(rows)
}

// ListActivations returns all pending activations, oldest eligibility first.
func (s *Store) ListActivations(ctx context.Context) ([]*schedule.Activation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, kind, job, chain_id, params, attempt, hops, reason,
			eligible_at, created_at, updated_at
		FROM cascade_activations
		ORDER BY eligible_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list activations: %w", err)
	}
	defer rows.Close()

	return collectActivations(rows)
}

// DeleteActivation removes an activation by ID.
func (s *Store) DeleteActivation(ctx context.Context, sid id.ScheduleID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM cascade_activations WHERE id = $1`,
		sid.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: delete activation: %w", err)
	}
	return nil
}

// ── helpers ──

func collectActivations(rows pgx.Rows) ([]*schedule.Activation, error) {
	var acts []*schedule.Activation
	for rows.Next() {
		act, scanErr := scanActivation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/postgres: scan activation row: %w", scanErr)
		}
		acts = append(acts, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate activation rows: %w", err)
	}
	return acts, nil
}

// scanActivation scans a single activation row.
func scanActivation(row pgx.Row) (*schedule.Activation, error) {
	var act schedule.Activation
	err := row.Scan(
		&act.ID, &act.Kind, &act.Job, &act.ChainID, &act.Params,
		&act.Attempt, &act.Hops, &act.Reason,
		&act.EligibleAt, &act.CreatedAt, &act.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &act, nil
}
