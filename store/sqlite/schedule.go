package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
)

// PutActivation persists an activation, replacing any record with the
// same ID.
func (s *Store) PutActivation(ctx context.Context, act *schedule.Activation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cascade_activations (
			id, kind, job, chain_id, params, attempt, hops, reason,
			eligible_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			job = excluded.job,
			chain_id = excluded.chain_id,
			params = excluded.params,
			attempt = excluded.attempt,
			hops = excluded.hops,
			reason = excluded.reason,
			eligible_at = excluded.eligible_at,
			updated_at = excluded.updated_at
	`,
		act.ID, act.Kind, act.Job, act.ChainID, marshalParams(act.Params),
		act.Attempt, act.Hops, act.Reason, nanos(act.EligibleAt),
		nanos(act.CreatedAt), nanos(act.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: put activation: %w", err)
	}
	return nil
}

// GetActivation retrieves an activation by ID.
func (s *Store) GetActivation(ctx context.Context, sid id.ScheduleID) (*schedule.Activation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, job, chain_id, params, attempt, hops, reason,
		       eligible_at, created_at, updated_at
		FROM cascade_activations
		WHERE id = ?
	`, sid)

	act, err := scanActivation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get activation: %w", err)
	}
	return act, nil
}

// DueActivations returns activations eligible at or before now, oldest
// eligibility first.
func (s *Store) DueActivations(ctx context.Context, now time.Time, limit int) ([]*schedule.Activation, error) {
	query := `
		SELECT id, kind, job, chain_id, params, attempt, hops, reason,
		       eligible_at, created_at, updated_at
		FROM cascade_activations
		WHERE eligible_at <= ?
		ORDER BY eligible_at ASC`
	args := []any{nanos(now)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.collectActivations(ctx, query, args...)
}

// ListActivations returns all pending activations, oldest eligibility
// first.
func (s *Store) ListActivations(ctx context.Context) ([]*schedule.Activation, error) {
	return s.collectActivations(ctx, `
		SELECT id, kind, job, chain_id, params, attempt, hops, reason,
		       eligible_at, created_at, updated_at
		FROM cascade_activations
		ORDER BY eligible_at ASC`)
}

// DeleteActivation removes an activation. Deleting a missing record is
// not an error so handoff and expiry can race safely.
func (s *Store) DeleteActivation(ctx context.Context, sid id.ScheduleID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cascade_activations WHERE id = ?`, sid)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete activation: %w", err)
	}
	return nil
}

func (s *Store) collectActivations(ctx context.Context, query string, args ...any) ([]*schedule.Activation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: query activations: %w", err)
	}
	defer rows.Close()

	var out []*schedule.Activation
	for rows.Next() {
		act, scanErr := scanActivation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan activation: %w", scanErr)
		}
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: query activations: %w", err)
	}
	return out, nil
}

func scanActivation(row rowScanner) (*schedule.Activation, error) {
	var (
		act        schedule.Activation
		params     sql.NullString
		eligibleNs int64
		createdNs  int64
		updatedNs  int64
	)
	err := row.Scan(
		&act.ID, &act.Kind, &act.Job, &act.ChainID, &params,
		&act.Attempt, &act.Hops, &act.Reason, &eligibleNs,
		&createdNs, &updatedNs,
	)
	if err != nil {
		return nil, err
	}
	act.Params = unmarshalParams(params)
	act.EligibleAt = fromNanos(eligibleNs)
	act.CreatedAt = fromNanos(createdNs)
	act.UpdatedAt = fromNanos(updatedNs)
	return &act, nil
}
