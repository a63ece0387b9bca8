package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// PutLink upserts a link config keyed by (Kind, Job).
func (s *Store) PutLink(ctx context.Context, cfg *chain.LinkConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cascade_links (
			kind, job, next, batch_size, delay_ns, timeout_ns,
			max_retries, active, continue_on_failure, use_completion_hook,
			description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (kind, job) DO UPDATE SET
			next = EXCLUDED.next,
			batch_size = EXCLUDED.batch_size,
			delay_ns = EXCLUDED.delay_ns,
			timeout_ns = EXCLUDED.timeout_ns,
			max_retries = EXCLUDED.max_retries,
			active = EXCLUDED.active,
			continue_on_failure = EXCLUDED.continue_on_failure,
			use_completion_hook = EXCLUDED.use_completion_hook,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`,
		cfg.Kind.String(), cfg.Job, cfg.Next, cfg.BatchSize,
		int64(cfg.Delay), int64(cfg.Timeout),
		cfg.MaxRetries, cfg.Active, cfg.ContinueOnFailure, cfg.UseCompletionHook,
		cfg.Description, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: put link: %w", err)
	}
	return nil
}

// GetLink retrieves the config for a job identifier.
func (s *Store) GetLink(ctx context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			kind, job, next, batch_size, delay_ns, timeout_ns,
			max_retries, active, continue_on_failure, use_completion_hook,
			description, created_at, updated_at
		FROM cascade_links
		WHERE kind = $1 AND job = $2`,
		kind.String(), job,
	)

	cfg, err := scanLink(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrConfigNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get link: %w", err)
	}
	return cfg, nil
}

// ListLinks returns link configs matching the given options, sorted by
// kind then job.
func (s *Store) ListLinks(ctx context.Context, opts chain.ListOpts) ([]*chain.LinkConfig, error) {
	query := `
		SELECT
			kind, job, next, batch_size, delay_ns, timeout_ns,
			max_retries, active, continue_on_failure, use_completion_hook,
			description, created_at, updated_at
		FROM cascade_links
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, opts.Kind.String())
		argIdx++
	}
	if opts.ActiveOnly {
		query += " AND active"
	}

	query += " ORDER BY kind, job"

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
		return nil, fmt.Errorf("cascade/postgres: list links: %w", err)
	}
	defer rows.Close()

	var configs []*chain.LinkConfig
	for rows.Next() {
		cfg, scanErr := scanLink(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/postgres: scan link row: %w", scanErr)
		}
		configs = append(configs, cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate link rows: %w", err)
	}
	return configs, nil
}

// DeleteLink removes the config for a job identifier.
func (s *Store) DeleteLink(ctx context.Context, kind cascade.Kind, job string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cascade_links WHERE kind = $1 AND job = $2`,
		kind.String(), job,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: delete link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrConfigNotFound
	}
	return nil
}

// scanLink scans a single link config row.
func scanLink(row pgx.Row) (*chain.LinkConfig, error) {
	var (
		cfg       chain.LinkConfig
		delayNs   int64
		timeoutNs int64
	)
	err := row.Scan(
		&cfg.Kind, &cfg.Job, &cfg.Next, &cfg.BatchSize, &delayNs, &timeoutNs,
		&cfg.MaxRetries, &cfg.Active, &cfg.ContinueOnFailure, &cfg.UseCompletionHook,
		&cfg.Description, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.Delay = time.Duration(delayNs)
	cfg.Timeout = time.Duration(timeoutNs)
	return &cfg, nil
}
