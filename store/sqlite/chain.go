package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// PutLink upserts a link config keyed by (kind, job).
func (s *Store) PutLink(ctx context.Context, cfg *chain.LinkConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cascade_links (
			kind, job, next, batch_size, delay_ns, timeout_ns, max_retries,
			active, continue_on_failure, use_completion_hook, description,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, job) DO UPDATE SET
			next = excluded.next,
			batch_size = excluded.batch_size,
			delay_ns = excluded.delay_ns,
			timeout_ns = excluded.timeout_ns,
			max_retries = excluded.max_retries,
			active = excluded.active,
			continue_on_failure = excluded.continue_on_failure,
			use_completion_hook = excluded.use_completion_hook,
			description = excluded.description,
			updated_at = excluded.updated_at
	`,
		cfg.Kind, cfg.Job, cfg.Next, cfg.BatchSize,
		int64(cfg.Delay), int64(cfg.Timeout), cfg.MaxRetries,
		cfg.Active, cfg.ContinueOnFailure, cfg.UseCompletionHook, cfg.Description,
		nanos(cfg.CreatedAt), nanos(cfg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: put link: %w", err)
	}
	return nil
}

// GetLink retrieves the config for a job identifier.
func (s *Store) GetLink(ctx context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, job, next, batch_size, delay_ns, timeout_ns, max_retries,
		       active, continue_on_failure, use_completion_hook, description,
		       created_at, updated_at
		FROM cascade_links
		WHERE kind = ? AND job = ?
	`, kind, job)

	cfg, err := scanLink(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrConfigNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get link: %w", err)
	}
	return cfg, nil
}

// ListLinks returns link configs matching the given options, ordered by
// kind then job.
func (s *Store) ListLinks(ctx context.Context, opts chain.ListOpts) ([]*chain.LinkConfig, error) {
	query := `
		SELECT kind, job, next, batch_size, delay_ns, timeout_ns, max_retries,
		       active, continue_on_failure, use_completion_hook, description,
		       created_at, updated_at
		FROM cascade_links`

	var (
		clauses []string
		args    []any
	)
	if opts.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.ActiveOnly {
		clauses = append(clauses, "active")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY kind, job"
	query, args = appendLimitOffset(query, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list links: %w", err)
	}
	defer rows.Close()

	var out []*chain.LinkConfig
	for rows.Next() {
		cfg, scanErr := scanLink(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan link: %w", scanErr)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list links: %w", err)
	}
	return out, nil
}

// DeleteLink removes the config for a job identifier.
func (s *Store) DeleteLink(ctx context.Context, kind cascade.Kind, job string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cascade_links WHERE kind = ? AND job = ?`, kind, job)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete link: %w", err)
	}
	if n == 0 {
		return cascade.ErrConfigNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*chain.LinkConfig, error) {
	var (
		cfg       chain.LinkConfig
		delayNs   int64
		timeoutNs int64
		createdNs int64
		updatedNs int64
	)
	err := row.Scan(
		&cfg.Kind, &cfg.Job, &cfg.Next, &cfg.BatchSize, &delayNs, &timeoutNs,
		&cfg.MaxRetries, &cfg.Active, &cfg.ContinueOnFailure,
		&cfg.UseCompletionHook, &cfg.Description, &createdNs, &updatedNs,
	)
	if err != nil {
		return nil, err
	}
	cfg.Delay = time.Duration(delayNs)
	cfg.Timeout = time.Duration(timeoutNs)
	cfg.CreatedAt = fromNanos(createdNs)
	cfg.UpdatedAt = fromNanos(updatedNs)
	return &cfg, nil
}

// appendLimitOffset adds LIMIT/OFFSET clauses. SQLite only accepts OFFSET
// after a LIMIT, so an offset without a limit gets LIMIT -1 (unbounded).
func appendLimitOffset(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	} else if offset > 0 {
		query += " LIMIT -1"
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}
