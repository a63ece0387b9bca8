package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// PutLink upserts a link config keyed by (Kind, Job).
func (s *Store) PutLink(ctx context.Context, cfg *chain.LinkConfig) error {
	kind := cfg.Kind.String()
	key := linkKey(kind, cfg.Job)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, linkToMap(cfg))
	pipe.SAdd(ctx, linkIndexKey, linkMember(kind, cfg.Job))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: put link: %w", err)
	}
	return nil
}

// GetLink retrieves the config for a job identifier.
func (s *Store) GetLink(ctx context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	vals, err := s.client.HGetAll(ctx, linkKey(kind.String(), job)).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get link: %w", err)
	}
	if len(vals) == 0 {
		return nil, cascade.ErrConfigNotFound
	}
	return mapToLink(vals), nil
}

// ListLinks returns link configs matching the given options, sorted by
// kind then job.
func (s *Store) ListLinks(ctx context.Context, opts chain.ListOpts) ([]*chain.LinkConfig, error) {
	members, err := s.client.SMembers(ctx, linkIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list links: %w", err)
	}

	configs := make([]*chain.LinkConfig, 0, len(members))
	for _, member := range members {
		vals, getErr := s.client.HGetAll(ctx, keyPrefix+"link:"+member).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		cfg := mapToLink(vals)
		if opts.Kind != "" && cfg.Kind != opts.Kind {
			continue
		}
		if opts.ActiveOnly && !cfg.Active {
			continue
		}
		configs = append(configs, cfg)
	}

	sort.Slice(configs, func(i, k int) bool {
		if configs[i].Kind != configs[k].Kind {
			return configs[i].Kind < configs[k].Kind
		}
		return configs[i].Job < configs[k].Job
	})

	return paginate(configs, opts.Offset, opts.Limit), nil
}

// DeleteLink removes the config for a job identifier.
func (s *Store) DeleteLink(ctx context.Context, kind cascade.Kind, job string) error {
	k := kind.String()
	key := linkKey(k, job)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: delete link exists: %w", err)
	}
	if exists == 0 {
		return cascade.ErrConfigNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, linkIndexKey, linkMember(k, job))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: delete link: %w", err)
	}
	return nil
}

// ── helpers ──

func linkToMap(cfg *chain.LinkConfig) map[string]interface{} {
	return map[string]interface{}{
		"kind":                cfg.Kind.String(),
		"job":                 cfg.Job,
		"next":                cfg.Next,
		"batch_size":          strconv.Itoa(cfg.BatchSize),
		"delay":               strconv.FormatInt(int64(cfg.Delay), 10),
		"timeout":             strconv.FormatInt(int64(cfg.Timeout), 10),
		"max_retries":         strconv.Itoa(cfg.MaxRetries),
		"active":              strconv.FormatBool(cfg.Active),
		"continue_on_failure": strconv.FormatBool(cfg.ContinueOnFailure),
		"use_completion_hook": strconv.FormatBool(cfg.UseCompletionHook),
		"description":         cfg.Description,
		"created_at":          cfg.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":          cfg.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToLink(m map[string]string) *chain.LinkConfig {
	batchSize, _ := strconv.Atoi(m["batch_size"])                  //nolint:errcheck // best-effort parse from trusted Redis data
	delay, _ := strconv.ParseInt(m["delay"], 10, 64)               //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)           //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])                //nolint:errcheck // best-effort parse from trusted Redis data
	active, _ := strconv.ParseBool(m["active"])                    //nolint:errcheck // best-effort parse from trusted Redis data
	continueOnFailure, _ := strconv.ParseBool(m["continue_on_failure"]) //nolint:errcheck // best-effort parse from trusted Redis data
	useCompletionHook, _ := strconv.ParseBool(m["use_completion_hook"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])  //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])  //nolint:errcheck // best-effort parse from trusted Redis data

	return &chain.LinkConfig{
		Entity: cascade.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		Kind:              cascade.Kind(m["kind"]),
		Job:               m["job"],
		Next:              m["next"],
		BatchSize:         batchSize,
		Delay:             time.Duration(delay),
		Timeout:           time.Duration(timeout),
		MaxRetries:        maxRetries,
		Active:            active,
		ContinueOnFailure: continueOnFailure,
		UseCompletionHook: useCompletionHook,
		Description:       m["description"],
	}
}

func paginate[T any](in []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
