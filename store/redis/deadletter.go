package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

// PushDeadLetter adds an aborted link entry and indexes it by abort time.
func (s *Store) PushDeadLetter(ctx context.Context, entry *deadletter.Entry) error {
	eID := entry.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, deadLetterKey(eID), deadLetterToMap(entry))
	pipe.ZAdd(ctx, deadLettersByTimeKey, goredis.Z{
		Score:  float64(entry.AbortedAt.UnixMilli()),
		Member: eID,
	})
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: push dead letter: %w", err)
	}
	return nil
}

// GetDeadLetter retrieves an entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	vals, err := s.client.HGetAll(ctx, deadLetterKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get dead letter: %w", err)
	}
	if len(vals) == 0 {
		return nil, cascade.ErrDeadLetterNotFound
	}
	return mapToDeadLetter(vals)
}

// ListDeadLetters returns entries matching the given options, newest
// abort first. The sorted-set score is the abort time, so newest-first is
// a reverse range.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	ids, err := s.client.ZRevRange(ctx, deadLettersByTimeKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list dead letters: %w", err)
	}

	entries := make([]*deadletter.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, deadLetterKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		entry, convErr := mapToDeadLetter(vals)
		if convErr != nil {
			continue
		}
		if opts.Kind != "" && entry.Kind != opts.Kind {
			continue
		}
		entries = append(entries, entry)
	}

	return paginate(entries, opts.Offset, opts.Limit), nil
}

// MarkReplayed sets ReplayedAt on an entry.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.DeadLetterID) error {
	key := deadLetterKey(entryID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: mark replayed exists: %w", err)
	}
	if exists == 0 {
		return cascade.ErrDeadLetterNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.HSet(ctx, key,
		"replayed_at", now,
		"updated_at", now,
	).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: mark replayed: %w", err)
	}
	return nil
}

// PurgeDeadLetters removes entries with AbortedAt before the given time.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	// Exclusive upper bound: entries aborted exactly at the cutoff stay.
	ids, err := s.client.ZRangeByScore(ctx, deadLettersByTimeKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("cascade/redis: purge dead letters range: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, deadLetterKey(eID))
		pipe.ZRem(ctx, deadLettersByTimeKey, eID)
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return purged, fmt.Errorf("cascade/redis: purge dead letters del: %w", pErr)
		}
		purged++
	}
	return purged, nil
}

// CountDeadLetters returns the total number of entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, deadLettersByTimeKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cascade/redis: count dead letters: %w", err)
	}
	return count, nil
}

// ── helpers ──

func deadLetterToMap(e *deadletter.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":          e.ID.String(),
		"chain_id":    e.ChainID.String(),
		"kind":        e.Kind.String(),
		"job":         e.Job,
		"params":      marshalParams(e.Params),
		"error":       e.Error,
		"attempts":    strconv.Itoa(e.Attempts),
		"max_retries": strconv.Itoa(e.MaxRetries),
		"hops":        strconv.Itoa(e.Hops),
		"aborted_at":  e.AbortedAt.Format(time.RFC3339Nano),
		"created_at":  e.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  e.UpdatedAt.Format(time.RFC3339Nano),
	}
	if e.ReplayedAt != nil {
		m["replayed_at"] = e.ReplayedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToDeadLetter(m map[string]string) (*deadletter.Entry, error) {
	eID, err := id.ParseDeadLetterID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: parse dead letter id: %w", err)
	}
	chainID, _ := id.ParseChainID(m["chain_id"])                  //nolint:errcheck // best-effort parse from trusted Redis data
	attempts, _ := strconv.Atoi(m["attempts"])                    //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])               //nolint:errcheck // best-effort parse from trusted Redis data
	hops, _ := strconv.Atoi(m["hops"])                            //nolint:errcheck // best-effort parse from trusted Redis data
	abortedAt, _ := time.Parse(time.RFC3339Nano, m["aborted_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &deadletter.Entry{
		Entity: cascade.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:         eID,
		ChainID:    chainID,
		Kind:       cascade.Kind(m["kind"]),
		Job:        m["job"],
		Params:     unmarshalParams(m["params"]),
		Error:      m["error"],
		Attempts:   attempts,
		MaxRetries: maxRetries,
		Hops:       hops,
		AbortedAt:  abortedAt,
	}

	if v := m["replayed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.ReplayedAt = &t
	}
	return e, nil
}
