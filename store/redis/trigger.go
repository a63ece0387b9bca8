package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

// RegisterTrigger persists a new entry, rejecting duplicate names.
func (s *Store) RegisterTrigger(ctx context.Context, entry *trigger.Entry) error {
	eID := entry.ID.String()

	existing, err := s.client.HGet(ctx, triggerNamesKey, entry.Name).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("cascade/redis: register trigger check name: %w", err)
	}
	if existing != "" {
		return cascade.ErrDuplicateTrigger
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, triggerKey(eID), triggerToMap(entry))
	pipe.SAdd(ctx, triggerIDsKey, eID)
	pipe.HSet(ctx, triggerNamesKey, entry.Name, eID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: register trigger: %w", err)
	}
	return nil
}

// GetTrigger retrieves an entry by ID.
func (s *Store) GetTrigger(ctx context.Context, tid id.TriggerID) (*trigger.Entry, error) {
	vals, err := s.client.HGetAll(ctx, triggerKey(tid.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get trigger: %w", err)
	}
	if len(vals) == 0 {
		return nil, cascade.ErrTriggerNotFound
	}
	return mapToTrigger(vals)
}

// ListTriggers returns all entries sorted by name.
func (s *Store) ListTriggers(ctx context.Context) ([]*trigger.Entry, error) {
	ids, err := s.client.SMembers(ctx, triggerIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list triggers: %w", err)
	}

	entries := make([]*trigger.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, triggerKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		entry, convErr := mapToTrigger(vals)
		if convErr != nil {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name < entries[k].Name
	})
	return entries, nil
}

// UpdateTrigger updates an entry, keeping the name index consistent on
// rename.
func (s *Store) UpdateTrigger(ctx context.Context, entry *trigger.Entry) error {
	eID := entry.ID.String()
	key := triggerKey(eID)

	oldName, err := s.client.HGet(ctx, key, "name").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return cascade.ErrTriggerNotFound
		}
		return fmt.Errorf("cascade/redis: update trigger get name: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, triggerToMap(entry))
	if oldName != entry.Name {
		pipe.HDel(ctx, triggerNamesKey, oldName)
		pipe.HSet(ctx, triggerNamesKey, entry.Name, eID)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: update trigger: %w", err)
	}
	return nil
}

// DeleteTrigger removes an entry by ID.
func (s *Store) DeleteTrigger(ctx context.Context, tid id.TriggerID) error {
	eID := tid.String()
	key := triggerKey(eID)

	name, err := s.client.HGet(ctx, key, "name").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return cascade.ErrTriggerNotFound
		}
		return fmt.Errorf("cascade/redis: delete trigger get name: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, triggerIDsKey, eID)
	if name != "" {
		pipe.HDel(ctx, triggerNamesKey, name)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cascade/redis: delete trigger: %w", err)
	}
	return nil
}

// ── helpers ──

func triggerToMap(e *trigger.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":         e.ID.String(),
		"name":       e.Name,
		"schedule":   e.Schedule,
		"kind":       e.Kind.String(),
		"job":        e.Job,
		"params":     marshalParams(e.Params),
		"enabled":    strconv.FormatBool(e.Enabled),
		"created_at": e.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": e.UpdatedAt.Format(time.RFC3339Nano),
	}
	if e.LastRunAt != nil {
		m["last_run_at"] = e.LastRunAt.Format(time.RFC3339Nano)
	}
	if e.NextRunAt != nil {
		m["next_run_at"] = e.NextRunAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToTrigger(m map[string]string) (*trigger.Entry, error) {
	eID, err := id.ParseTriggerID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: parse trigger id: %w", err)
	}
	enabled, _ := strconv.ParseBool(m["enabled"])                 //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &trigger.Entry{
		Entity: cascade.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:       eID,
		Name:     m["name"],
		Schedule: m["schedule"],
		Kind:     cascade.Kind(m["kind"]),
		Job:      m["job"],
		Params:   unmarshalParams(m["params"]),
		Enabled:  enabled,
	}

	if v := m["last_run_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.LastRunAt = &t
	}
	if v := m["next_run_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.NextRunAt = &t
	}
	return e, nil
}
