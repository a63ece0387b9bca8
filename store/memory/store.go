// Package memory provides a fully in-memory store.Store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/trigger"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ chain.Store      = (*Store)(nil)
	_ schedule.Store   = (*Store)(nil)
	_ deadletter.Store = (*Store)(nil)
	_ trigger.Store    = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	links       map[string]*chain.LinkConfig // key: "kind:job"
	activations map[string]*schedule.Activation
	deadletters map[string]*deadletter.Entry
	triggers    map[string]*trigger.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		links:       make(map[string]*chain.LinkConfig),
		activations: make(map[string]*schedule.Activation),
		deadletters: make(map[string]*deadletter.Entry),
		triggers:    make(map[string]*trigger.Entry),
	}
}

func linkKey(kind cascade.Kind, job string) string {
	return kind.String() + ":" + job
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Chain Link Store
// ──────────────────────────────────────────────────

// PutLink upserts a link config keyed by (Kind, Job).
func (m *Store) PutLink(_ context.Context, cfg *chain.LinkConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[linkKey(cfg.Kind, cfg.Job)] = copyLink(cfg)
	return nil
}

// GetLink retrieves the config for a job identifier.
func (m *Store) GetLink(_ context.Context, kind cascade.Kind, job string) (*chain.LinkConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.links[linkKey(kind, job)]
	if !ok {
		return nil, cascade.ErrConfigNotFound
	}
	return copyLink(cfg), nil
}

// ListLinks returns link configs matching the given options.
func (m *Store) ListLinks(_ context.Context, opts chain.ListOpts) ([]*chain.LinkConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*chain.LinkConfig, 0, len(m.links))
	for _, cfg := range m.links {
		if opts.Kind != "" && cfg.Kind != opts.Kind {
			continue
		}
		if opts.ActiveOnly && !cfg.Active {
			continue
		}
		result = append(result, copyLink(cfg))
	}

	sort.Slice(result, func(i, k int) bool {
		if result[i].Kind != result[k].Kind {
			return result[i].Kind < result[k].Kind
		}
		return result[i].Job < result[k].Job
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// DeleteLink removes the config for a job identifier.
func (m *Store) DeleteLink(_ context.Context, kind cascade.Kind, job string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey(kind, job)
	if _, ok := m.links[key]; !ok {
		return cascade.ErrConfigNotFound
	}
	delete(m.links, key)
	return nil
}

// ──────────────────────────────────────────────────
// Schedule Store
// ──────────────────────────────────────────────────

// PutActivation persists an activation.
func (m *Store) PutActivation(_ context.Context, act *schedule.Activation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations[act.ID.String()] = copyActivation(act)
	return nil
}

// GetActivation retrieves an activation by ID.
func (m *Store) GetActivation(_ context.Context, sid id.ScheduleID) (*schedule.Activation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	act, ok := m.activations[sid.String()]
	if !ok {
		return nil, cascade.ErrScheduleNotFound
	}
	return copyActivation(act), nil
}

// DueActivations returns activations eligible at or before now, oldest
// eligibility first.
func (m *Store) DueActivations(_ context.Context, now time.Time, limit int) ([]*schedule.Activation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*schedule.Activation
	for _, act := range m.activations {
		if !act.EligibleAt.After(now) {
			due = append(due, copyActivation(act))
		}
	}

	sort.Slice(due, func(i, k int) bool {
		return due[i].EligibleAt.Before(due[k].EligibleAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ListActivations returns all pending activations, oldest eligibility first.
func (m *Store) ListActivations(_ context.Context) ([]*schedule.Activation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*schedule.Activation, 0, len(m.activations))
	for _, act := range m.activations {
		result = append(result, copyActivation(act))
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].EligibleAt.Before(result[k].EligibleAt)
	})
	return result, nil
}

// DeleteActivation removes an activation by ID.
func (m *Store) DeleteActivation(_ context.Context, sid id.ScheduleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activations, sid.String())
	return nil
}

// ──────────────────────────────────────────────────
// Dead Letter Store
// ──────────────────────────────────────────────────

// PushDeadLetter adds an aborted link entry.
func (m *Store) PushDeadLetter(_ context.Context, entry *deadletter.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadletters[entry.ID.String()] = copyDeadLetter(entry)
	return nil
}

// GetDeadLetter retrieves an entry by ID.
func (m *Store) GetDeadLetter(_ context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.deadletters[entryID.String()]
	if !ok {
		return nil, cascade.ErrDeadLetterNotFound
	}
	return copyDeadLetter(entry), nil
}

// ListDeadLetters returns entries matching the given options, newest
// abort first.
func (m *Store) ListDeadLetters(_ context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*deadletter.Entry, 0, len(m.deadletters))
	for _, entry := range m.deadletters {
		if opts.Kind != "" && entry.Kind != opts.Kind {
			continue
		}
		result = append(result, copyDeadLetter(entry))
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].AbortedAt.After(result[k].AbortedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// MarkReplayed sets ReplayedAt on an entry.
func (m *Store) MarkReplayed(_ context.Context, entryID id.DeadLetterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.deadletters[entryID.String()]
	if !ok {
		return cascade.ErrDeadLetterNotFound
	}
	now := time.Now().UTC()
	entry.ReplayedAt = &now
	entry.Touch()
	return nil
}

// PurgeDeadLetters removes entries aborted before the given time.
func (m *Store) PurgeDeadLetters(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for key, entry := range m.deadletters {
		if entry.AbortedAt.Before(before) {
			delete(m.deadletters, key)
			removed++
		}
	}
	return removed, nil
}

// CountDeadLetters returns the total number of entries.
func (m *Store) CountDeadLetters(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.deadletters)), nil
}

// ──────────────────────────────────────────────────
// Trigger Store
// ──────────────────────────────────────────────────

// RegisterTrigger persists a new entry, rejecting duplicate names.
func (m *Store) RegisterTrigger(_ context.Context, entry *trigger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.triggers {
		if existing.Name == entry.Name {
			return cascade.ErrDuplicateTrigger
		}
	}
	m.triggers[entry.ID.String()] = copyTrigger(entry)
	return nil
}

// GetTrigger retrieves an entry by ID.
func (m *Store) GetTrigger(_ context.Context, tid id.TriggerID) (*trigger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.triggers[tid.String()]
	if !ok {
		return nil, cascade.ErrTriggerNotFound
	}
	return copyTrigger(entry), nil
}

// ListTriggers returns all entries sorted by name.
func (m *Store) ListTriggers(_ context.Context) ([]*trigger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*trigger.Entry, 0, len(m.triggers))
	for _, entry := range m.triggers {
		result = append(result, copyTrigger(entry))
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].Name < result[k].Name
	})
	return result, nil
}

// UpdateTrigger updates an entry.
func (m *Store) UpdateTrigger(_ context.Context, entry *trigger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggers[entry.ID.String()]; !ok {
		return cascade.ErrTriggerNotFound
	}
	m.triggers[entry.ID.String()] = copyTrigger(entry)
	return nil
}

// DeleteTrigger removes an entry by ID.
func (m *Store) DeleteTrigger(_ context.Context, tid id.TriggerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.triggers[tid.String()]; !ok {
		return cascade.ErrTriggerNotFound
	}
	delete(m.triggers, tid.String())
	return nil
}

// ──────────────────────────────────────────────────
// Copy helpers
// ──────────────────────────────────────────────────

// Records are copied on the way in and out so callers can mutate without
// racing with the store. Params maps are cloned, not aliased.

func copyLink(cfg *chain.LinkConfig) *chain.LinkConfig {
	cp := *cfg
	return &cp
}

func copyActivation(act *schedule.Activation) *schedule.Activation {
	cp := *act
	cp.Params = act.Params.Clone()
	return &cp
}

func copyDeadLetter(entry *deadletter.Entry) *deadletter.Entry {
	cp := *entry
	cp.Params = entry.Params.Clone()
	if entry.ReplayedAt != nil {
		t := *entry.ReplayedAt
		cp.ReplayedAt = &t
	}
	return &cp
}

func copyTrigger(entry *trigger.Entry) *trigger.Entry {
	cp := *entry
	cp.Params = entry.Params.Clone()
	if entry.LastRunAt != nil {
		t := *entry.LastRunAt
		cp.LastRunAt = &t
	}
	if entry.NextRunAt != nil {
		t := *entry.NextRunAt
		cp.NextRunAt = &t
	}
	return &cp
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
