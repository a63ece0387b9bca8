package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/store/sqlite"
	"github.com/xraph/cascade/trigger"
)

// newTestStore opens a fresh database file under t.TempDir and migrates it.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cascade.db")
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestPing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	// Schema statements all carry IF NOT EXISTS, so a second run is a no-op.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Chain Link Store tests
// ──────────────────────────────────────────────────

func TestLinkRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	cfg := &chain.LinkConfig{
		Entity:            cascade.NewEntity(),
		Kind:              cascade.KindBatch,
		Job:               "collect-invoices",
		Next:              "send-invoices",
		BatchSize:         150,
		Delay:             30 * time.Second,
		Timeout:           5 * time.Minute,
		MaxRetries:        3,
		Active:            true,
		ContinueOnFailure: true,
		Description:       "invoice pipeline head",
	}
	if err := s.PutLink(ctx, cfg); err != nil {
		t.Fatalf("PutLink: %v", err)
	}

	got, err := s.GetLink(ctx, cascade.KindBatch, "collect-invoices")
	if err != nil {
		t.Fatalf("GetLink: %v", err)
	}
	if got.Next != "send-invoices" {
		t.Errorf("Next = %q, want %q", got.Next, "send-invoices")
	}
	if got.Delay != 30*time.Second {
		t.Errorf("Delay = %v, want 30s", got.Delay)
	}
	if got.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want 5m", got.Timeout)
	}
	if !got.ContinueOnFailure {
		t.Error("ContinueOnFailure not preserved")
	}
	if got.Description != "invoice pipeline head" {
		t.Errorf("Description = %q", got.Description)
	}
	if !got.CreatedAt.Equal(cfg.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, cfg.CreatedAt)
	}

	// Upsert replaces the record for the same (kind, job).
	cfg.Next = "archive-invoices"
	cfg.Touch()
	if err := s.PutLink(ctx, cfg); err != nil {
		t.Fatalf("PutLink upsert: %v", err)
	}
	got, err = s.GetLink(ctx, cascade.KindBatch, "collect-invoices")
	if err != nil {
		t.Fatalf("GetLink after upsert: %v", err)
	}
	if got.Next != "archive-invoices" {
		t.Errorf("Next after upsert = %q, want %q", got.Next, "archive-invoices")
	}
}

func TestLinkNotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetLink(context.Background(), cascade.KindBatch, "missing")
	if !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Fatalf("GetLink error = %v, want ErrConfigNotFound", err)
	}
}

func TestLinkKindNamespaces(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, kind := range []cascade.Kind{cascade.KindBatch, cascade.KindQueueable} {
		cfg := &chain.LinkConfig{
			Entity: cascade.NewEntity(),
			Kind:   kind,
			Job:    "sync-users",
			Active: true,
		}
		if err := s.PutLink(ctx, cfg); err != nil {
			t.Fatalf("PutLink %s: %v", kind, err)
		}
	}

	if err := s.DeleteLink(ctx, cascade.KindBatch, "sync-users"); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	// The queueable record lives in its own namespace.
	if _, err := s.GetLink(ctx, cascade.KindQueueable, "sync-users"); err != nil {
		t.Fatalf("queueable record gone after batch delete: %v", err)
	}
}

func TestLinkListFilters(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cfg := &chain.LinkConfig{
			Entity: cascade.NewEntity(),
			Kind:   cascade.KindBatch,
			Job:    fmt.Sprintf("job-%d", i),
			Active: i%2 == 0,
		}
		if err := s.PutLink(ctx, cfg); err != nil {
			t.Fatalf("PutLink job-%d: %v", i, err)
		}
	}

	all, err := s.ListLinks(ctx, chain.ListOpts{})
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len(all) = %d, want 5", len(all))
	}
	if all[0].Job != "job-0" {
		t.Errorf("first job = %q, want job-0", all[0].Job)
	}

	active, err := s.ListLinks(ctx, chain.ListOpts{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListLinks active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("len(active) = %d, want 3", len(active))
	}

	page, err := s.ListLinks(ctx, chain.ListOpts{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListLinks page: %v", err)
	}
	if len(page) != 2 || page[0].Job != "job-2" {
		t.Fatalf("page = %v, want [job-2 job-3]", jobNames(page))
	}

	// Offset without a limit still pages.
	tail, err := s.ListLinks(ctx, chain.ListOpts{Offset: 4})
	if err != nil {
		t.Fatalf("ListLinks tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Job != "job-4" {
		t.Fatalf("tail = %v, want [job-4]", jobNames(tail))
	}
}

func jobNames(cfgs []*chain.LinkConfig) []string {
	names := make([]string, len(cfgs))
	for i, cfg := range cfgs {
		names[i] = cfg.Job
	}
	return names
}

func TestLinkDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	cfg := &chain.LinkConfig{
		Entity: cascade.NewEntity(),
		Kind:   cascade.KindQueueable,
		Job:    "ephemeral",
		Active: true,
	}
	if err := s.PutLink(ctx, cfg); err != nil {
		t.Fatalf("PutLink: %v", err)
	}
	if err := s.DeleteLink(ctx, cascade.KindQueueable, "ephemeral"); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if err := s.DeleteLink(ctx, cascade.KindQueueable, "ephemeral"); !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Fatalf("second DeleteLink error = %v, want ErrConfigNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Schedule Store tests
// ──────────────────────────────────────────────────

func TestActivationRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	eligible := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	act := &schedule.Activation{
		Entity:     cascade.NewEntity(),
		ID:         id.NewScheduleID(),
		Kind:       cascade.KindBatch,
		Job:        "load-orders",
		ChainID:    id.NewChainID(),
		Params:     cascade.Params{"cursor": "p42", "limit": float64(50)},
		Attempt:    2,
		Hops:       3,
		Reason:     schedule.ReasonRetry,
		EligibleAt: eligible,
	}
	if err := s.PutActivation(ctx, act); err != nil {
		t.Fatalf("PutActivation: %v", err)
	}

	got, err := s.GetActivation(ctx, act.ID)
	if err != nil {
		t.Fatalf("GetActivation: %v", err)
	}
	if got.Reason != schedule.ReasonRetry {
		t.Errorf("Reason = %q, want retry", got.Reason)
	}
	if got.Attempt != 2 || got.Hops != 3 {
		t.Errorf("Attempt/Hops = %d/%d, want 2/3", got.Attempt, got.Hops)
	}
	if got.Params["cursor"] != "p42" {
		t.Errorf("Params[cursor] = %v, want p42", got.Params["cursor"])
	}
	if got.Params["limit"] != float64(50) {
		t.Errorf("Params[limit] = %v, want 50", got.Params["limit"])
	}
	// Nanosecond precision survives the integer column.
	if !got.EligibleAt.Equal(eligible) {
		t.Errorf("EligibleAt = %v, want %v", got.EligibleAt, eligible)
	}
	if got.ChainID.String() != act.ChainID.String() {
		t.Errorf("ChainID = %s, want %s", got.ChainID, act.ChainID)
	}
}

func TestActivationDueOrdering(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	offsets := []time.Duration{-time.Minute, -time.Hour, time.Hour}
	for i, off := range offsets {
		act := &schedule.Activation{
			Entity:     cascade.NewEntity(),
			ID:         id.NewScheduleID(),
			Kind:       cascade.KindBatch,
			Job:        fmt.Sprintf("due-%d", i),
			ChainID:    id.NewChainID(),
			Reason:     schedule.ReasonDelay,
			EligibleAt: now.Add(off),
		}
		if err := s.PutActivation(ctx, act); err != nil {
			t.Fatalf("PutActivation %d: %v", i, err)
		}
	}

	due, err := s.DueActivations(ctx, now, 0)
	if err != nil {
		t.Fatalf("DueActivations: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("len(due) = %d, want 2", len(due))
	}
	if due[0].Job != "due-1" {
		t.Errorf("oldest first: got %q, want due-1", due[0].Job)
	}

	limited, err := s.DueActivations(ctx, now, 1)
	if err != nil {
		t.Fatalf("DueActivations limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Job != "due-1" {
		t.Fatalf("limited = %d entries, want just due-1", len(limited))
	}

	all, err := s.ListActivations(ctx)
	if err != nil {
		t.Fatalf("ListActivations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
}

func TestActivationUpsert(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	act := &schedule.Activation{
		Entity:     cascade.NewEntity(),
		ID:         id.NewScheduleID(),
		Kind:       cascade.KindQueueable,
		Job:        "reschedule-me",
		ChainID:    id.NewChainID(),
		Reason:     schedule.ReasonDeferred,
		EligibleAt: time.Now().UTC().Add(time.Hour),
	}
	if err := s.PutActivation(ctx, act); err != nil {
		t.Fatalf("PutActivation: %v", err)
	}

	// Writing the same ID again moves the eligibility instead of duplicating.
	act.EligibleAt = act.EligibleAt.Add(time.Hour)
	act.Touch()
	if err := s.PutActivation(ctx, act); err != nil {
		t.Fatalf("PutActivation update: %v", err)
	}

	all, err := s.ListActivations(ctx)
	if err != nil {
		t.Fatalf("ListActivations: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("len(all) = %d, want 1", len(all))
	}
	if !all[0].EligibleAt.Equal(act.EligibleAt) {
		t.Errorf("EligibleAt = %v, want %v", all[0].EligibleAt, act.EligibleAt)
	}
}

func TestActivationDeleteIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	act := &schedule.Activation{
		Entity:     cascade.NewEntity(),
		ID:         id.NewScheduleID(),
		Kind:       cascade.KindBatch,
		Job:        "fire-once",
		ChainID:    id.NewChainID(),
		Reason:     schedule.ReasonDelay,
		EligibleAt: time.Now().UTC(),
	}
	if err := s.PutActivation(ctx, act); err != nil {
		t.Fatalf("PutActivation: %v", err)
	}
	if err := s.DeleteActivation(ctx, act.ID); err != nil {
		t.Fatalf("DeleteActivation: %v", err)
	}
	if _, err := s.GetActivation(ctx, act.ID); !errors.Is(err, cascade.ErrScheduleNotFound) {
		t.Fatalf("GetActivation error = %v, want ErrScheduleNotFound", err)
	}
	// Second delete is a no-op.
	if err := s.DeleteActivation(ctx, act.ID); err != nil {
		t.Fatalf("second DeleteActivation: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Dead Letter Store tests
// ──────────────────────────────────────────────────

func newDeadLetter(job string, abortedAt time.Time) *deadletter.Entry {
	return &deadletter.Entry{
		Entity:     cascade.NewEntity(),
		ID:         id.NewDeadLetterID(),
		ChainID:    id.NewChainID(),
		Kind:       cascade.KindBatch,
		Job:        job,
		Params:     cascade.Params{"region": "eu"},
		Error:      "feed unavailable",
		Attempts:   4,
		MaxRetries: 3,
		Hops:       2,
		AbortedAt:  abortedAt,
	}
}

func TestDeadLetterRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	entry := newDeadLetter("import-feed", time.Now().UTC())
	if err := s.PushDeadLetter(ctx, entry); err != nil {
		t.Fatalf("PushDeadLetter: %v", err)
	}

	got, err := s.GetDeadLetter(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter: %v", err)
	}
	if got.Error != "feed unavailable" {
		t.Errorf("Error = %q", got.Error)
	}
	if got.Attempts != 4 || got.MaxRetries != 3 {
		t.Errorf("Attempts/MaxRetries = %d/%d, want 4/3", got.Attempts, got.MaxRetries)
	}
	if got.ReplayedAt != nil {
		t.Error("ReplayedAt should start nil")
	}
	if got.Params["region"] != "eu" {
		t.Errorf("Params[region] = %v, want eu", got.Params["region"])
	}
}

func TestDeadLetterListNewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		entry := newDeadLetter(fmt.Sprintf("dl-%d", i), now.Add(-time.Duration(i)*time.Hour))
		if err := s.PushDeadLetter(ctx, entry); err != nil {
			t.Fatalf("PushDeadLetter %d: %v", i, err)
		}
	}

	entries, err := s.ListDeadLetters(ctx, deadletter.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Job != "dl-0" {
		t.Errorf("newest first: got %q, want dl-0", entries[0].Job)
	}

	none, err := s.ListDeadLetters(ctx, deadletter.ListOpts{Kind: cascade.KindQueueable})
	if err != nil {
		t.Fatalf("ListDeadLetters queueable: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("len(queueable) = %d, want 0", len(none))
	}
}

func TestDeadLetterReplay(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	entry := newDeadLetter("replay-me", time.Now().UTC())
	if err := s.PushDeadLetter(ctx, entry); err != nil {
		t.Fatalf("PushDeadLetter: %v", err)
	}
	if err := s.MarkReplayed(ctx, entry.ID); err != nil {
		t.Fatalf("MarkReplayed: %v", err)
	}

	got, err := s.GetDeadLetter(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter: %v", err)
	}
	if got.ReplayedAt == nil {
		t.Fatal("ReplayedAt not set")
	}

	if err := s.MarkReplayed(ctx, id.NewDeadLetterID()); !errors.Is(err, cascade.ErrDeadLetterNotFound) {
		t.Fatalf("MarkReplayed missing error = %v, want ErrDeadLetterNotFound", err)
	}
}

func TestDeadLetterPurgeAndCount(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-time.Hour)

	old := newDeadLetter("old-entry", cutoff.Add(-time.Minute))
	boundary := newDeadLetter("boundary-entry", cutoff)
	fresh := newDeadLetter("fresh-entry", cutoff.Add(time.Minute))
	for _, e := range []*deadletter.Entry{old, boundary, fresh} {
		if err := s.PushDeadLetter(ctx, e); err != nil {
			t.Fatalf("PushDeadLetter: %v", err)
		}
	}

	purged, err := s.PurgeDeadLetters(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeDeadLetters: %v", err)
	}
	// Strictly before: the entry aborted exactly at the cutoff stays.
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	count, err := s.CountDeadLetters(ctx)
	if err != nil {
		t.Fatalf("CountDeadLetters: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

// ──────────────────────────────────────────────────
// Trigger Store tests
// ──────────────────────────────────────────────────

func TestTriggerRegisterAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	next := time.Now().UTC().Add(time.Hour)
	entry := &trigger.Entry{
		Entity:    cascade.NewEntity(),
		ID:        id.NewTriggerID(),
		Name:      "nightly-sync",
		Schedule:  "0 2 * * *",
		Kind:      cascade.KindBatch,
		Job:       "extract-orders",
		Params:    cascade.Params{"source": "erp"},
		NextRunAt: &next,
		Enabled:   true,
	}
	if err := s.RegisterTrigger(ctx, entry); err != nil {
		t.Fatalf("RegisterTrigger: %v", err)
	}

	dup := &trigger.Entry{
		Entity:   cascade.NewEntity(),
		ID:       id.NewTriggerID(),
		Name:     "nightly-sync",
		Schedule: "0 3 * * *",
		Kind:     cascade.KindBatch,
		Job:      "other-job",
	}
	if err := s.RegisterTrigger(ctx, dup); !errors.Is(err, cascade.ErrDuplicateTrigger) {
		t.Fatalf("duplicate RegisterTrigger error = %v, want ErrDuplicateTrigger", err)
	}

	got, err := s.GetTrigger(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetTrigger: %v", err)
	}
	if got.Schedule != "0 2 * * *" {
		t.Errorf("Schedule = %q", got.Schedule)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("NextRunAt = %v, want %v", got.NextRunAt, next)
	}
	if got.LastRunAt != nil {
		t.Error("LastRunAt should start nil")
	}
	if got.Params["source"] != "erp" {
		t.Errorf("Params[source] = %v, want erp", got.Params["source"])
	}
}

func TestTriggerUpdateListDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	names := []string{"weekly-report", "daily-cleanup"}
	ids := make([]id.TriggerID, len(names))
	for i, name := range names {
		entry := &trigger.Entry{
			Entity:   cascade.NewEntity(),
			ID:       id.NewTriggerID(),
			Name:     name,
			Schedule: "@daily",
			Kind:     cascade.KindQueueable,
			Job:      "rollup",
			Enabled:  true,
		}
		if err := s.RegisterTrigger(ctx, entry); err != nil {
			t.Fatalf("RegisterTrigger %s: %v", name, err)
		}
		ids[i] = entry.ID
	}

	entries, err := s.ListTriggers(ctx)
	if err != nil {
		t.Fatalf("ListTriggers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Name != "daily-cleanup" {
		t.Errorf("sorted by name: got %q first, want daily-cleanup", entries[0].Name)
	}

	now := time.Now().UTC()
	first, err := s.GetTrigger(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetTrigger: %v", err)
	}
	first.Enabled = false
	first.LastRunAt = &now
	first.Touch()
	if err := s.UpdateTrigger(ctx, first); err != nil {
		t.Fatalf("UpdateTrigger: %v", err)
	}

	got, err := s.GetTrigger(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetTrigger after update: %v", err)
	}
	if got.Enabled {
		t.Error("Enabled should be false after update")
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(now) {
		t.Errorf("LastRunAt = %v, want %v", got.LastRunAt, now)
	}

	if err := s.DeleteTrigger(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteTrigger: %v", err)
	}
	if err := s.DeleteTrigger(ctx, ids[0]); !errors.Is(err, cascade.ErrTriggerNotFound) {
		t.Fatalf("second DeleteTrigger error = %v, want ErrTriggerNotFound", err)
	}

	missing := &trigger.Entry{
		Entity:   cascade.NewEntity(),
		ID:       id.NewTriggerID(),
		Name:     "ghost",
		Schedule: "@hourly",
		Kind:     cascade.KindBatch,
		Job:      "noop",
	}
	if err := s.UpdateTrigger(ctx, missing); !errors.Is(err, cascade.ErrTriggerNotFound) {
		t.Fatalf("UpdateTrigger missing error = %v, want ErrTriggerNotFound", err)
	}
}
