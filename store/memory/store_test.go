package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/trigger"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Chain Link Store tests
// ──────────────────────────────────────────────────

func newLink(kind cascade.Kind, job, next string, active bool) *chain.LinkConfig {
	return &chain.LinkConfig{
		Entity:     cascade.NewEntity(),
		Kind:       kind,
		Job:        job,
		Next:       next,
		BatchSize:  200,
		MaxRetries: 3,
		Active:     active,
	}
}

func TestLinkPutGetDelete(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	cfg := newLink(cascade.KindBatch, "collect-invoices", "send-invoices", true)
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

	// Upsert replaces the record for the same (kind, job).
	cfg.Next = "archive-invoices"
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

	// The same job name under the other kind is a separate record.
	if _, err := s.GetLink(ctx, cascade.KindQueueable, "collect-invoices"); !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Errorf("cross-kind GetLink error = %v, want ErrConfigNotFound", err)
	}

	if err := s.DeleteLink(ctx, cascade.KindBatch, "collect-invoices"); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if _, err := s.GetLink(ctx, cascade.KindBatch, "collect-invoices"); !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Errorf("GetLink after delete error = %v, want ErrConfigNotFound", err)
	}
	if err := s.DeleteLink(ctx, cascade.KindBatch, "collect-invoices"); !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Errorf("double DeleteLink error = %v, want ErrConfigNotFound", err)
	}
}

func TestLinkList(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	links := []*chain.LinkConfig{
		newLink(cascade.KindBatch, "a-job", "", true),
		newLink(cascade.KindBatch, "b-job", "", false),
		newLink(cascade.KindQueueable, "c-job", "", true),
	}
	for _, cfg := range links {
		if err := s.PutLink(ctx, cfg); err != nil {
			t.Fatalf("PutLink %s: %v", cfg.Job, err)
		}
	}

	all, err := s.ListLinks(ctx, chain.ListOpts{})
	if err != nil {
		t.Fatalf("ListLinks: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListLinks len = %d, want 3", len(all))
	}
	// Sorted by kind then job.
	if all[0].Job != "a-job" || all[1].Job != "b-job" || all[2].Job != "c-job" {
		t.Errorf("order = %s,%s,%s, want a-job,b-job,c-job", all[0].Job, all[1].Job, all[2].Job)
	}

	batchOnly, err := s.ListLinks(ctx, chain.ListOpts{Kind: cascade.KindBatch})
	if err != nil {
		t.Fatalf("ListLinks kind filter: %v", err)
	}
	if len(batchOnly) != 2 {
		t.Errorf("batch-only len = %d, want 2", len(batchOnly))
	}

	active, err := s.ListLinks(ctx, chain.ListOpts{ActiveOnly: true})
	if err != nil {
		t.Fatalf("ListLinks active filter: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active-only len = %d, want 2", len(active))
	}

	paged, err := s.ListLinks(ctx, chain.ListOpts{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListLinks paged: %v", err)
	}
	if len(paged) != 1 || paged[0].Job != "b-job" {
		t.Errorf("paged = %v, want [b-job]", paged)
	}
}

// ──────────────────────────────────────────────────
// Schedule Store tests
// ──────────────────────────────────────────────────

func newActivation(job string, eligibleIn time.Duration) *schedule.Activation {
	return &schedule.Activation{
		Entity:     cascade.NewEntity(),
		ID:         id.NewScheduleID(),
		Kind:       cascade.KindBatch,
		Job:        job,
		ChainID:    id.NewChainID(),
		Params:     cascade.Params{"region": "emea"},
		Attempt:    1,
		Reason:     schedule.ReasonDelay,
		EligibleAt: time.Now().UTC().Add(eligibleIn),
	}
}

func TestActivationPutGetDelete(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	act := newActivation("send-invoices", time.Minute)
	if err := s.PutActivation(ctx, act); err != nil {
		t.Fatalf("PutActivation: %v", err)
	}

	got, err := s.GetActivation(ctx, act.ID)
	if err != nil {
		t.Fatalf("GetActivation: %v", err)
	}
	if got.Job != "send-invoices" {
		t.Errorf("Job = %q, want %q", got.Job, "send-invoices")
	}

	if _, err := s.GetActivation(ctx, id.NewScheduleID()); !errors.Is(err, cascade.ErrScheduleNotFound) {
		t.Errorf("missing GetActivation error = %v, want ErrScheduleNotFound", err)
	}

	if err := s.DeleteActivation(ctx, act.ID); err != nil {
		t.Fatalf("DeleteActivation: %v", err)
	}
	if _, err := s.GetActivation(ctx, act.ID); !errors.Is(err, cascade.ErrScheduleNotFound) {
		t.Errorf("GetActivation after delete error = %v, want ErrScheduleNotFound", err)
	}
}

func TestActivationDue(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	past1 := newActivation("first", -2*time.Minute)
	past2 := newActivation("second", -1*time.Minute)
	future := newActivation("future", time.Hour)
	for _, act := range []*schedule.Activation{future, past2, past1} {
		if err := s.PutActivation(ctx, act); err != nil {
			t.Fatalf("PutActivation %s: %v", act.Job, err)
		}
	}

	due, err := s.DueActivations(ctx, time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("DueActivations: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due len = %d, want 2", len(due))
	}
	// Oldest eligibility first.
	if due[0].Job != "first" || due[1].Job != "second" {
		t.Errorf("due order = %s,%s, want first,second", due[0].Job, due[1].Job)
	}

	limited, err := s.DueActivations(ctx, time.Now().UTC(), 1)
	if err != nil {
		t.Fatalf("DueActivations limited: %v", err)
	}
	if len(limited) != 1 || limited[0].Job != "first" {
		t.Errorf("limited = %v, want [first]", limited)
	}

	// An activation eligible exactly now is due ("at or after").
	edge := newActivation("edge", 0)
	if err := s.PutActivation(ctx, edge); err != nil {
		t.Fatalf("PutActivation edge: %v", err)
	}
	due, err = s.DueActivations(ctx, edge.EligibleAt, 0)
	if err != nil {
		t.Fatalf("DueActivations edge: %v", err)
	}
	found := false
	for _, act := range due {
		if act.Job == "edge" {
			found = true
		}
	}
	if !found {
		t.Error("activation eligible exactly at now should be due")
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
		Params:     cascade.Params{"region": "emea"},
		Error:      "boom",
		Attempts:   4,
		MaxRetries: 3,
		AbortedAt:  abortedAt,
	}
}

func TestDeadLetterPushAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	entry := newDeadLetter("send-invoices", time.Now().UTC())
	if err := s.PushDeadLetter(ctx, entry); err != nil {
		t.Fatalf("PushDeadLetter: %v", err)
	}

	got, err := s.GetDeadLetter(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetDeadLetter: %v", err)
	}
	if got.Error != "boom" {
		t.Errorf("Error = %q, want %q", got.Error, "boom")
	}

	if _, err := s.GetDeadLetter(ctx, id.NewDeadLetterID()); !errors.Is(err, cascade.ErrDeadLetterNotFound) {
		t.Errorf("missing GetDeadLetter error = %v, want ErrDeadLetterNotFound", err)
	}
}

func TestDeadLetterList(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	older := newDeadLetter("older", now.Add(-time.Hour))
	newer := newDeadLetter("newer", now)
	queueable := newDeadLetter("queueable-job", now.Add(-time.Minute))
	queueable.Kind = cascade.KindQueueable

	for _, e := range []*deadletter.Entry{older, newer, queueable} {
		if err := s.PushDeadLetter(ctx, e); err != nil {
			t.Fatalf("PushDeadLetter %s: %v", e.Job, err)
		}
	}

	all, err := s.ListDeadLetters(ctx, deadletter.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list len = %d, want 3", len(all))
	}
	// Newest abort first.
	if all[0].Job != "newer" {
		t.Errorf("first = %q, want %q", all[0].Job, "newer")
	}

	batchOnly, err := s.ListDeadLetters(ctx, deadletter.ListOpts{Kind: cascade.KindBatch})
	if err != nil {
		t.Fatalf("ListDeadLetters kind filter: %v", err)
	}
	if len(batchOnly) != 2 {
		t.Errorf("batch-only len = %d, want 2", len(batchOnly))
	}

	paged, err := s.ListDeadLetters(ctx, deadletter.ListOpts{Offset: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListDeadLetters paged: %v", err)
	}
	if len(paged) != 1 || paged[0].Job != "queueable-job" {
		t.Errorf("paged = %v, want [queueable-job]", paged)
	}
}

func TestDeadLetterMarkReplayed(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	entry := newDeadLetter("send-invoices", time.Now().UTC())
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
		t.Error("ReplayedAt should be set after MarkReplayed")
	}

	if err := s.MarkReplayed(ctx, id.NewDeadLetterID()); !errors.Is(err, cascade.ErrDeadLetterNotFound) {
		t.Errorf("missing MarkReplayed error = %v, want ErrDeadLetterNotFound", err)
	}
}

func TestDeadLetterPurgeAndCount(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	old := newDeadLetter("old", now.Add(-48*time.Hour))
	recent := newDeadLetter("recent", now)
	for _, e := range []*deadletter.Entry{old, recent} {
		if err := s.PushDeadLetter(ctx, e); err != nil {
			t.Fatalf("PushDeadLetter %s: %v", e.Job, err)
		}
	}

	count, err := s.CountDeadLetters(ctx)
	if err != nil {
		t.Fatalf("CountDeadLetters: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	removed, err := s.PurgeDeadLetters(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeDeadLetters: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	count, err = s.CountDeadLetters(ctx)
	if err != nil {
		t.Fatalf("CountDeadLetters after purge: %v", err)
	}
	if count != 1 {
		t.Errorf("count after purge = %d, want 1", count)
	}
	if _, err := s.GetDeadLetter(ctx, recent.ID); err != nil {
		t.Errorf("recent entry should survive purge: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Trigger Store tests
// ──────────────────────────────────────────────────

func newTrigger(name, job string) *trigger.Entry {
	next := time.Now().UTC().Add(time.Hour)
	return &trigger.Entry{
		Entity:    cascade.NewEntity(),
		ID:        id.NewTriggerID(),
		Name:      name,
		Schedule:  "@every 1h",
		Kind:      cascade.KindBatch,
		Job:       job,
		Params:    cascade.Params{"mode": "full"},
		NextRunAt: &next,
		Enabled:   true,
	}
}

func TestTriggerRegisterAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	entry := newTrigger("nightly", "collect-invoices")
	if err := s.RegisterTrigger(ctx, entry); err != nil {
		t.Fatalf("RegisterTrigger: %v", err)
	}

	// Duplicate names are rejected even with a fresh ID.
	dup := newTrigger("nightly", "other-job")
	if err := s.RegisterTrigger(ctx, dup); !errors.Is(err, cascade.ErrDuplicateTrigger) {
		t.Errorf("duplicate RegisterTrigger error = %v, want ErrDuplicateTrigger", err)
	}

	got, err := s.GetTrigger(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetTrigger: %v", err)
	}
	if got.Job != "collect-invoices" {
		t.Errorf("Job = %q, want %q", got.Job, "collect-invoices")
	}

	if _, err := s.GetTrigger(ctx, id.NewTriggerID()); !errors.Is(err, cascade.ErrTriggerNotFound) {
		t.Errorf("missing GetTrigger error = %v, want ErrTriggerNotFound", err)
	}
}

func TestTriggerListUpdateDelete(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	b := newTrigger("beta", "b-job")
	a := newTrigger("alpha", "a-job")
	for _, e := range []*trigger.Entry{b, a} {
		if err := s.RegisterTrigger(ctx, e); err != nil {
			t.Fatalf("RegisterTrigger %s: %v", e.Name, err)
		}
	}

	list, err := s.ListTriggers(ctx)
	if err != nil {
		t.Fatalf("ListTriggers: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "beta" {
		t.Errorf("list order = %v, want alpha,beta", list)
	}

	a.Enabled = false
	if err := s.UpdateTrigger(ctx, a); err != nil {
		t.Fatalf("UpdateTrigger: %v", err)
	}
	got, err := s.GetTrigger(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetTrigger: %v", err)
	}
	if got.Enabled {
		t.Error("Enabled should be false after update")
	}

	ghost := newTrigger("ghost", "g-job")
	if err := s.UpdateTrigger(ctx, ghost); !errors.Is(err, cascade.ErrTriggerNotFound) {
		t.Errorf("missing UpdateTrigger error = %v, want ErrTriggerNotFound", err)
	}

	if err := s.DeleteTrigger(ctx, b.ID); err != nil {
		t.Fatalf("DeleteTrigger: %v", err)
	}
	if err := s.DeleteTrigger(ctx, b.ID); !errors.Is(err, cascade.ErrTriggerNotFound) {
		t.Errorf("double DeleteTrigger error = %v, want ErrTriggerNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Copy semantics
// ──────────────────────────────────────────────────

func TestReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	act := newActivation("send-invoices", time.Minute)
	if err := s.PutActivation(ctx, act); err != nil {
		t.Fatalf("PutActivation: %v", err)
	}

	// Mutating the caller's record after Put must not reach the store.
	act.Params["region"] = "apac"

	got, err := s.GetActivation(ctx, act.ID)
	if err != nil {
		t.Fatalf("GetActivation: %v", err)
	}
	if got.Params["region"] != "emea" {
		t.Errorf("stored params mutated through alias: region = %v", got.Params["region"])
	}

	// Mutating a returned record must not reach the store either.
	got.Params["region"] = "amer"
	again, err := s.GetActivation(ctx, act.ID)
	if err != nil {
		t.Fatalf("GetActivation again: %v", err)
	}
	if again.Params["region"] != "emea" {
		t.Errorf("stored params mutated through returned copy: region = %v", again.Params["region"])
	}
}
