package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/backoff"
	"github.com/xraph/cascade/batch"
	"github.com/xraph/cascade/ceiling"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/platform"
	"github.com/xraph/cascade/platform/local"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// rig assembles a full single-process stack: memory store, local
// platform, delay scheduler, dead letters, and the engine under test.
type rig struct {
	store  *memory.Store
	runner *local.Runner
	sched  *schedule.Scheduler
	dead   *deadletter.Service
	eng    *batch.Engine
}

func newRig(t *testing.T, opts ...batch.Option) *rig {
	t.Helper()
	logger := testLogger()
	st := memory.New()
	runner := local.NewRunner(logger, local.WithConcurrency(4))
	sched := schedule.NewScheduler(st, logger, schedule.WithTickInterval(10*time.Millisecond))
	dead := deadletter.NewService(st, logger)

	opts = append([]batch.Option{
		batch.WithBackoff(backoff.Fixed(10 * time.Millisecond)),
		batch.WithDeferDelay(20 * time.Millisecond),
		batch.WithDeadLetters(dead),
	}, opts...)
	eng := batch.New(runner, chain.NewResolver(st, 0), sched, logger, opts...)

	ctx := context.Background()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("start runner: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sched.Stop(stopCtx)
		_ = runner.Stop(stopCtx)
	})

	return &rig{store: st, runner: runner, sched: sched, dead: dead, eng: eng}
}

func (r *rig) putLink(t *testing.T, cfg *chain.LinkConfig) {
	t.Helper()
	if cfg.Kind == "" {
		cfg.Kind = cascade.KindBatch
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("link config: %v", err)
	}
	if err := r.store.PutLink(context.Background(), cfg); err != nil {
		t.Fatalf("PutLink: %v", err)
	}
}

func (r *rig) deadLetters(t *testing.T) []*deadletter.Entry {
	t.Helper()
	entries, err := r.store.ListDeadLetters(context.Background(), deadletter.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeadLetters: %v", err)
	}
	return entries
}

// invocations records handler executions for assertions.
type invocations struct {
	mu   sync.Mutex
	atts []*cascade.Attempt
	when []time.Time
}

func (r *invocations) add(att *cascade.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *att
	cp.Params = att.Params.Clone()
	r.atts = append(r.atts, &cp)
	r.when = append(r.when, time.Now())
}

func (r *invocations) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.atts)
}

func (r *invocations) nth(i int) *cascade.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.atts[i]
}

func (r *invocations) nthTime(i int) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.when[i]
}

// spyEmitter counts lifecycle events.
type spyEmitter struct {
	mu           sync.Mutex
	started      int
	submitted    int
	completed    int
	retrying     int
	aborted      int
	deferred     int
	advanced     int
	ended        int
	deadlettered int
	lastAbortErr error
}

func (s *spyEmitter) EmitChainStarted(context.Context, *cascade.Attempt) {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitLinkSubmitted(context.Context, *cascade.Attempt) {
	s.mu.Lock()
	s.submitted++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitLinkCompleted(context.Context, *cascade.Attempt, cascade.Outcome, time.Duration) {
	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitLinkRetrying(context.Context, *cascade.Attempt, int, time.Time) {
	s.mu.Lock()
	s.retrying++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitLinkAborted(_ context.Context, _ *cascade.Attempt, err error) {
	s.mu.Lock()
	s.aborted++
	s.lastAbortErr = err
	s.mu.Unlock()
}
func (s *spyEmitter) EmitStartDeferred(context.Context, *cascade.Attempt, time.Time, string) {
	s.mu.Lock()
	s.deferred++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitChainAdvanced(context.Context, *cascade.Attempt, *cascade.Attempt) {
	s.mu.Lock()
	s.advanced++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitChainEnded(context.Context, *cascade.Attempt) {
	s.mu.Lock()
	s.ended++
	s.mu.Unlock()
}
func (s *spyEmitter) EmitDeadLettered(context.Context, *cascade.Attempt, error) {
	s.mu.Lock()
	s.deadlettered++
	s.mu.Unlock()
}

func (s *spyEmitter) snapshot() spyEmitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return spyEmitter{
		started: s.started, submitted: s.submitted, completed: s.completed,
		retrying: s.retrying, aborted: s.aborted, deferred: s.deferred,
		advanced: s.advanced, ended: s.ended, deadlettered: s.deadlettered,
		lastAbortErr: s.lastAbortErr,
	}
}

// recorder is a test chainable capturing hook calls.
type recorder struct {
	batch.Base
	name string

	mu     sync.Mutex
	before int
	after  int
}

func (c *recorder) ChainIdentifier() string { return c.name }

func (c *recorder) BeforeExecution(_ context.Context, params cascade.Params) (cascade.Params, error) {
	c.mu.Lock()
	c.before++
	c.mu.Unlock()
	return params, nil
}

func (c *recorder) AfterExecution(context.Context, *cascade.Attempt, cascade.Outcome) error {
	c.mu.Lock()
	c.after++
	c.mu.Unlock()
	return nil
}

func (c *recorder) counts() (before, after int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.before, c.after
}

// ──────────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────────

func TestStart_SubmitsFirstLink(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", BatchSize: 50, Active: true})

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	att, err := r.eng.Start(context.Background(), "extract", cascade.Params{"region": "emea"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if att.ChainID.IsNil() {
		t.Error("expected a chain ID to be minted")
	}
	if att.TrackingID.IsNil() {
		t.Error("expected the attempt to carry the platform tracking ID")
	}
	if att.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", att.BatchSize)
	}
	if att.Number != 1 {
		t.Errorf("Number = %d, want 1", att.Number)
	}

	waitFor(t, func() bool { return rec.count() == 1 }, "handler never invoked")
	got := rec.nth(0)
	if got.Job != "extract" {
		t.Errorf("executed job = %q, want %q", got.Job, "extract")
	}
	if got.Params["region"] != "emea" {
		t.Errorf("executed params = %v, want region=emea", got.Params)
	}
}

func TestStart_ConfigNotFound(t *testing.T) {
	r := newRig(t)

	_, err := r.eng.Start(context.Background(), "ghost", nil)
	if !errors.Is(err, cascade.ErrConfigNotFound) {
		t.Fatalf("Start error = %v, want ErrConfigNotFound", err)
	}
}

func TestStart_InactiveConfig(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: false})

	_, err := r.eng.Start(context.Background(), "extract", nil)
	if !errors.Is(err, cascade.ErrConfigInactive) {
		t.Fatalf("Start error = %v, want ErrConfigInactive", err)
	}
}

func TestStart_BeforeExecutionAdjustsParams(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: true})

	job := &paramAdjuster{name: "extract", set: cascade.Params{"cursor": "0"}}
	if err := r.eng.Register(job); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "extract", cascade.Params{"region": "emea"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return rec.count() == 1 }, "handler never invoked")
	got := rec.nth(0)
	if got.Params["cursor"] != "0" {
		t.Errorf("params = %v, want cursor=0 added by BeforeExecution", got.Params)
	}
	if got.Params["region"] != "emea" {
		t.Errorf("params = %v, want region=emea preserved", got.Params)
	}
}

// paramAdjuster merges fixed keys into the parameters in BeforeExecution.
type paramAdjuster struct {
	batch.Base
	name string
	set  cascade.Params
}

func (c *paramAdjuster) ChainIdentifier() string { return c.name }

func (c *paramAdjuster) BeforeExecution(_ context.Context, params cascade.Params) (cascade.Params, error) {
	return params.Merge(c.set), nil
}

func TestStart_BeforeExecutionErrorPropagates(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: true})

	if err := r.eng.Register(&failingBefore{name: "extract"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err == nil {
		t.Fatal("expected BeforeExecution error to propagate")
	}

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Error("nothing should be submitted when BeforeExecution fails at start")
	}
}

type failingBefore struct {
	batch.Base
	name string
}

func (c *failingBefore) ChainIdentifier() string { return c.name }

func (c *failingBefore) BeforeExecution(context.Context, cascade.Params) (cascade.Params, error) {
	return nil, errors.New("not ready")
}

func TestStart_UnregisteredJobStillRuns(t *testing.T) {
	// The platform's workers own the business logic; engine-side
	// registration only adds hooks.
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: true})

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return rec.count() == 1 }, "handler never invoked")
}

func TestRegister_Duplicate(t *testing.T) {
	r := newRig(t)
	if err := r.eng.Register(&recorder{name: "extract"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.eng.Register(&recorder{name: "extract"}); !errors.Is(err, cascade.ErrDuplicateChainable) {
		t.Fatalf("second Register error = %v, want ErrDuplicateChainable", err)
	}
	if got := r.eng.Chainables(); len(got) != 1 || got[0] != "extract" {
		t.Errorf("Chainables = %v, want [extract]", got)
	}
}

// ──────────────────────────────────────────────────
// Chain advancement
// ──────────────────────────────────────────────────

func TestChain_AdvancesThroughLinks(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "transform", Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "transform", Next: "load", Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "load", Active: true})

	var rec invocations
	handler := func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	}
	r.runner.Register(cascade.KindBatch, "extract", handler)
	r.runner.Register(cascade.KindBatch, "transform", handler)
	r.runner.Register(cascade.KindBatch, "load", handler)

	att, err := r.eng.Start(context.Background(), "extract", cascade.Params{"run": "nightly"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return rec.count() == 3 }, "chain never reached the last link")

	for i, wantJob := range []string{"extract", "transform", "load"} {
		got := rec.nth(i)
		if got.Job != wantJob {
			t.Errorf("link %d job = %q, want %q", i, got.Job, wantJob)
		}
		if got.ChainID != att.ChainID {
			t.Errorf("link %d chain ID = %v, want %v", i, got.ChainID, att.ChainID)
		}
		if got.Hops != i {
			t.Errorf("link %d hops = %d, want %d", i, got.Hops, i)
		}
		if got.Params["run"] != "nightly" {
			t.Errorf("link %d params = %v, want run=nightly forwarded", i, got.Params)
		}
	}

	waitFor(t, func() bool { return spy.snapshot().ended == 1 }, "chain never ended")
	s := spy.snapshot()
	if s.started != 1 {
		t.Errorf("started events = %d, want 1", s.started)
	}
	if s.advanced != 2 {
		t.Errorf("advanced events = %d, want 2", s.advanced)
	}
	if s.aborted != 0 {
		t.Errorf("aborted events = %d, want 0", s.aborted)
	}
}

func TestChain_ExplicitParamsWinOnAdvance(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "transform", Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "transform", Active: true})

	job := &continuer{name: "extract", eng: r.eng, explicit: cascade.Params{"stage": "second", "cursor": "100"}}
	if err := r.eng.Register(job); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var rec invocations
	handler := func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	}
	r.runner.Register(cascade.KindBatch, "extract", handler)
	r.runner.Register(cascade.KindBatch, "transform", handler)

	if _, err := r.eng.Start(context.Background(), "extract", cascade.Params{"stage": "first", "run": "nightly"}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return rec.count() == 2 }, "chain never advanced")
	got := rec.nth(1)
	if got.Params["stage"] != "second" {
		t.Errorf("explicit stage = %v, want %q to win over inherited", got.Params["stage"], "second")
	}
	if got.Params["cursor"] != "100" {
		t.Errorf("params = %v, want cursor=100 added", got.Params)
	}
	if got.Params["run"] != "nightly" {
		t.Errorf("params = %v, want run=nightly inherited", got.Params)
	}
}

// continuer calls ContinueWith from AfterExecution.
type continuer struct {
	batch.Base
	name     string
	eng      *batch.Engine
	explicit cascade.Params
}

func (c *continuer) ChainIdentifier() string { return c.name }

func (c *continuer) AfterExecution(ctx context.Context, _ *cascade.Attempt, _ cascade.Outcome) error {
	return c.eng.ContinueWith(ctx, c.explicit)
}

func TestChain_DelayGatesHandoff(t *testing.T) {
	const delay = 100 * time.Millisecond
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "transform", Delay: delay, Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "transform", Active: true})

	var rec invocations
	handler := func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	}
	r.runner.Register(cascade.KindBatch, "extract", handler)
	r.runner.Register(cascade.KindBatch, "transform", handler)

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return rec.count() == 2 }, "delayed link never ran")

	// Fired at or after eligibility, never before.
	if gap := rec.nthTime(1).Sub(rec.nthTime(0)); gap < delay {
		t.Errorf("next link started %v after the first, want at least %v", gap, delay)
	}
}

func TestChain_InactiveNextTerminates(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "transform", Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "transform", Active: false})

	var rec invocations
	handler := func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	}
	r.runner.Register(cascade.KindBatch, "extract", handler)
	r.runner.Register(cascade.KindBatch, "transform", handler)

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return spy.snapshot().ended == 1 }, "chain never terminated")
	if rec.count() != 1 {
		t.Errorf("links executed = %d, want 1 (inactive successor cancels at the boundary)", rec.count())
	}
	if len(r.deadLetters(t)) != 0 {
		t.Error("cancellation must not dead-letter")
	}
}

func TestChain_MissingNextTerminates(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "ghost", Active: true})

	r.runner.Register(cascade.KindBatch, "extract", func(context.Context, *platform.Invocation) error {
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return spy.snapshot().ended == 1 }, "chain never terminated")
	if len(r.deadLetters(t)) != 0 {
		t.Error("a dangling successor terminates silently, no dead letter")
	}
}

// ──────────────────────────────────────────────────
// Retry and abort
// ──────────────────────────────────────────────────

func TestChain_RetriesRecoverableFailure(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "transform", MaxRetries: 3, Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "transform", Active: true})

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		if inv.Attempt.Number < 3 {
			return errors.New("deadlock victim")
		}
		return nil
	})
	r.runner.Register(cascade.KindBatch, "transform", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return rec.count() == 4 }, "chain never recovered and advanced")

	wantNumbers := []int{1, 2, 3, 1}
	for i, want := range wantNumbers {
		if got := rec.nth(i).Number; got != want {
			t.Errorf("execution %d attempt number = %d, want %d", i, got, want)
		}
	}
	// Retries re-submit the same link, not the next one.
	for i := range 3 {
		if got := rec.nth(i).Job; got != "extract" {
			t.Errorf("execution %d job = %q, want extract", i, got)
		}
	}
	if got := spy.snapshot().retrying; got != 2 {
		t.Errorf("retrying events = %d, want 2", got)
	}
	if len(r.deadLetters(t)) != 0 {
		t.Error("recovered chain must not dead-letter")
	}
}

func TestChain_AbortsWhenRetriesExhausted(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", Next: "transform", MaxRetries: 1, Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "transform", Active: true})

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return errors.New("feed unavailable")
	})
	r.runner.Register(cascade.KindBatch, "transform", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return spy.snapshot().aborted == 1 }, "chain never aborted")

	// Initial attempt plus exactly MaxRetries re-submissions.
	if rec.count() != 2 {
		t.Errorf("executions = %d, want 2", rec.count())
	}

	entries := r.deadLetters(t)
	if len(entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Job != "extract" {
		t.Errorf("dead letter job = %q, want extract", entry.Job)
	}
	if entry.Attempts != 2 {
		t.Errorf("dead letter attempts = %d, want 2", entry.Attempts)
	}
	if entry.MaxRetries != 1 {
		t.Errorf("dead letter max retries = %d, want 1", entry.MaxRetries)
	}
	if entry.Error != "feed unavailable" {
		t.Errorf("dead letter error = %q, want %q", entry.Error, "feed unavailable")
	}

	// The successor never ran.
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 2 {
		t.Error("aborted chain must not advance")
	}
}

func TestChain_UnrecoverableSkipsRetries(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", MaxRetries: 5, Active: true})

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return cascade.Unrecoverable(errors.New("malformed feed"))
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return spy.snapshot().aborted == 1 }, "chain never aborted")
	if rec.count() != 1 {
		t.Errorf("executions = %d, want 1 (no retries for unrecoverable failures)", rec.count())
	}
	if got := spy.snapshot().retrying; got != 0 {
		t.Errorf("retrying events = %d, want 0", got)
	}
}

func TestAfterExecution_SeesFailures(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: true})

	rec := &recorder{name: "extract"}
	if err := r.eng.Register(rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.runner.Register(cascade.KindBatch, "extract", func(context.Context, *platform.Invocation) error {
		return cascade.Unrecoverable(errors.New("boom"))
	})

	if _, err := r.eng.Start(context.Background(), "extract", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool {
		_, after := rec.counts()
		return after == 1
	}, "AfterExecution never observed the failed outcome")
}

// ──────────────────────────────────────────────────
// Ceiling and hop budget
// ──────────────────────────────────────────────────

func TestCeiling_DefersAndResumesStart(t *testing.T) {
	spy := &spyEmitter{}
	gov := ceiling.NewGovernor(ceiling.Limit{Kind: cascade.KindBatch, MaxConcurrent: 1})
	r := newRig(t, batch.WithEmitter(spy), batch.WithGovernor(gov))
	r.putLink(t, &chain.LinkConfig{Job: "slow", Active: true})
	r.putLink(t, &chain.LinkConfig{Job: "quick", Active: true})

	release := make(chan struct{})
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	r.runner.Register(cascade.KindBatch, "slow", func(ctx context.Context, _ *platform.Invocation) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	var rec invocations
	r.runner.Register(cascade.KindBatch, "quick", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	ctx := context.Background()
	if _, err := r.eng.Start(ctx, "slow", nil); err != nil {
		t.Fatalf("Start slow: %v", err)
	}

	// The ceiling is full; the second start must defer, not fail.
	att, err := r.eng.Start(ctx, "quick", nil)
	if err != nil {
		t.Fatalf("Start quick: %v", err)
	}
	if !att.TrackingID.IsNil() {
		t.Error("a deferred start must not carry a tracking ID yet")
	}
	waitFor(t, func() bool { return spy.snapshot().deferred >= 1 }, "start never deferred")

	acts, err := r.store.ListActivations(ctx)
	if err != nil {
		t.Fatalf("ListActivations: %v", err)
	}
	if len(acts) == 0 || acts[0].Reason != schedule.ReasonDeferred {
		t.Fatalf("activations = %+v, want one deferred-start activation", acts)
	}

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatal("deferred start ran while the ceiling was still full")
	}

	// Free the ceiling; the scheduler resumes the deferred start.
	close(release)
	waitFor(t, func() bool { return rec.count() == 1 }, "deferred start never resumed")
}

func TestPlatformRejection_Defers(t *testing.T) {
	spy := &spyEmitter{}
	logger := testLogger()
	st := memory.New()
	// One worker and no queue room beyond a single slot.
	runner := local.NewRunner(logger, local.WithConcurrency(1), local.WithMaxPending(1))
	sched := schedule.NewScheduler(st, logger, schedule.WithTickInterval(10*time.Millisecond))
	eng := batch.New(runner, chain.NewResolver(st, 0), sched, logger,
		batch.WithEmitter(spy),
		batch.WithDeferDelay(20*time.Millisecond),
	)

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sched.Stop(stopCtx)
		_ = runner.Stop(stopCtx)
	})

	cfg := &chain.LinkConfig{Kind: cascade.KindBatch, Job: "extract", Active: true}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := st.PutLink(ctx, cfg); err != nil {
		t.Fatalf("PutLink: %v", err)
	}

	runner.Register(cascade.KindBatch, "extract", func(context.Context, *platform.Invocation) error {
		return nil
	})

	// Workers are not started, so the single pending slot fills and the
	// next submission is rejected.
	if _, err := eng.Start(ctx, "extract", nil); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := eng.Start(ctx, "extract", nil); err != nil {
		t.Fatalf("second Start should defer, got: %v", err)
	}

	waitFor(t, func() bool { return spy.snapshot().deferred >= 1 }, "rejected start never deferred")

	acts, err := st.ListActivations(ctx)
	if err != nil {
		t.Fatalf("ListActivations: %v", err)
	}
	if len(acts) == 0 {
		t.Fatal("expected a deferred activation for the rejected submission")
	}
}

func TestHopBudget_AbortsCycle(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy), batch.WithMaxHops(5))
	// A legal cycle: the link names itself as successor.
	r.putLink(t, &chain.LinkConfig{Job: "loop", Next: "loop", Active: true})

	var rec invocations
	r.runner.Register(cascade.KindBatch, "loop", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	if _, err := r.eng.Start(context.Background(), "loop", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return spy.snapshot().aborted == 1 }, "cycle never hit the hop budget")

	if rec.count() != 5 {
		t.Errorf("executions = %d, want 5 (hop budget)", rec.count())
	}
	s := spy.snapshot()
	if !errors.Is(s.lastAbortErr, cascade.ErrHopBudgetExceeded) {
		t.Errorf("abort error = %v, want ErrHopBudgetExceeded", s.lastAbortErr)
	}
	entries := r.deadLetters(t)
	if len(entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(entries))
	}
}

// ──────────────────────────────────────────────────
// Idempotence and config providers
// ──────────────────────────────────────────────────

func TestDuplicateOutcome_IsNoOp(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: true})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	r.runner.Register(cascade.KindBatch, "extract", func(ctx context.Context, _ *platform.Invocation) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	ctx := context.Background()
	att, err := r.eng.Start(ctx, "extract", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Deliver the outcome twice by hand; the second is a duplicate.
	r.eng.OnOutcome(ctx, att.TrackingID, cascade.Success())
	r.eng.OnOutcome(ctx, att.TrackingID, cascade.Success())

	s := spy.snapshot()
	if s.completed != 1 {
		t.Errorf("completed events = %d, want 1", s.completed)
	}
	if s.ended != 1 {
		t.Errorf("ended events = %d, want 1", s.ended)
	}
}

func TestOutcomeForUnknownAttempt_IsNoOp(t *testing.T) {
	r := newRig(t)
	// Must not panic or emit anything.
	r.eng.OnOutcome(context.Background(), id.NewTrackingID(), cascade.Success())
	r.eng.OnHook(context.Background(), id.NewTrackingID(), cascade.Success())
}

func TestConfigProvider_OverridesStore(t *testing.T) {
	spy := &spyEmitter{}
	r := newRig(t, batch.WithEmitter(spy))
	// No store record at all: the job carries its own config.

	job := &selfConfigured{name: "extract"}
	if err := r.eng.Register(job); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		return nil
	})

	att, err := r.eng.Start(context.Background(), "extract", nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if att.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25 from the provider config", att.BatchSize)
	}

	waitFor(t, func() bool { return spy.snapshot().ended == 1 }, "chain never ended")
}

type selfConfigured struct {
	batch.Base
	name string
}

func (c *selfConfigured) ChainIdentifier() string { return c.name }

func (c *selfConfigured) ChainConfig(context.Context) (*chain.LinkConfig, error) {
	return &chain.LinkConfig{BatchSize: 25, Active: true}, nil
}

func TestDeadLetterReplay_StartsFreshChain(t *testing.T) {
	r := newRig(t)
	r.putLink(t, &chain.LinkConfig{Job: "extract", Active: true})

	fail := true
	var mu sync.Mutex
	var rec invocations
	r.runner.Register(cascade.KindBatch, "extract", func(_ context.Context, inv *platform.Invocation) error {
		rec.add(inv.Attempt)
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return cascade.Unrecoverable(errors.New("boom"))
		}
		return nil
	})

	ctx := context.Background()
	att, err := r.eng.Start(ctx, "extract", cascade.Params{"region": "emea"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool { return len(r.deadLetters(t)) == 1 }, "abort never dead-lettered")
	entry := r.deadLetters(t)[0]

	mu.Lock()
	fail = false
	mu.Unlock()

	chainID, err := r.dead.Replay(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if chainID == att.ChainID {
		t.Error("replay must mint a fresh chain ID")
	}

	waitFor(t, func() bool { return rec.count() == 2 }, "replayed chain never ran")
	if got := rec.nth(1).Params["region"]; got != "emea" {
		t.Errorf("replayed params = %v, want region=emea", rec.nth(1).Params)
	}
}
