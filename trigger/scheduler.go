package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// StartFunc launches a fresh chain start when a trigger fires. The
// owning engine provides the implementation; the indirection keeps this
// package free of engine imports.
type StartFunc func(ctx context.Context, job string, params cascade.Params) (id.ChainID, error)

// Emitter emits trigger lifecycle events.
// ext.Registry satisfies this interface via EmitTriggerFired.
type Emitter interface {
	EmitTriggerFired(ctx context.Context, triggerName string, chainID id.ChainID)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithEmitter sets the lifecycle event emitter.
func WithEmitter(e Emitter) Option {
	return func(s *Scheduler) { s.emitter = e }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler fires trigger entries on a tick loop, starting the
// configured chain through the engine bound for each entry's kind.
type Scheduler struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration

	startsMu sync.RWMutex
	starts   map[cascade.Kind]StartFunc

	// parsed caches parsed cron expressions.
	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler backed by the given store.
func NewScheduler(store Store, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:        store,
		logger:       logger,
		tickInterval: 1 * time.Second,
		starts:       make(map[cascade.Kind]StartFunc),
		parsed:       make(map[string]cronlib.Schedule),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind registers the start function for one engine kind. Entries of an
// unbound kind are skipped with a warning.
func (s *Scheduler) Bind(kind cascade.Kind, start StartFunc) {
	s.startsMu.Lock()
	defer s.startsMu.Unlock()
	s.starts[kind] = start
}

// Register validates and persists a new trigger entry, computing its
// first NextRunAt from the schedule expression.
func (s *Scheduler) Register(ctx context.Context, entry *Entry) error {
	if entry.Name == "" {
		return fmt.Errorf("cascade/trigger: register: name required")
	}
	if entry.Job == "" {
		return fmt.Errorf("cascade/trigger: register %s: job required", entry.Name)
	}
	if !entry.Kind.Valid() {
		return fmt.Errorf("cascade/trigger: register %s: %w", entry.Name, cascade.ErrInvalidKind)
	}
	sched, err := s.getOrParseSchedule(entry.Schedule)
	if err != nil {
		return fmt.Errorf("cascade/trigger: register %s: parse %q: %w", entry.Name, entry.Schedule, err)
	}

	if entry.ID.IsNil() {
		entry.ID = id.NewTriggerID()
	}
	entry.Entity = cascade.NewEntity()
	if entry.NextRunAt == nil {
		next := sched.Next(time.Now().UTC())
		entry.NextRunAt = &next
	}

	if err := s.store.RegisterTrigger(ctx, entry); err != nil {
		return fmt.Errorf("cascade/trigger: register %s: %w", entry.Name, err)
	}

	s.logger.Info("trigger registered",
		slog.String("trigger_id", entry.ID.String()),
		slog.String("name", entry.Name),
		slog.String("schedule", entry.Schedule),
		slog.String("kind", entry.Kind.String()),
		slog.String("job", entry.Job),
	)
	return nil
}

// SetEnabled flips an entry's Enabled flag. Re-enabling recomputes
// NextRunAt from now so the trigger doesn't fire for missed windows.
func (s *Scheduler) SetEnabled(ctx context.Context, tid id.TriggerID, enabled bool) error {
	entry, err := s.store.GetTrigger(ctx, tid)
	if err != nil {
		return fmt.Errorf("cascade/trigger: set enabled %s: %w", tid, err)
	}
	entry.Enabled = enabled
	if enabled {
		if sched, parseErr := s.getOrParseSchedule(entry.Schedule); parseErr == nil {
			next := sched.Next(time.Now().UTC())
			entry.NextRunAt = &next
		}
	}
	entry.Touch()
	if err := s.store.UpdateTrigger(ctx, entry); err != nil {
		return fmt.Errorf("cascade/trigger: set enabled %s: %w", tid, err)
	}
	return nil
}

// Store returns the underlying store for direct access to List, Get,
// and Delete operations.
func (s *Scheduler) Store() Store {
	return s.store
}

// Start launches the tick loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("trigger scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the tick loop to stop and waits for it to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info("trigger scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	ctx := context.Background()

	entries, err := s.store.ListTriggers(ctx)
	if err != nil {
		s.logger.Error("list triggers error", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		if entry.NextRunAt == nil || entry.NextRunAt.After(now) {
			continue
		}
		s.fire(ctx, entry, now)
	}
}

func (s *Scheduler) fire(ctx context.Context, entry *Entry, now time.Time) {
	s.startsMu.RLock()
	start := s.starts[entry.Kind]
	s.startsMu.RUnlock()
	if start == nil {
		s.logger.Warn("trigger for unbound kind",
			slog.String("trigger_name", entry.Name),
			slog.String("kind", entry.Kind.String()),
		)
		return
	}

	chainID, startErr := start(ctx, entry.Job, entry.Params.Clone())
	if startErr != nil {
		// NextRunAt stays in the past; the next tick retries the start.
		s.logger.Error("trigger start error",
			slog.String("trigger_name", entry.Name),
			slog.String("job", entry.Job),
			slog.String("error", startErr.Error()),
		)
		return
	}

	entry.LastRunAt = &now
	sched, parseErr := s.getOrParseSchedule(entry.Schedule)
	if parseErr != nil {
		s.logger.Error("parse trigger schedule error",
			slog.String("trigger_name", entry.Name),
			slog.String("schedule", entry.Schedule),
			slog.String("error", parseErr.Error()),
		)
	} else {
		next := sched.Next(now)
		entry.NextRunAt = &next
	}
	entry.Touch()
	if updateErr := s.store.UpdateTrigger(ctx, entry); updateErr != nil {
		s.logger.Error("update trigger error",
			slog.String("trigger_id", entry.ID.String()),
			slog.String("error", updateErr.Error()),
		)
	}

	if s.emitter != nil {
		s.emitter.EmitTriggerFired(ctx, entry.Name, chainID)
	}

	s.logger.Info("trigger fired",
		slog.String("trigger_name", entry.Name),
		slog.String("job", entry.Job),
		slog.String("chain_id", chainID.String()),
	)
}

// getOrParseSchedule caches parsed cron expressions.
func (s *Scheduler) getOrParseSchedule(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}
