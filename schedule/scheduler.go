package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// ResumeFunc re-drives a fired activation into its owning engine. It
// re-resolves config and re-applies ceilings; a non-nil error keeps the
// activation alive for a later tick.
type ResumeFunc func(ctx context.Context, act *Activation) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets how often the scheduler scans for due activations.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithBatchLimit caps how many activations one tick fires.
func WithBatchLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// Scheduler fires due activations on a tick loop and hands them to the
// resume function bound for their kind.
type Scheduler struct {
	store  Store
	logger *slog.Logger

	tickInterval time.Duration
	batchLimit   int

	resumesMu sync.RWMutex
	resumes   map[cascade.Kind]ResumeFunc

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
		batchLimit:   100,
		resumes:      make(map[cascade.Kind]ResumeFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the activation store, for inspection surfaces.
func (s *Scheduler) Store() Store { return s.store }

// Bind registers the resume function for one engine kind. Activations of
// an unbound kind stay in the store untouched.
func (s *Scheduler) Bind(kind cascade.Kind, resume ResumeFunc) {
	s.resumesMu.Lock()
	defer s.resumesMu.Unlock()
	s.resumes[kind] = resume
}

// Schedule persists an activation to fire after the given delay. The
// activation's ID, timestamps, and EligibleAt are filled in here.
func (s *Scheduler) Schedule(ctx context.Context, act *Activation, after time.Duration) error {
	if act.ID.IsNil() {
		act.ID = id.NewScheduleID()
	}
	act.Entity = cascade.NewEntity()
	act.EligibleAt = time.Now().UTC().Add(after)

	if err := s.store.PutActivation(ctx, act); err != nil {
		return fmt.Errorf("cascade/schedule: schedule %s/%s: %w", act.Kind, act.Job, err)
	}

	s.logger.Debug("activation scheduled",
		slog.String("schedule_id", act.ID.String()),
		slog.String("kind", act.Kind.String()),
		slog.String("job", act.Job),
		slog.String("chain_id", act.ChainID.String()),
		slog.String("reason", string(act.Reason)),
		slog.Time("eligible_at", act.EligibleAt),
	)
	return nil
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

	s.logger.Info("delay scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the tick loop to stop and waits for it to finish.
// Activations stay in the store and fire after the next Start.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()

	s.logger.Info("delay scheduler stopped")
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

// tick fires every activation that has reached eligibility.
func (s *Scheduler) tick() {
	ctx := context.Background()

	due, err := s.store.DueActivations(ctx, time.Now().UTC(), s.batchLimit)
	if err != nil {
		s.logger.Error("due activations scan error", slog.String("error", err.Error()))
		return
	}

	for _, act := range due {
		s.fire(ctx, act)
	}
}

// fire hands one activation to its engine. The activation is deleted
// only after the resume function accepted it; a failed hand-off leaves
// it due, so the next tick retries.
func (s *Scheduler) fire(ctx context.Context, act *Activation) {
	s.resumesMu.RLock()
	resume := s.resumes[act.Kind]
	s.resumesMu.RUnlock()
	if resume == nil {
		s.logger.Warn("activation for unbound kind",
			slog.String("schedule_id", act.ID.String()),
			slog.String("kind", act.Kind.String()),
		)
		return
	}

	if err := resume(ctx, act); err != nil {
		s.logger.Error("activation resume error",
			slog.String("schedule_id", act.ID.String()),
			slog.String("kind", act.Kind.String()),
			slog.String("job", act.Job),
			slog.String("chain_id", act.ChainID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.store.DeleteActivation(ctx, act.ID); err != nil {
		// The hand-off already happened; a redelivered activation is
		// caught by the engine's idempotent notification handling.
		s.logger.Error("activation delete error",
			slog.String("schedule_id", act.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("activation fired",
		slog.String("schedule_id", act.ID.String()),
		slog.String("kind", act.Kind.String()),
		slog.String("job", act.Job),
		slog.String("reason", string(act.Reason)),
	)
}
