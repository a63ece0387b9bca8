package queueable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/backoff"
	"github.com/xraph/cascade/ceiling"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/platform"
	"github.com/xraph/cascade/schedule"
)

// Emitter receives lifecycle events from the engine. *ext.Registry
// satisfies it.
type Emitter interface {
	EmitChainStarted(ctx context.Context, att *cascade.Attempt)
	EmitLinkSubmitted(ctx context.Context, att *cascade.Attempt)
	EmitLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration)
	EmitLinkRetrying(ctx context.Context, att *cascade.Attempt, retry int, eligibleAt time.Time)
	EmitLinkAborted(ctx context.Context, att *cascade.Attempt, linkErr error)
	EmitStartDeferred(ctx context.Context, att *cascade.Attempt, eligibleAt time.Time, reason string)
	EmitChainAdvanced(ctx context.Context, from, to *cascade.Attempt)
	EmitChainEnded(ctx context.Context, att *cascade.Attempt)
	EmitDeadLettered(ctx context.Context, att *cascade.Attempt, attErr error)
}

type nopEmitter struct{}

func (nopEmitter) EmitChainStarted(context.Context, *cascade.Attempt)                      {}
func (nopEmitter) EmitLinkSubmitted(context.Context, *cascade.Attempt)                     {}
func (nopEmitter) EmitLinkCompleted(context.Context, *cascade.Attempt, cascade.Outcome, time.Duration) {
}
func (nopEmitter) EmitLinkRetrying(context.Context, *cascade.Attempt, int, time.Time)      {}
func (nopEmitter) EmitLinkAborted(context.Context, *cascade.Attempt, error)                {}
func (nopEmitter) EmitStartDeferred(context.Context, *cascade.Attempt, time.Time, string)  {}
func (nopEmitter) EmitChainAdvanced(context.Context, *cascade.Attempt, *cascade.Attempt)   {}
func (nopEmitter) EmitChainEnded(context.Context, *cascade.Attempt)                        {}
func (nopEmitter) EmitDeadLettered(context.Context, *cascade.Attempt, error)               {}

// liveAttempt tracks one submitted attempt until both its outcome and
// its completion hook have been handled. The flags carry the idempotence
// guards; continued is the single continuation-decision slot shared by
// the two trigger paths.
type liveAttempt struct {
	att *cascade.Attempt
	cfg *chain.LinkConfig

	outcomeSeen bool
	hookSeen    bool
	continued   bool

	explicit cascade.Params
}

// Engine is the queueable chain engine.
type Engine struct {
	platform   platform.Platform
	resolver   *chain.Resolver
	scheduler  *schedule.Scheduler
	logger     *slog.Logger
	governor   *ceiling.Governor
	emitter    Emitter
	dead       *deadletter.Service
	backoff    backoff.Strategy
	maxHops    int
	deferDelay time.Duration

	chainablesMu sync.RWMutex
	chainables   map[string]Chainable

	liveMu sync.Mutex
	live   map[string]*liveAttempt
}

var _ platform.Notifier = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithGovernor sets the ceiling governor bounding the enqueue rate.
func WithGovernor(g *ceiling.Governor) Option {
	return func(e *Engine) {
		if g != nil {
			e.governor = g
		}
	}
}

// WithDeadLetters sets the dead letter service aborted chains are
// recorded to, and binds the engine as its replay starter for the
// queueable kind.
func WithDeadLetters(svc *deadletter.Service) Option {
	return func(e *Engine) { e.dead = svc }
}

// WithEmitter sets the lifecycle event emitter.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.backoff = s
		}
	}
}

// WithMaxHops sets the per-chain hop budget.
func WithMaxHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithDeferDelay sets the retry delay for starts pushed back by the
// ceiling or a platform rejection.
func WithDeferDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.deferDelay = d
		}
	}
}

// New creates a queueable engine and wires it to its collaborators the
// same way the batch engine does: platform notifier, scheduler resume
// target, and dead letter replay starter for the queueable kind.
func New(p platform.Platform, res *chain.Resolver, sched *schedule.Scheduler, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := cascade.DefaultConfig()
	e := &Engine{
		platform:   p,
		resolver:   res,
		scheduler:  sched,
		logger:     logger,
		governor:   ceiling.NewGovernor(),
		emitter:    nopEmitter{},
		backoff:    backoff.Default(),
		maxHops:    defaults.MaxHops,
		deferDelay: defaults.DeferDelay,
		chainables: make(map[string]Chainable),
		live:       make(map[string]*liveAttempt),
	}
	for _, opt := range opts {
		opt(e)
	}

	p.Bind(cascade.KindQueueable, e)
	sched.Bind(cascade.KindQueueable, e.resume)
	if e.dead != nil {
		e.dead.Bind(cascade.KindQueueable, func(ctx context.Context, job string, params cascade.Params) (id.ChainID, error) {
			att, err := e.Start(ctx, job, params)
			if err != nil {
				return id.ChainID{}, err
			}
			return att.ChainID, nil
		})
	}
	return e
}

// ──────────────────────────────────────────────────
// Chainable registry
// ──────────────────────────────────────────────────

// Register installs a chainable job. The identifier must be unique
// within the queueable kind.
func (e *Engine) Register(ch Chainable) error {
	name := ch.ChainIdentifier()
	if name == "" {
		return errors.New("cascade/queueable: register: empty chain identifier")
	}

	e.chainablesMu.Lock()
	defer e.chainablesMu.Unlock()
	if _, exists := e.chainables[name]; exists {
		return fmt.Errorf("cascade/queueable: register %q: %w", name, cascade.ErrDuplicateChainable)
	}
	e.chainables[name] = ch
	return nil
}

// Chainables returns the registered job identifiers, sorted.
func (e *Engine) Chainables() []string {
	e.chainablesMu.RLock()
	defer e.chainablesMu.RUnlock()
	names := make([]string, 0, len(e.chainables))
	for name := range e.chainables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) chainable(job string) Chainable {
	e.chainablesMu.RLock()
	defer e.chainablesMu.RUnlock()
	return e.chainables[job]
}

// InFlight returns the number of attempts not yet fully settled.
func (e *Engine) InFlight() int {
	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	return len(e.live)
}

// ──────────────────────────────────────────────────
// Start
// ──────────────────────────────────────────────────

// Start launches a new chain at the given job. Validation errors
// propagate synchronously and nothing is submitted; a rate ceiling or
// platform rejection defers the start through the scheduler instead of
// failing.
func (e *Engine) Start(ctx context.Context, job string, params cascade.Params) (*cascade.Attempt, error) {
	cfg, err := e.resolveConfig(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("cascade/queueable: start %q: %w", job, err)
	}
	if !cfg.Active {
		return nil, fmt.Errorf("cascade/queueable: start %q: %w", job, cascade.ErrConfigInactive)
	}

	att := &cascade.Attempt{
		ChainID: id.NewChainID(),
		Kind:    cascade.KindQueueable,
		Job:     job,
		Params:  params.Clone(),
		Number:  1,
		Timeout: cfg.Timeout,
	}

	if err := e.runBefore(ctx, att); err != nil {
		return nil, err
	}

	e.logger.Info("chain started",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", job),
	)
	e.emitter.EmitChainStarted(ctx, att)

	if err := e.launch(ctx, att, cfg); err != nil {
		return nil, err
	}
	return att, nil
}

// ContinueWith stashes explicit parameters for the chain's next link.
// Call it from AfterExecution or OnCompletionHook; the engine merges the
// stashed parameters over the inherited context when it advances.
func (e *Engine) ContinueWith(ctx context.Context, explicit cascade.Params) error {
	att, ok := cascade.AttemptFrom(ctx)
	if !ok {
		return errors.New("cascade/queueable: continue with: no attempt in context")
	}

	e.liveMu.Lock()
	defer e.liveMu.Unlock()
	live, ok := e.live[att.TrackingID.String()]
	if !ok {
		return fmt.Errorf("cascade/queueable: continue with %q: no live attempt", att.Job)
	}
	live.explicit = explicit.Clone()
	return nil
}

// ──────────────────────────────────────────────────
// Config resolution and hooks
// ──────────────────────────────────────────────────

func (e *Engine) resolveConfig(ctx context.Context, job string) (*chain.LinkConfig, error) {
	if ch := e.chainable(job); ch != nil {
		if provider, ok := ch.(ConfigProvider); ok {
			cfg, err := provider.ChainConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("config provider: %w", err)
			}
			if cfg.Kind == "" {
				cfg.Kind = cascade.KindQueueable
			}
			if cfg.Job == "" {
				cfg.Job = job
			}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}
	return e.resolver.Resolve(ctx, cascade.KindQueueable, job)
}

func (e *Engine) runBefore(ctx context.Context, att *cascade.Attempt) error {
	ch := e.chainable(att.Job)
	if ch == nil {
		return nil
	}
	params, err := ch.BeforeExecution(cascade.WithAttempt(ctx, att), att.Params)
	if err != nil {
		return fmt.Errorf("cascade/queueable: before execution %q: %w", att.Job, err)
	}
	if params != nil {
		att.Params = params
	}
	return nil
}

func (e *Engine) runAfter(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) {
	ch := e.chainable(att.Job)
	if ch == nil {
		return
	}
	if err := ch.AfterExecution(cascade.WithAttempt(ctx, att), att, out); err != nil {
		e.logger.Warn("after execution hook failed",
			slog.String("job", att.Job),
			slog.String("chain_id", att.ChainID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) runOnError(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) {
	ch := e.chainable(att.Job)
	if ch == nil {
		return
	}
	if err := ch.OnExecutionError(cascade.WithAttempt(ctx, att), att, out); err != nil {
		e.logger.Warn("execution error hook failed",
			slog.String("job", att.Job),
			slog.String("chain_id", att.ChainID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) runHook(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) {
	ch := e.chainable(att.Job)
	if ch == nil {
		return
	}
	if err := ch.OnCompletionHook(cascade.WithAttempt(ctx, att), att, out); err != nil {
		e.logger.Warn("completion hook failed",
			slog.String("job", att.Job),
			slog.String("chain_id", att.ChainID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// ──────────────────────────────────────────────────
// Launch
// ──────────────────────────────────────────────────

// launch submits an attempt whose config is already resolved and
// active. The rate ceiling and platform rejection defer through the
// scheduler; other submission failures are returned.
func (e *Engine) launch(ctx context.Context, att *cascade.Attempt, cfg *chain.LinkConfig) error {
	if wait, ok := e.governor.Acquire(cascade.KindQueueable); !ok {
		return e.deferStart(ctx, att, wait, "ceiling")
	}

	// The live record must be in place before a worker can deliver the
	// outcome, so the lock spans both the submission and the insert.
	e.liveMu.Lock()
	tid, err := e.platform.Submit(ctx, att)
	if err != nil {
		e.liveMu.Unlock()
		e.governor.Release(cascade.KindQueueable)
		if errors.Is(err, cascade.ErrSubmissionRejected) {
			return e.deferStart(ctx, att, 0, "platform")
		}
		return fmt.Errorf("cascade/queueable: submit %q: %w", att.Job, err)
	}

	att.TrackingID = tid
	att.SubmittedAt = time.Now().UTC()
	e.live[tid.String()] = &liveAttempt{att: att, cfg: cfg}
	e.liveMu.Unlock()

	e.emitter.EmitLinkSubmitted(ctx, att)
	e.logger.Info("link submitted",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", att.Job),
		slog.String("tracking_id", tid.String()),
		slog.Int("attempt", att.Number),
		slog.Int("hops", att.Hops),
	)
	return nil
}

func (e *Engine) deferStart(ctx context.Context, att *cascade.Attempt, wait time.Duration, why string) error {
	if wait <= 0 {
		wait = e.deferDelay
	}
	act := activationFrom(att, schedule.ReasonDeferred)
	if err := e.scheduler.Schedule(ctx, act, wait); err != nil {
		return fmt.Errorf("cascade/queueable: defer %q: %w", att.Job, err)
	}

	e.emitter.EmitStartDeferred(ctx, att, act.EligibleAt, why)
	e.logger.Info("start deferred",
		slog.String("chain_id", att.ChainID.String()),
		slog.String("job", att.Job),
		slog.String("reason", why),
		slog.Time("eligible_at", act.EligibleAt),
	)
	return nil
}

func activationFrom(att *cascade.Attempt, reason schedule.Reason) *schedule.Activation {
	return &schedule.Activation{
		Kind:    att.Kind,
		Job:     att.Job,
		ChainID: att.ChainID,
		Params:  att.Params.Clone(),
		Attempt: att.Number,
		Hops:    att.Hops,
		Reason:  reason,
	}
}
