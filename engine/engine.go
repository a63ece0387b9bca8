package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/backoff"
	"github.com/xraph/cascade/batch"
	"github.com/xraph/cascade/ceiling"
	"github.com/xraph/cascade/chain"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
	mw "github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/observability"
	"github.com/xraph/cascade/platform"
	"github.com/xraph/cascade/platform/local"
	"github.com/xraph/cascade/queueable"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/stream"
	"github.com/xraph/cascade/trigger"
)

// Engine wraps a Conductor with fully wired subsystem access.
// Use Build() to create one from a Conductor.
type Engine struct {
	c          *cascade.Conductor
	extensions *ext.Registry
	resolver   *chain.Resolver
	chainStore chain.Store
	scheduler  *schedule.Scheduler
	triggers   *trigger.Scheduler
	dead       *deadletter.Service
	governor   *ceiling.Governor
	broker     *stream.Broker
	bo         backoff.Strategy
	mws        []mw.Middleware
	logger     *slog.Logger

	// Execution platform. runner is non-nil only when the engine built
	// the default in-process runner itself.
	platform platform.Platform
	runner   *local.Runner

	// Chain engines.
	batch     *batch.Engine
	queueable *queueable.Engine

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the default in-process runner's chain.
// It has no effect when a platform is supplied via WithPlatform; remote
// platforms apply middleware on their own workers.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy for both chain engines.
// If not set, backoff.Default() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithPlatform sets the execution platform. If not set, the engine builds
// an in-process local.Runner using the Conductor's concurrency setting.
func WithPlatform(p platform.Platform) Option {
	return func(eng *Engine) {
		eng.platform = p
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the global one.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability extension
// use this provider instead of the global one.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Conductor.
// The Conductor's store must implement every subsystem store interface.
func Build(c *cascade.Conductor, opts ...Option) (*Engine, error) {
	logger := c.Logger()
	store := c.Store()

	if store == nil {
		return nil, cascade.ErrNoStore
	}

	// Type-assert the store to get the chain.Store interface.
	cs, ok := store.(chain.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement chain.Store")
	}

	// Type-assert the store to get the schedule.Store interface.
	ss, ok := store.(schedule.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement schedule.Store")
	}

	// Type-assert the store to get the deadletter.Store interface.
	ds, ok := store.(deadletter.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement deadletter.Store")
	}

	// Type-assert the store to get the trigger.Store interface.
	ts, ok := store.(trigger.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement trigger.Store")
	}

	eng := &Engine{
		c:          c,
		extensions: ext.NewRegistry(logger),
		chainStore: cs,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	// Default backoff strategy if none provided.
	if eng.bo == nil {
		eng.bo = backoff.Default()
	}

	config := c.Config()

	// Create the config resolver and the delay scheduler.
	eng.resolver = chain.NewResolver(cs, config.ResolverTTL)
	eng.scheduler = schedule.NewScheduler(ss, logger,
		schedule.WithTickInterval(config.TickInterval),
	)

	// Create the dead letter service.
	eng.dead = deadletter.NewService(ds, logger)

	// Register the stream broker so live subscribers see lifecycle events.
	eng.broker = stream.NewBroker(logger)
	eng.extensions.Register(eng.broker)

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/cascade/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Build the default platform when none was supplied.
	if eng.platform == nil {
		// Tracing middleware (custom provider or global).
		var tracingMw mw.Middleware
		if eng.tracerProvider != nil {
			tracer := eng.tracerProvider.Tracer("github.com/xraph/cascade")
			tracingMw = mw.TracingWithTracer(tracer)
		} else {
			tracingMw = mw.Tracing()
		}

		// Metrics middleware (custom provider or global).
		var metricsMw mw.Middleware
		if eng.meterProvider != nil {
			meter := eng.meterProvider.Meter("github.com/xraph/cascade")
			metricsMw = mw.MetricsWithMeter(meter)
		} else {
			metricsMw = mw.Metrics()
		}

		// Default middleware stack: recover → tracing → metrics → logging → timeout.
		allMws := []mw.Middleware{
			mw.Recover(logger),
			tracingMw,
			metricsMw,
			mw.Logging(logger),
			mw.Timeout(logger),
		}
		allMws = append(allMws, eng.mws...)

		eng.runner = local.NewRunner(logger,
			local.WithConcurrency(config.Concurrency),
			local.WithMiddleware(allMws...),
		)
		eng.platform = eng.runner
	}

	// Create the ceiling governor from the Conductor's limits. Zero
	// values disable the corresponding ceiling.
	eng.governor = ceiling.NewGovernor(
		ceiling.Limit{
			Kind:          cascade.KindBatch,
			MaxConcurrent: config.MaxActiveBatches,
		},
		ceiling.Limit{
			Kind:       cascade.KindQueueable,
			StartRate:  config.EnqueueRate,
			StartBurst: config.EnqueueBurst,
		},
	)

	// Create the chain engines. Each binds itself to the platform, the
	// delay scheduler, and the dead letter service for its kind.
	eng.batch = batch.New(eng.platform, eng.resolver, eng.scheduler, logger,
		batch.WithGovernor(eng.governor),
		batch.WithDeadLetters(eng.dead),
		batch.WithEmitter(eng.extensions),
		batch.WithBackoff(eng.bo),
		batch.WithMaxHops(config.MaxHops),
		batch.WithDeferDelay(config.DeferDelay),
	)
	eng.queueable = queueable.New(eng.platform, eng.resolver, eng.scheduler, logger,
		queueable.WithGovernor(eng.governor),
		queueable.WithDeadLetters(eng.dead),
		queueable.WithEmitter(eng.extensions),
		queueable.WithBackoff(eng.bo),
		queueable.WithMaxHops(config.MaxHops),
		queueable.WithDeferDelay(config.DeferDelay),
	)

	// Create the trigger scheduler and bind both kinds' start paths.
	eng.triggers = trigger.NewScheduler(ts, logger,
		trigger.WithTickInterval(config.TickInterval),
		trigger.WithEmitter(eng.extensions),
	)
	eng.triggers.Bind(cascade.KindBatch, startFunc(eng.batch.Start))
	eng.triggers.Bind(cascade.KindQueueable, startFunc(eng.queueable.Start))

	return eng, nil
}

// startFunc adapts an engine Start method to the trigger scheduler's
// chain-ID-returning signature.
func startFunc(start func(context.Context, string, cascade.Params) (*cascade.Attempt, error)) trigger.StartFunc {
	return func(ctx context.Context, job string, params cascade.Params) (id.ChainID, error) {
		att, err := start(ctx, job, params)
		if err != nil {
			return id.ChainID{}, err
		}
		return att.ChainID, nil
	}
}

// ──────────────────────────────────────────────────
// Registration and starts
// ──────────────────────────────────────────────────

// Handle registers a link handler on the default in-process runner.
// It fails when a platform was supplied via WithPlatform: remote
// platforms register handlers on their own workers.
func (eng *Engine) Handle(kind cascade.Kind, job string, h platform.Handler) error {
	if eng.runner == nil {
		return fmt.Errorf("cascade: handle %s:%s: no in-process runner", kind, job)
	}
	eng.runner.Register(kind, job, h)
	return nil
}

// StartChain launches a new chain of the given kind at the named job.
func (eng *Engine) StartChain(ctx context.Context, kind cascade.Kind, job string, params cascade.Params) (*cascade.Attempt, error) {
	switch kind {
	case cascade.KindBatch:
		return eng.batch.Start(ctx, job, params)
	case cascade.KindQueueable:
		return eng.queueable.Start(ctx, job, params)
	default:
		return nil, fmt.Errorf("cascade: start chain %q: %w", job, cascade.ErrInvalidKind)
	}
}

// RegisterTrigger validates and persists a trigger entry. The schedule
// expression is parsed and the first run time computed before the entry
// is stored.
func (eng *Engine) RegisterTrigger(ctx context.Context, entry *trigger.Entry) error {
	return eng.triggers.Register(ctx, entry)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Start begins chain processing: the platform first so resumed
// activations have somewhere to land, then the delay scheduler, then
// the trigger scheduler.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.platform.Start(ctx); err != nil {
		return fmt.Errorf("start platform: %w", err)
	}
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start delay scheduler: %w", err)
	}
	if err := eng.triggers.Start(ctx); err != nil {
		return fmt.Errorf("start trigger scheduler: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the engine in reverse start order. When the
// context carries no deadline the Conductor's shutdown timeout bounds the
// whole sequence. Extensions receive the shutdown hook last.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.c.Config().ShutdownTimeout)
		defer cancel()
	}

	if err := eng.triggers.Stop(ctx); err != nil {
		eng.logger.Error("trigger scheduler stop error", slog.String("error", err.Error()))
	}
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("delay scheduler stop error", slog.String("error", err.Error()))
	}

	err := eng.platform.Stop(ctx)
	eng.extensions.EmitShutdown(ctx)
	return err
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Batch returns the batch chain engine.
func (eng *Engine) Batch() *batch.Engine { return eng.batch }

// Queueable returns the queueable chain engine.
func (eng *Engine) Queueable() *queueable.Engine { return eng.queueable }

// Conductor returns the underlying Conductor.
func (eng *Engine) Conductor() *cascade.Conductor { return eng.c }

// Links returns the chain link config store.
func (eng *Engine) Links() chain.Store { return eng.chainStore }

// Resolver returns the caching link config resolver. Invalidate it after
// writing to Links().
func (eng *Engine) Resolver() *chain.Resolver { return eng.resolver }

// Scheduler returns the delay scheduler.
func (eng *Engine) Scheduler() *schedule.Scheduler { return eng.scheduler }

// Triggers returns the trigger scheduler.
func (eng *Engine) Triggers() *trigger.Scheduler { return eng.triggers }

// DeadLetters returns the dead letter service for replay and inspection.
func (eng *Engine) DeadLetters() *deadletter.Service { return eng.dead }

// Governor returns the per-kind ceiling governor.
func (eng *Engine) Governor() *ceiling.Governor { return eng.governor }

// Platform returns the execution platform.
func (eng *Engine) Platform() platform.Platform { return eng.platform }

// Runner returns the default in-process runner, or nil when a platform
// was supplied via WithPlatform.
func (eng *Engine) Runner() *local.Runner { return eng.runner }

// Broker returns the stream broker feeding live event subscribers.
func (eng *Engine) Broker() *stream.Broker { return eng.broker }
