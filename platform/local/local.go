// Package local provides the in-process execution platform — a bounded
// pending queue drained by a pool of worker goroutines that invoke
// registered handlers through middleware.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/platform"
)

// Runner is the local execution platform.
type Runner struct {
	concurrency int
	maxPending  int
	mw          middleware.Middleware
	logger      *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string]platform.Handler

	notifiersMu sync.RWMutex
	notifiers   map[cascade.Kind]platform.Notifier

	pending chan *cascade.Attempt

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	activeMu sync.Mutex
	active   map[string]context.CancelFunc
}

var _ platform.Platform = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency sets the number of concurrent worker goroutines.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithMaxPending caps how many accepted submissions may wait for a
// worker. Submissions beyond the cap are rejected.
func WithMaxPending(n int) Option {
	return func(r *Runner) { r.maxPending = n }
}

// WithMiddleware sets the middleware applied around every handler call.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(r *Runner) { r.mw = middleware.Chain(mws...) }
}

// NewRunner creates a local platform.
func NewRunner(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		concurrency: 10,
		maxPending:  256,
		mw:          middleware.Chain(),
		logger:      logger,
		handlers:    make(map[string]platform.Handler),
		notifiers:   make(map[cascade.Kind]platform.Notifier),
		stopCh:      make(chan struct{}),
		active:      make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.pending = make(chan *cascade.Attempt, r.maxPending)
	return r
}

// handlerKey builds the registration key for a kind+job pair.
func handlerKey(kind cascade.Kind, job string) string {
	return fmt.Sprintf("%s:%s", kind, job)
}

// Register installs the handler for a kind+job pair. Registering the
// same pair twice replaces the previous handler.
func (r *Runner) Register(kind cascade.Kind, job string, h platform.Handler) {
	r.handlersMu.Lock()
	r.handlers[handlerKey(kind, job)] = h
	r.handlersMu.Unlock()
}

// Handlers returns all registered kind:job keys.
func (r *Runner) Handlers() []string {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Bind registers the notifier for a kind.
func (r *Runner) Bind(kind cascade.Kind, n platform.Notifier) {
	r.notifiersMu.Lock()
	r.notifiers[kind] = n
	r.notifiersMu.Unlock()
}

// Submit accepts one attempt into the pending queue and assigns it a
// tracking ID. A full queue returns cascade.ErrSubmissionRejected; an
// unknown kind+job returns cascade.ErrNoHandler.
func (r *Runner) Submit(_ context.Context, att *cascade.Attempt) (id.TrackingID, error) {
	r.handlersMu.RLock()
	_, ok := r.handlers[handlerKey(att.Kind, att.Job)]
	r.handlersMu.RUnlock()
	if !ok {
		return id.TrackingID{}, fmt.Errorf("local: submit %s/%s: %w", att.Kind, att.Job, cascade.ErrNoHandler)
	}

	tid := id.NewTrackingID()
	cp := *att
	cp.Params = att.Params.Clone()
	cp.TrackingID = tid
	cp.SubmittedAt = time.Now().UTC()

	select {
	case r.pending <- &cp:
		return tid, nil
	default:
		return id.TrackingID{}, fmt.Errorf("local: submit %s/%s: %w", att.Kind, att.Job, cascade.ErrSubmissionRejected)
	}
}

// Pending returns the number of accepted submissions waiting for a worker.
func (r *Runner) Pending() int { return len(r.pending) }

// Start launches the worker goroutines. It returns immediately.
func (r *Runner) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	r.running = true

	r.logger.Info("local platform starting",
		slog.Int("concurrency", r.concurrency),
		slog.Int("max_pending", r.maxPending),
	)

	for range r.concurrency {
		r.wg.Add(1)
		go r.workLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If the context has a deadline, in-flight attempts are cancelled when
// time runs out.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.logger.Info("local platform stopping")

	close(r.stopCh)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("local platform stopped gracefully")
	case <-ctx.Done():
		r.logger.Warn("local platform shutdown timed out, cancelling in-flight attempts")
		r.cancelActive()
		r.wg.Wait()
	}

	return nil
}

// workLoop is run by each worker goroutine.
func (r *Runner) workLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopCh:
			return
		case att := <-r.pending:
			r.execute(att)
		}
	}
}

// execute runs one attempt through middleware and the handler, then
// delivers the outcome to the bound notifier.
func (r *Runner) execute(att *cascade.Attempt) {
	r.handlersMu.RLock()
	handler, ok := r.handlers[handlerKey(att.Kind, att.Job)]
	r.handlersMu.RUnlock()

	ctx, cancel := context.WithCancel(cascade.WithAttempt(context.Background(), att))
	r.track(att.TrackingID.String(), cancel)
	defer func() {
		r.untrack(att.TrackingID.String())
		cancel()
	}()

	var out cascade.Outcome
	inv := &platform.Invocation{Attempt: att}

	if !ok {
		// The handler vanished between Submit and execution.
		out = cascade.UnrecoverableFailure(cascade.ErrNoHandler)
	} else {
		terminal := func(ctx context.Context) error {
			return handler(ctx, inv)
		}
		err := r.mw(ctx, att, terminal)
		out = cascade.OutcomeOf(err)
		out.Processed = inv.Processed
		out.Failed = inv.Failed
	}

	r.notify(att, out)
}

// notify delivers OnOutcome (and OnHook for queueables) to the bound
// notifier.
func (r *Runner) notify(att *cascade.Attempt, out cascade.Outcome) {
	r.notifiersMu.RLock()
	n := r.notifiers[att.Kind]
	r.notifiersMu.RUnlock()

	if n == nil {
		r.logger.Warn("no notifier bound for kind, dropping outcome",
			slog.String("kind", att.Kind.String()),
			slog.String("tracking_id", att.TrackingID.String()),
		)
		return
	}

	ctx := context.Background()
	n.OnOutcome(ctx, att.TrackingID, out)

	// Queueable jobs also get the platform completion hook, mirroring
	// runtimes where a finalizer runs after the job settles.
	if att.Kind == cascade.KindQueueable {
		n.OnHook(ctx, att.TrackingID, out)
	}
}

func (r *Runner) track(tid string, cancel context.CancelFunc) {
	r.activeMu.Lock()
	r.active[tid] = cancel
	r.activeMu.Unlock()
}

func (r *Runner) untrack(tid string) {
	r.activeMu.Lock()
	delete(r.active, tid)
	r.activeMu.Unlock()
}

func (r *Runner) cancelActive() {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	for tid, cancel := range r.active {
		r.logger.Warn("cancelling in-flight attempt", slog.String("tracking_id", tid))
		cancel()
	}
}
