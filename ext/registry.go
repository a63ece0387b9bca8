package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type chainStartedEntry struct {
	name string
	hook ChainStarted
}

type linkSubmittedEntry struct {
	name string
	hook LinkSubmitted
}

type linkCompletedEntry struct {
	name string
	hook LinkCompleted
}

type linkRetryingEntry struct {
	name string
	hook LinkRetrying
}

type linkAbortedEntry struct {
	name string
	hook LinkAborted
}

type startDeferredEntry struct {
	name string
	hook StartDeferred
}

type chainAdvancedEntry struct {
	name string
	hook ChainAdvanced
}

type chainEndedEntry struct {
	name string
	hook ChainEnded
}

type triggerFiredEntry struct {
	name string
	hook TriggerFired
}

type deadLetteredEntry struct {
	name string
	hook DeadLettered
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	chainStarted  []chainStartedEntry
	linkSubmitted []linkSubmittedEntry
	linkCompleted []linkCompletedEntry
	linkRetrying  []linkRetryingEntry
	linkAborted   []linkAbortedEntry
	startDeferred []startDeferredEntry
	chainAdvanced []chainAdvancedEntry
	chainEnded    []chainEndedEntry
	triggerFired  []triggerFiredEntry
	deadLettered  []deadLetteredEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ChainStarted); ok {
		r.chainStarted = append(r.chainStarted, chainStartedEntry{name, h})
	}
	if h, ok := e.(LinkSubmitted); ok {
		r.linkSubmitted = append(r.linkSubmitted, linkSubmittedEntry{name, h})
	}
	if h, ok := e.(LinkCompleted); ok {
		r.linkCompleted = append(r.linkCompleted, linkCompletedEntry{name, h})
	}
	if h, ok := e.(LinkRetrying); ok {
		r.linkRetrying = append(r.linkRetrying, linkRetryingEntry{name, h})
	}
	if h, ok := e.(LinkAborted); ok {
		r.linkAborted = append(r.linkAborted, linkAbortedEntry{name, h})
	}
	if h, ok := e.(StartDeferred); ok {
		r.startDeferred = append(r.startDeferred, startDeferredEntry{name, h})
	}
	if h, ok := e.(ChainAdvanced); ok {
		r.chainAdvanced = append(r.chainAdvanced, chainAdvancedEntry{name, h})
	}
	if h, ok := e.(ChainEnded); ok {
		r.chainEnded = append(r.chainEnded, chainEndedEntry{name, h})
	}
	if h, ok := e.(TriggerFired); ok {
		r.triggerFired = append(r.triggerFired, triggerFiredEntry{name, h})
	}
	if h, ok := e.(DeadLettered); ok {
		r.deadLettered = append(r.deadLettered, deadLetteredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Link event emitters
// ──────────────────────────────────────────────────

// EmitChainStarted notifies all extensions that implement ChainStarted.
func (r *Registry) EmitChainStarted(ctx context.Context, att *cascade.Attempt) {
	for _, e := range r.chainStarted {
		if err := e.hook.OnChainStarted(ctx, att); err != nil {
			r.logHookError("OnChainStarted", e.name, err)
		}
	}
}

// EmitLinkSubmitted notifies all extensions that implement LinkSubmitted.
func (r *Registry) EmitLinkSubmitted(ctx context.Context, att *cascade.Attempt) {
	for _, e := range r.linkSubmitted {
		if err := e.hook.OnLinkSubmitted(ctx, att); err != nil {
			r.logHookError("OnLinkSubmitted", e.name, err)
		}
	}
}

// EmitLinkCompleted notifies all extensions that implement LinkCompleted.
func (r *Registry) EmitLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration) {
	for _, e := range r.linkCompleted {
		if err := e.hook.OnLinkCompleted(ctx, att, out, elapsed); err != nil {
			r.logHookError("OnLinkCompleted", e.name, err)
		}
	}
}

// EmitLinkRetrying notifies all extensions that implement LinkRetrying.
func (r *Registry) EmitLinkRetrying(ctx context.Context, att *cascade.Attempt, retry int, eligibleAt time.Time) {
	for _, e := range r.linkRetrying {
		if err := e.hook.OnLinkRetrying(ctx, att, retry, eligibleAt); err != nil {
			r.logHookError("OnLinkRetrying", e.name, err)
		}
	}
}

// EmitLinkAborted notifies all extensions that implement LinkAborted.
func (r *Registry) EmitLinkAborted(ctx context.Context, att *cascade.Attempt, linkErr error) {
	for _, e := range r.linkAborted {
		if err := e.hook.OnLinkAborted(ctx, att, linkErr); err != nil {
			r.logHookError("OnLinkAborted", e.name, err)
		}
	}
}

// EmitStartDeferred notifies all extensions that implement StartDeferred.
func (r *Registry) EmitStartDeferred(ctx context.Context, att *cascade.Attempt, eligibleAt time.Time, reason string) {
	for _, e := range r.startDeferred {
		if err := e.hook.OnStartDeferred(ctx, att, eligibleAt, reason); err != nil {
			r.logHookError("OnStartDeferred", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Chain event emitters
// ──────────────────────────────────────────────────

// EmitChainAdvanced notifies all extensions that implement ChainAdvanced.
func (r *Registry) EmitChainAdvanced(ctx context.Context, from, to *cascade.Attempt) {
	for _, e := range r.chainAdvanced {
		if err := e.hook.OnChainAdvanced(ctx, from, to); err != nil {
			r.logHookError("OnChainAdvanced", e.name, err)
		}
	}
}

// EmitChainEnded notifies all extensions that implement ChainEnded.
func (r *Registry) EmitChainEnded(ctx context.Context, att *cascade.Attempt) {
	for _, e := range r.chainEnded {
		if err := e.hook.OnChainEnded(ctx, att); err != nil {
			r.logHookError("OnChainEnded", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitTriggerFired notifies all extensions that implement TriggerFired.
func (r *Registry) EmitTriggerFired(ctx context.Context, triggerName string, chainID id.ChainID) {
	for _, e := range r.triggerFired {
		if err := e.hook.OnTriggerFired(ctx, triggerName, chainID); err != nil {
			r.logHookError("OnTriggerFired", e.name, err)
		}
	}
}

// EmitDeadLettered notifies all extensions that implement DeadLettered.
func (r *Registry) EmitDeadLettered(ctx context.Context, att *cascade.Attempt, attErr error) {
	for _, e := range r.deadLettered {
		if err := e.hook.OnDeadLettered(ctx, att, attErr); err != nil {
			r.logHookError("OnDeadLettered", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the chain.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
