package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.ChainStarted  = (*Extension)(nil)
	_ ext.LinkSubmitted = (*Extension)(nil)
	_ ext.LinkCompleted = (*Extension)(nil)
	_ ext.LinkRetrying  = (*Extension)(nil)
	_ ext.LinkAborted   = (*Extension)(nil)
	_ ext.StartDeferred = (*Extension)(nil)
	_ ext.ChainAdvanced = (*Extension)(nil)
	_ ext.ChainEnded    = (*Extension)(nil)
	_ ext.DeadLettered  = (*Extension)(nil)
	_ ext.TriggerFired  = (*Extension)(nil)
)

// Recorder is the interface audit backends implement. It is defined
// locally so this package carries no backend dependency — callers inject
// the concrete implementation at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is the audit record built from one lifecycle hook.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Cascade lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the
// [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Chain lifecycle hooks ───────────────────────────

// OnChainStarted implements ext.ChainStarted.
func (e *Extension) OnChainStarted(ctx context.Context, att *cascade.Attempt) error {
	return e.record(ctx, ActionChainStarted, SeverityInfo, OutcomeSuccess,
		ResourceChain, att.ChainID.String(), CategoryChain, nil,
		"job", att.Job,
		"kind", att.Kind.String(),
	)
}

// OnLinkSubmitted implements ext.LinkSubmitted.
func (e *Extension) OnLinkSubmitted(ctx context.Context, att *cascade.Attempt) error {
	return e.record(ctx, ActionLinkSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceChain, att.ChainID.String(), CategoryLink, nil,
		"job", att.Job,
		"kind", att.Kind.String(),
		"tracking_id", att.TrackingID.String(),
		"attempt", att.Number,
		"hops", att.Hops,
	)
}

// OnLinkCompleted implements ext.LinkCompleted. The audit outcome tracks
// the execution outcome.
func (e *Extension) OnLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration) error {
	outcome := OutcomeSuccess
	if out.Failure() {
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionLinkCompleted, SeverityInfo, outcome,
		ResourceChain, att.ChainID.String(), CategoryLink, nil,
		"job", att.Job,
		"kind", att.Kind.String(),
		"attempt", att.Number,
		"outcome", string(out.Kind),
		"processed", out.Processed,
		"failed", out.Failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnLinkRetrying implements ext.LinkRetrying.
func (e *Extension) OnLinkRetrying(ctx context.Context, att *cascade.Attempt, retry int, eligibleAt time.Time) error {
	return e.record(ctx, ActionLinkRetrying, SeverityWarning, OutcomeFailure,
		ResourceChain, att.ChainID.String(), CategoryLink, nil,
		"job", att.Job,
		"kind", att.Kind.String(),
		"retry", retry,
		"eligible_at", eligibleAt.Format(time.RFC3339),
	)
}

// OnLinkAborted implements ext.LinkAborted.
func (e *Extension) OnLinkAborted(ctx context.Context, att *cascade.Attempt, attErr error) error {
	return e.record(ctx, ActionLinkAborted, SeverityCritical, OutcomeFailure,
		ResourceChain, att.ChainID.String(), CategoryLink, attErr,
		"job", att.Job,
		"kind", att.Kind.String(),
		"attempt", att.Number,
		"hops", att.Hops,
	)
}

// OnStartDeferred implements ext.StartDeferred.
func (e *Extension) OnStartDeferred(ctx context.Context, att *cascade.Attempt, eligibleAt time.Time, reason string) error {
	return e.record(ctx, ActionStartDeferred, SeverityInfo, OutcomeSuccess,
		ResourceChain, att.ChainID.String(), CategoryLink, nil,
		"job", att.Job,
		"kind", att.Kind.String(),
		"reason", reason,
		"eligible_at", eligibleAt.Format(time.RFC3339),
	)
}

// OnChainAdvanced implements ext.ChainAdvanced.
func (e *Extension) OnChainAdvanced(ctx context.Context, from, to *cascade.Attempt) error {
	return e.record(ctx, ActionChainAdvanced, SeverityInfo, OutcomeSuccess,
		ResourceChain, to.ChainID.String(), CategoryChain, nil,
		"from_job", from.Job,
		"to_job", to.Job,
		"kind", to.Kind.String(),
		"hops", to.Hops,
	)
}

// OnChainEnded implements ext.ChainEnded.
func (e *Extension) OnChainEnded(ctx context.Context, att *cascade.Attempt) error {
	return e.record(ctx, ActionChainEnded, SeverityInfo, OutcomeSuccess,
		ResourceChain, att.ChainID.String(), CategoryChain, nil,
		"job", att.Job,
		"kind", att.Kind.String(),
		"hops", att.Hops,
	)
}

// OnDeadLettered implements ext.DeadLettered.
func (e *Extension) OnDeadLettered(ctx context.Context, att *cascade.Attempt, attErr error) error {
	return e.record(ctx, ActionDeadLettered, SeverityCritical, OutcomeFailure,
		ResourceChain, att.ChainID.String(), CategoryChain, attErr,
		"job", att.Job,
		"kind", att.Kind.String(),
		"attempt", att.Number,
	)
}

// ── Trigger hooks ───────────────────────────────────

// OnTriggerFired implements ext.TriggerFired.
func (e *Extension) OnTriggerFired(ctx context.Context, triggerName string, chainID id.ChainID) error {
	return e.record(ctx, ActionTriggerFired, SeverityInfo, OutcomeSuccess,
		ResourceTrigger, triggerName, CategoryTrigger, nil,
		"chain_id", chainID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// kvPairs is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
