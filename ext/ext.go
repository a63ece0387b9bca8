package ext

import (
	"context"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Link lifecycle hooks
// ──────────────────────────────────────────────────

// ChainStarted is called when the first link of a chain is launched.
type ChainStarted interface {
	OnChainStarted(ctx context.Context, att *cascade.Attempt) error
}

// LinkSubmitted is called after a link attempt is accepted by the
// execution platform. The attempt carries the platform tracking ID.
type LinkSubmitted interface {
	OnLinkSubmitted(ctx context.Context, att *cascade.Attempt) error
}

// LinkCompleted is called when a link attempt reports its outcome,
// regardless of whether the outcome is success or failure.
type LinkCompleted interface {
	OnLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration) error
}

// LinkRetrying is called when a link attempt fails recoverably and a
// fresh attempt has been scheduled.
type LinkRetrying interface {
	OnLinkRetrying(ctx context.Context, att *cascade.Attempt, retry int, eligibleAt time.Time) error
}

// LinkAborted is called when a link fails terminally and the chain
// stops advancing.
type LinkAborted interface {
	OnLinkAborted(ctx context.Context, att *cascade.Attempt, err error) error
}

// StartDeferred is called when a start could not proceed immediately
// and was handed to the delay scheduler instead.
type StartDeferred interface {
	OnStartDeferred(ctx context.Context, att *cascade.Attempt, eligibleAt time.Time, reason string) error
}

// ──────────────────────────────────────────────────
// Chain lifecycle hooks
// ──────────────────────────────────────────────────

// ChainAdvanced is called when a finished link hands off to its
// configured successor.
type ChainAdvanced interface {
	OnChainAdvanced(ctx context.Context, from, to *cascade.Attempt) error
}

// ChainEnded is called when a chain reaches a link with no successor.
type ChainEnded interface {
	OnChainEnded(ctx context.Context, att *cascade.Attempt) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// TriggerFired is called when a cron trigger fires and launches a chain.
type TriggerFired interface {
	OnTriggerFired(ctx context.Context, triggerName string, chainID id.ChainID) error
}

// DeadLettered is called when an aborted attempt is recorded in the
// dead letter store.
type DeadLettered interface {
	OnDeadLettered(ctx context.Context, att *cascade.Attempt, err error) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
