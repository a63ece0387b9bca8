package queueable

import (
	"context"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// Chainable is the capability a queueable job implements to participate
// in chains. On top of the batch capability it gets failure and
// completion-hook callbacks, mirroring single-shot job runtimes where a
// job object observes its own error and a finalizer runs after it
// settles.
type Chainable interface {
	// ChainIdentifier returns the job identifier link configs refer to.
	// It must be stable and unique within the queueable kind.
	ChainIdentifier() string

	// BeforeExecution runs once per link, before its first submission.
	// The returned parameters replace the attempt's.
	BeforeExecution(ctx context.Context, params cascade.Params) (cascade.Params, error)

	// AfterExecution observes the link's terminal outcome before the
	// retry/failure policy is applied.
	AfterExecution(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) error

	// OnExecutionError is invoked for every failed execution, recoverable
	// or not, after AfterExecution and before the policy decision.
	OnExecutionError(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) error

	// OnCompletionHook is the finalizer: it is invoked when the platform
	// reports the completion hook for the attempt. When the link's config
	// sets UseCompletionHook the continuation decision rides this path,
	// and the hook may call the engine's ContinueWith to hand explicit
	// parameters to the next link.
	OnCompletionHook(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) error
}

// ConfigProvider lets a job supply its own link configuration instead of
// the store record.
type ConfigProvider interface {
	ChainConfig(ctx context.Context) (*chain.LinkConfig, error)
}

// Base is an embeddable no-op implementation of the Chainable hooks.
type Base struct{}

// BeforeExecution passes the parameters through unchanged.
func (Base) BeforeExecution(_ context.Context, params cascade.Params) (cascade.Params, error) {
	return params, nil
}

// AfterExecution does nothing.
func (Base) AfterExecution(context.Context, *cascade.Attempt, cascade.Outcome) error {
	return nil
}

// OnExecutionError does nothing.
func (Base) OnExecutionError(context.Context, *cascade.Attempt, cascade.Outcome) error {
	return nil
}

// OnCompletionHook does nothing.
func (Base) OnCompletionHook(context.Context, *cascade.Attempt, cascade.Outcome) error {
	return nil
}
