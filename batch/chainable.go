package batch

import (
	"context"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// Chainable is the capability a batch job implements to participate in
// chains. The engine invokes the hooks around platform execution; the
// job's record-crunching logic itself runs on the platform, not here.
type Chainable interface {
	// ChainIdentifier returns the job identifier link configs refer to.
	// It must be stable and unique within the batch kind.
	ChainIdentifier() string

	// BeforeExecution runs once per link, before its first submission.
	// The returned parameters replace the attempt's; return the input
	// unchanged to pass the context through untouched. An error at chain
	// start propagates to the caller; on a continuation boundary it
	// aborts the chain.
	BeforeExecution(ctx context.Context, params cascade.Params) (cascade.Params, error)

	// AfterExecution observes the link's terminal outcome before the
	// retry/failure policy is applied. It may call the engine's
	// ContinueWith to supply explicit parameters for the next link.
	AfterExecution(ctx context.Context, att *cascade.Attempt, out cascade.Outcome) error
}

// ConfigProvider lets a job supply its own link configuration instead of
// the store record. Implement it on a Chainable when the config is code,
// not data.
type ConfigProvider interface {
	ChainConfig(ctx context.Context) (*chain.LinkConfig, error)
}

// Base is an embeddable no-op implementation of the Chainable hooks.
// Jobs embed it and implement ChainIdentifier plus whichever hooks they
// actually need.
type Base struct{}

// BeforeExecution passes the parameters through unchanged.
func (Base) BeforeExecution(_ context.Context, params cascade.Params) (cascade.Params, error) {
	return params, nil
}

// AfterExecution does nothing.
func (Base) AfterExecution(context.Context, *cascade.Attempt, cascade.Outcome) error {
	return nil
}
