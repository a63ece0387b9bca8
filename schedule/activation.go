// Package schedule provides durable one-shot activations and the tick
// loop that fires them. Every delayed start in Cascade rides through
// here: inter-link execution delays, retry backoff, and starts deferred
// by a ceiling or a platform rejection.
//
// An activation fires at or after its eligibility time, never before.
// Delivery is at-least-once — an activation is deleted only after its
// engine accepted the hand-off, so a crash between hand-off and delete
// replays it. The engines' notification handling is idempotent, which
// makes the replay harmless.
package schedule

import (
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Reason records why a start went through the scheduler.
type Reason string

const (
	// ReasonDelay is a finished link's execution delay gating the next link.
	ReasonDelay Reason = "delay"

	// ReasonRetry is backoff before re-submitting a recoverable failure.
	ReasonRetry Reason = "retry"

	// ReasonDeferred is a start pushed back by a ceiling or a platform
	// rejection.
	ReasonDeferred Reason = "deferred"
)

// Activation is one deferred link start, persisted until it fires.
// It carries everything the owning engine needs to resume: the resume
// path re-resolves config (observing cancellations) and re-applies
// ceilings, so nothing else is stored.
type Activation struct {
	cascade.Entity

	// ID identifies this activation.
	ID id.ScheduleID `json:"id"`

	// Kind routes the activation to the owning engine.
	Kind cascade.Kind `json:"kind"`

	// Job is the job identifier to submit.
	Job string `json:"job"`

	// ChainID is the chain instance being advanced.
	ChainID id.ChainID `json:"chain_id"`

	// Params are the parameters for the submission.
	Params cascade.Params `json:"params,omitempty"`

	// Attempt is the attempt ordinal to resume at (1 for fresh starts).
	Attempt int `json:"attempt"`

	// Hops is the chain's hop count at scheduling time.
	Hops int `json:"hops"`

	// Reason records why the start was deferred.
	Reason Reason `json:"reason"`

	// EligibleAt is the earliest instant the activation may fire.
	EligibleAt time.Time `json:"eligible_at"`
}
