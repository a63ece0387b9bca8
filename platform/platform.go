// Package platform defines the execution contract between the chain
// engines and the asynchronous runtime that actually runs jobs.
//
// The engines decide WHAT runs next; a [Platform] decides HOW it runs.
// A platform accepts submissions, assigns each one a tracking ID, and
// later reports the terminal outcome (and, for queueable kinds, the
// completion hook) back through a bound [Notifier].
//
// Two implementations ship with Cascade:
//
//   - platform/local — an in-process runner with a bounded pending
//     queue and a worker pool
//   - platform/remote — a bridge to a remote executor service over
//     WebSocket
//
// Outcome and hook notifications are at-least-once: a platform may
// deliver them more than once (for example after a reconnect), and
// notifiers treat duplicates as no-ops.
package platform

import (
	"context"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Platform accepts link submissions and reports their outcomes.
type Platform interface {
	// Submit hands one link attempt to the platform. On acceptance it
	// returns the platform-assigned tracking ID. A full platform
	// returns cascade.ErrSubmissionRejected; the caller defers and
	// retries rather than failing the link.
	Submit(ctx context.Context, att *cascade.Attempt) (id.TrackingID, error)

	// Bind registers the notifier that receives completion
	// notifications for submissions of the given kind. Binding the
	// same kind twice replaces the previous notifier.
	Bind(kind cascade.Kind, n Notifier)

	// Start launches the platform's background machinery.
	Start(ctx context.Context) error

	// Stop shuts the platform down, waiting for in-flight work up to
	// the context deadline.
	Stop(ctx context.Context) error
}

// Notifier receives completion notifications from a platform. The
// engines implement this.
type Notifier interface {
	// OnOutcome reports the terminal outcome of one attempt. Duplicate
	// deliveries for the same tracking ID are no-ops.
	OnOutcome(ctx context.Context, tid id.TrackingID, out cascade.Outcome)

	// OnHook reports that the platform's completion hook fired for an
	// attempt. Only queueable kinds receive hooks. Duplicates are
	// no-ops.
	OnHook(ctx context.Context, tid id.TrackingID, out cascade.Outcome)
}

// Invocation is the mutable execution record a local handler works
// against. Handlers report record counts by setting Processed and
// Failed before returning.
type Invocation struct {
	// Attempt is the link attempt being executed.
	Attempt *cascade.Attempt

	// Processed is the number of records the handler worked through.
	Processed int

	// Failed is the number of records that errored.
	Failed int
}

// Handler executes the business logic of one link on the local
// platform. A nil return is a success; wrap the error with
// cascade.Unrecoverable to suppress retries.
type Handler func(ctx context.Context, inv *Invocation) error
