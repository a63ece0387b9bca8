// Package audit is a Cascade extension that bridges lifecycle events to
// an audit trail backend.
//
// Every chain, link, and trigger lifecycle hook emits a structured audit
// event through the [Recorder] interface. The extension assigns severity
// levels (info for normal operation, warning for retries, critical for
// aborts and dead letters) and carries the chain context as metadata
// (job, kind, attempt, hops, errors).
//
// # Usage
//
//	audit.New(audit.RecorderFunc(func(ctx context.Context, evt *audit.Event) error {
//	    return trail.Append(ctx, evt.Action, evt.Resource, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionLinkAborted,
//	        audit.ActionDeadLettered,
//	    ),
//	)
package audit
