// Package ext defines the extension system for Cascade.
//
// Extensions are notified of chain lifecycle events and can react to
// them — recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnLinkCompleted(ctx context.Context, att *cascade.Attempt, out cascade.Outcome, elapsed time.Duration) error {
//	    log.Printf("link %s/%s completed in %s", att.Kind, att.Job, elapsed)
//	    return nil
//	}
//
// # Link Lifecycle Hooks
//
//   - [ChainStarted] — the first link of a chain was launched
//   - [LinkSubmitted] — a link was handed to the execution platform
//   - [LinkCompleted] — a link attempt reported its outcome
//   - [LinkRetrying] — a link attempt failed but will be retried
//   - [LinkAborted] — a link failed terminally and the chain stopped
//   - [StartDeferred] — a start was pushed to the delay scheduler
//
// # Chain Lifecycle Hooks
//
//   - [ChainAdvanced] — a finished link handed off to its successor
//   - [ChainEnded] — a chain reached a link with no successor
//
// # Other Hooks
//
//   - [TriggerFired] — a cron trigger launched a chain
//   - [DeadLettered] — an aborted attempt was recorded for inspection
//   - [Shutdown] — the conductor is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
