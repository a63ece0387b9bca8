// Package queueable implements the queueable chain engine: the variant
// that drives lightweight single-shot jobs.
//
// It shares the batch engine's chaining semantics — config-driven links,
// parameter forwarding, retry policy, durable delays — and adds two
// queueable-only behaviors:
//
//   - continueOnFailure: a link may advance the chain even when it fails
//     terminally, instead of aborting.
//   - useCompletionHook: the platform's completion hook (the finalizer
//     that runs after a job settles) becomes the authoritative
//     continuation trigger. Without it the outcome notification advances
//     the chain and the hook is purely observational.
//
// Exactly one continuation decision is made per job instance, whichever
// trigger fires first wins the claim, and duplicate notifications are
// no-ops.
//
// # Participating
//
//	type SendReceipt struct {
//	    queueable.Base
//	}
//
//	func (SendReceipt) ChainIdentifier() string { return "send-receipt" }
//
//	eng.Register(SendReceipt{})
//
// # Enqueue ceiling
//
// The engine bounds its submission rate with a token bucket in the
// ceiling governor. Starts over the rate are deferred through the delay
// scheduler with the limiter's own wait estimate.
package queueable
