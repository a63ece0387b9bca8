// Package batch implements the batch chain engine: the variant that
// drives jobs processing large record sets in fixed-size batches.
//
// The engine owns no business logic. It resolves link configuration,
// submits attempts to a platform, and reacts to completion outcomes:
// success advances the chain, recoverable failure retries with backoff,
// terminal failure aborts into the dead letter store.
//
// # Participating
//
// A job participates by implementing [Chainable] and registering with
// the engine:
//
//	type ReconcileJob struct {
//	    batch.Base
//	}
//
//	func (ReconcileJob) ChainIdentifier() string { return "reconcile-accounts" }
//
//	eng.Register(ReconcileJob{})
//
// Embedding [Base] keeps jobs that need no hooks down to the identifier
// method. Jobs that want engine-resolved configuration replaced with
// their own implement [ConfigProvider].
//
// # Concurrency ceiling
//
// The engine bounds concurrently active batches through a
// [ceiling.Governor]. A start that hits the ceiling is not an error: it
// is handed to the delay scheduler and retried when capacity frees up.
package batch
