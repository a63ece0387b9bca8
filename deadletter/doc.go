// Package deadletter records chain links that aborted — retry budget
// exhausted on a recoverable failure, an unrecoverable failure without
// continueOnFailure, or a blown hop budget. Entries support inspection,
// replay, and purging.
//
// # Entry
//
// An [Entry] captures:
//   - ChainID / Kind / Job: where in which chain the abort happened
//   - Params: the parameter snapshot at time of abort
//   - Error: the final error message
//   - Attempts / MaxRetries: the exhausted retry budget
//   - Hops: how deep into the chain the abort occurred
//   - AbortedAt: when the abort happened
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Service
//
// [Service] wraps the store with high-level operations:
//
//	svc := deadletter.NewService(store, logger)
//
//	// Record is called by the engines when policy says abort.
//	svc.Record(ctx, att, err)
//
//	// Replay starts a fresh chain from the entry's job and parameters.
//	chainID, err := svc.Replay(ctx, entryID)
//
// # Replay
//
// A replay is a fresh chain start, not a resume: the new chain gets its
// own chain ID, attempt counter 1, and hop count 0, and advances past the
// failed link only if the link now succeeds. Replay sets ReplayedAt on
// the entry but never deletes it.
package deadletter
