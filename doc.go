// Package cascade provides a chain execution engine for asynchronous
// background jobs. Independently defined jobs are linked into ordered
// chains through configuration records; the engine forwards a parameter
// context link to link, applies per-link retry policy, honors inter-link
// delays, and advances or aborts chains as completion outcomes arrive.
//
// Cascade is designed as a library, not a service. Import it, configure a
// store and a job platform, and register chainable jobs as ordinary Go
// types.
//
// # Quick Start
//
//	c, err := cascade.New(
//	    cascade.WithStore(pgStore),
//	    cascade.WithMaxActiveBatches(5),
//	)
//
// # Architecture
//
// Cascade follows a composable store pattern where each subsystem (chain,
// schedule, deadletter, trigger) defines its own store interface. A single
// backend implements all of them.
//
// Jobs never execute inside the engine. They run on a Job Platform (the
// in-process platform/local runtime, or a remote one bridged over
// platform/remote); the engine resolves configuration, submits work, and
// reacts to completion notifications.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package cascade
