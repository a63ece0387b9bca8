// Package ceiling enforces platform concurrency and start-rate ceilings
// for chain links.
//
// Asynchronous platforms cap how many batch jobs may run at once and how
// fast new work may be enqueued. Rather than failing a link when a ceiling
// is hit, the conductor asks the [Governor] before every start and defers
// the start through the delay scheduler when the answer is no.
//
// # Limits
//
// Use [Limit] to configure a ceiling per job kind:
//
//	ceiling.Limit{
//	    Kind:          cascade.KindBatch,
//	    MaxConcurrent: 5,      // max 5 batch jobs in flight
//	}
//	ceiling.Limit{
//	    Kind:       cascade.KindQueueable,
//	    StartRate:  50,        // max 50 starts/s
//	    StartBurst: 100,       // allow bursts up to 100
//	}
//
// # Governor
//
// [Governor] combines an active-count gate for concurrency with a
// token-bucket rate limiter (golang.org/x/time/rate) for start rate.
//
//	wait, ok := g.Acquire(att.Kind)
//	if !ok {
//	    // defer the start; retry after wait (or a configured default
//	    // when wait is zero)
//	}
//	defer g.Release(att.Kind)
//
// Kinds without a [Limit] have no ceiling.
package ceiling
