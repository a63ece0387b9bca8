// Package policy holds the retry/failure decision applied after every
// link execution. It is a pure function of the outcome and the link's
// retry budget: no I/O, no clock, no engine state. Both engines call it
// exactly once per completed job instance.
package policy

import "github.com/xraph/cascade"

// Decision is what the engine does with a finished link.
type Decision int

const (
	// Continue advances the chain to the next link (or ends it when the
	// config names none).
	Continue Decision = iota

	// Retry re-submits the same link with the same parameters and an
	// incremented attempt ordinal.
	Retry

	// Abort terminates the chain. The job's own hooks already observed
	// the failure; the engine records a dead letter and stops.
	Abort
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Decide maps an execution outcome to a chain decision.
//
// retries is the number of retries already performed for this link
// (attempt ordinal minus one), so maxRetries=N allows exactly N
// re-submissions after the initial attempt.
func Decide(outcome cascade.OutcomeKind, retries, maxRetries int, continueOnFailure bool) Decision {
	if outcome == cascade.OutcomeSuccess {
		return Continue
	}
	if outcome == cascade.OutcomeRecoverable && retries < maxRetries {
		return Retry
	}
	if continueOnFailure {
		return Continue
	}
	return Abort
}
