package cascade

// OutcomeKind classifies how a job execution finished.
type OutcomeKind string

const (
	// OutcomeSuccess means the job completed cleanly.
	OutcomeSuccess OutcomeKind = "success"

	// OutcomeRecoverable means the job failed in a way worth retrying
	// (timeouts, lock contention, transient platform errors).
	OutcomeRecoverable OutcomeKind = "recoverable"

	// OutcomeUnrecoverable means retrying cannot help (bad input,
	// programming error, permanent downstream rejection).
	OutcomeUnrecoverable OutcomeKind = "unrecoverable"
)

// Outcome is the platform's report of a finished job execution. For batch
// jobs Processed and Failed carry per-record counts; queueable jobs leave
// them zero.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Error     string      `json:"error,omitempty"`
	Processed int         `json:"processed,omitempty"`
	Failed    int         `json:"failed,omitempty"`
}

// Failure reports whether the outcome is any kind of failure.
func (o Outcome) Failure() bool { return o.Kind != OutcomeSuccess }

// Success returns an Outcome for a clean completion.
func Success() Outcome { return Outcome{Kind: OutcomeSuccess} }

// RecoverableFailure returns a failure Outcome eligible for retry.
func RecoverableFailure(err error) Outcome {
	o := Outcome{Kind: OutcomeRecoverable}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// UnrecoverableFailure returns a failure Outcome that the retry policy
// will never re-submit.
func UnrecoverableFailure(err error) Outcome {
	o := Outcome{Kind: OutcomeUnrecoverable}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// OutcomeOf classifies a handler error into an Outcome: nil is success,
// errors marked with Unrecoverable are unrecoverable, everything else is
// treated as transient and recoverable.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Success()
	case IsUnrecoverable(err):
		return UnrecoverableFailure(err)
	default:
		return RecoverableFailure(err)
	}
}
