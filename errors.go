package cascade

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("cascade: no store configured")
	ErrStoreClosed = errors.New("cascade: store closed")

	// Not found errors.
	ErrConfigNotFound     = errors.New("cascade: chain link config not found")
	ErrScheduleNotFound   = errors.New("cascade: schedule activation not found")
	ErrDeadLetterNotFound = errors.New("cascade: dead letter entry not found")
	ErrTriggerNotFound    = errors.New("cascade: trigger not found")

	// Start errors.
	ErrConfigInactive     = errors.New("cascade: chain link config inactive")
	ErrSubmissionRejected = errors.New("cascade: platform rejected submission")
	ErrNoHandler          = errors.New("cascade: no handler registered")
	ErrNoPlatform         = errors.New("cascade: no platform configured")

	// Conflict errors.
	ErrDuplicateChainable = errors.New("cascade: chainable already registered")
	ErrDuplicateTrigger   = errors.New("cascade: duplicate trigger")

	// Chain errors.
	ErrHopBudgetExceeded = errors.New("cascade: hop budget exceeded")
	ErrInvalidKind       = errors.New("cascade: invalid engine kind")
)

// unrecoverableError marks an error as not worth retrying.
type unrecoverableError struct{ err error }

func (e *unrecoverableError) Error() string { return e.err.Error() }
func (e *unrecoverableError) Unwrap() error { return e.err }

// Unrecoverable marks err as unrecoverable. The retry policy will not
// re-submit a link that failed with a marked error, regardless of the
// remaining retry budget.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{err: err}
}

// IsUnrecoverable reports whether err carries the unrecoverable mark.
func IsUnrecoverable(err error) bool {
	var ue *unrecoverableError
	return errors.As(err, &ue)
}
