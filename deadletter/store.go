package deadletter

import (
	"context"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// ListOpts controls pagination and filtering for dead-letter queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Kind filters by engine kind. Empty means both kinds.
	Kind cascade.Kind
}

// Store defines the persistence contract for dead-letter entries.
type Store interface {
	// PushDeadLetter adds an aborted link entry.
	PushDeadLetter(ctx context.Context, entry *Entry) error

	// GetDeadLetter retrieves an entry by ID.
	// Returns cascade.ErrDeadLetterNotFound when no record exists.
	GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*Entry, error)

	// ListDeadLetters returns entries matching the given options, newest
	// abort first.
	ListDeadLetters(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// MarkReplayed sets ReplayedAt on an entry. The fresh chain start is
	// handled at the service layer.
	MarkReplayed(ctx context.Context, entryID id.DeadLetterID) error

	// PurgeDeadLetters removes entries with AbortedAt before the given
	// time. Returns the number of entries removed.
	PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error)

	// CountDeadLetters returns the total number of entries.
	CountDeadLetters(ctx context.Context) (int64, error)
}
