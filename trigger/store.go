package trigger

import (
	"context"

	"github.com/xraph/cascade/id"
)

// Store defines the persistence contract for trigger entries.
type Store interface {
	// RegisterTrigger persists a new entry. Returns
	// cascade.ErrDuplicateTrigger if the name already exists.
	RegisterTrigger(ctx context.Context, entry *Entry) error

	// GetTrigger retrieves an entry by ID.
	// Returns cascade.ErrTriggerNotFound when no record exists.
	GetTrigger(ctx context.Context, tid id.TriggerID) (*Entry, error)

	// ListTriggers returns all entries.
	ListTriggers(ctx context.Context) ([]*Entry, error)

	// UpdateTrigger updates an entry (Enabled, LastRunAt, NextRunAt, etc.).
	UpdateTrigger(ctx context.Context, entry *Entry) error

	// DeleteTrigger removes an entry by ID.
	DeleteTrigger(ctx context.Context, tid id.TriggerID) error
}
