package schedule

import (
	"context"
	"time"

	"github.com/xraph/cascade/id"
)

// Store defines the persistence contract for activations.
type Store interface {
	// PutActivation persists an activation.
	PutActivation(ctx context.Context, act *Activation) error

	// GetActivation retrieves an activation by ID.
	// Returns cascade.ErrScheduleNotFound when no record exists.
	GetActivation(ctx context.Context, sid id.ScheduleID) (*Activation, error)

	// DueActivations returns activations with EligibleAt at or before now,
	// oldest eligibility first. Limit bounds the result; zero means no
	// limit.
	DueActivations(ctx context.Context, now time.Time, limit int) ([]*Activation, error)

	// ListActivations returns all pending activations, oldest eligibility
	// first.
	ListActivations(ctx context.Context) ([]*Activation, error)

	// DeleteActivation removes an activation by ID.
	DeleteActivation(ctx context.Context, sid id.ScheduleID) error
}
