package chain

import (
	"context"

	"github.com/xraph/cascade"
)

// ListOpts controls filtering and pagination for link config queries.
type ListOpts struct {
	// Kind filters by engine kind. Empty means both kinds.
	Kind cascade.Kind
	// ActiveOnly restricts results to active records.
	ActiveOnly bool
	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
	// Offset is the number of records to skip.
	Offset int
}

// Store defines the persistence contract for chain link configs.
// The engines only read; writes come from operator tooling (CLI, API).
type Store interface {
	// PutLink upserts a link config keyed by (Kind, Job).
	PutLink(ctx context.Context, cfg *LinkConfig) error

	// GetLink retrieves the config for a job identifier.
	// Returns cascade.ErrConfigNotFound when no record exists.
	GetLink(ctx context.Context, kind cascade.Kind, job string) (*LinkConfig, error)

	// ListLinks returns link configs matching the given options.
	ListLinks(ctx context.Context, opts ListOpts) ([]*LinkConfig, error)

	// DeleteLink removes the config for a job identifier.
	DeleteLink(ctx context.Context, kind cascade.Kind, job string) error
}
