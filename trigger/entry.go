package trigger

import (
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Entry represents a recurring chain start.
type Entry struct {
	cascade.Entity

	ID        id.TriggerID   `json:"id"`
	Name      string         `json:"name"`
	Schedule  string         `json:"schedule"`
	Kind      cascade.Kind   `json:"kind"`
	Job       string         `json:"job"`
	Params    cascade.Params `json:"params,omitempty"`
	LastRunAt *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt *time.Time     `json:"next_run_at,omitempty"`
	Enabled   bool           `json:"enabled"`
}
