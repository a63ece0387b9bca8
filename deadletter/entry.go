package deadletter

import (
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Entry represents a chain link that aborted and was moved to the
// dead-letter store for inspection or replay.
type Entry struct {
	cascade.Entity

	ID         id.DeadLetterID `json:"id"`
	ChainID    id.ChainID      `json:"chain_id"`
	Kind       cascade.Kind    `json:"kind"`
	Job        string          `json:"job"`
	Params     cascade.Params  `json:"params,omitempty"`
	Error      string          `json:"error"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	Hops       int             `json:"hops"`
	AbortedAt  time.Time       `json:"aborted_at"`
	ReplayedAt *time.Time      `json:"replayed_at,omitempty"`
}
