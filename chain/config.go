// Package chain defines chain link configuration records, their store
// contract, and the caching resolver the engines read configs through.
//
// A chain is not declared anywhere as a whole. It emerges from link
// records: each record names a job identifier and, optionally, the job
// that follows it. Editing records rewires chains without touching job
// code.
package chain

import (
	"fmt"
	"time"

	"github.com/xraph/cascade"
)

// DefaultBatchSize is applied when a batch link omits BatchSize.
const DefaultBatchSize = 200

// DefaultTimeout is applied when a link omits Timeout.
const DefaultTimeout = 5 * time.Minute

// LinkConfig is one chain link configuration record. At most one active
// record may exist per (Kind, Job) pair; the store upserts on that key.
type LinkConfig struct {
	cascade.Entity

	// Kind is the engine variant that owns this link.
	Kind cascade.Kind `json:"kind"`

	// Job is the job identifier this record configures.
	Job string `json:"job"`

	// Next is the job identifier submitted after this link completes.
	// Empty means the chain ends here.
	Next string `json:"next,omitempty"`

	// BatchSize is the record batch size for batch links.
	BatchSize int `json:"batch_size,omitempty"`

	// Delay pauses the chain between this link finishing and the next
	// link starting. Zero hands off immediately.
	Delay time.Duration `json:"delay"`

	// Timeout bounds a single execution of this link on the platform.
	Timeout time.Duration `json:"timeout"`

	// MaxRetries is how many times a recoverable failure is retried
	// before the failure policy applies.
	MaxRetries int `json:"max_retries"`

	// Active gates the link. Setting it false cancels the chain at the
	// next boundary: starts fail, continuations terminate.
	Active bool `json:"active"`

	// ContinueOnFailure advances the chain even when this link fails
	// permanently. Queueable links only.
	ContinueOnFailure bool `json:"continue_on_failure,omitempty"`

	// UseCompletionHook makes the platform's completion hook the
	// authoritative continuation trigger. Queueable links only.
	UseCompletionHook bool `json:"use_completion_hook,omitempty"`

	// Description is free text for operators.
	Description string `json:"description,omitempty"`
}

// Validate checks the record for structural problems and applies
// kind-specific defaults.
func (c *LinkConfig) Validate() error {
	if c.Job == "" {
		return fmt.Errorf("chain: link config: empty job identifier")
	}
	if !c.Kind.Valid() {
		return fmt.Errorf("chain: link config %q: %w", c.Job, cascade.ErrInvalidKind)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("chain: link config %q: negative max retries", c.Job)
	}
	if c.Delay < 0 {
		return fmt.Errorf("chain: link config %q: negative delay", c.Job)
	}
	if c.Kind == cascade.KindBatch && c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}
