package cascade

import (
	"time"

	"github.com/xraph/cascade/id"
)

// Attempt is the ephemeral execution state for one link of a running
// chain. It lives in engine memory and inside schedule activations only;
// chains keep no persisted execution record.
type Attempt struct {
	// ChainID identifies the chain instance. Minted at Start and carried
	// unchanged through every continuation.
	ChainID id.ChainID `json:"chain_id"`

	// Kind is the engine variant driving this chain.
	Kind Kind `json:"kind"`

	// Job is the identifier of the link currently executing.
	Job string `json:"job"`

	// Params is the parameter context handed to the job.
	Params Params `json:"params,omitempty"`

	// BatchSize is the batch size in effect (batch kind only).
	BatchSize int `json:"batch_size,omitempty"`

	// Number is the attempt ordinal for this link, starting at 1.
	Number int `json:"number"`

	// Hops counts links traversed since Start. Cyclic configs are legal;
	// the hop budget is the runaway guard.
	Hops int `json:"hops"`

	// Timeout bounds a single execution of this link. Zero means no
	// deadline beyond the platform's own.
	Timeout time.Duration `json:"timeout,omitempty"`

	// TrackingID is the platform-assigned identity of the submission.
	// Zero until the platform accepts the work.
	TrackingID id.TrackingID `json:"tracking_id"`

	// SubmittedAt is when the platform accepted the submission.
	SubmittedAt time.Time `json:"submitted_at,omitempty"`
}

// Retries returns the number of retries already performed for this link.
func (a *Attempt) Retries() int {
	if a.Number <= 1 {
		return 0
	}
	return a.Number - 1
}

// NextLink builds the attempt for the following link. Explicitly provided
// parameters win over the inherited context on merge.
func (a *Attempt) NextLink(job string, batchSize int, explicit Params) *Attempt {
	return &Attempt{
		ChainID:   a.ChainID,
		Kind:      a.Kind,
		Job:       job,
		Params:    a.Params.Merge(explicit),
		BatchSize: batchSize,
		Number:    1,
		Hops:      a.Hops + 1,
	}
}

// Retry builds the re-submission attempt for the same link: same job, same
// parameters, incremented attempt ordinal, cleared platform identity.
func (a *Attempt) Retry() *Attempt {
	cp := *a
	cp.Params = a.Params.Clone()
	cp.Number = a.Number + 1
	cp.TrackingID = id.TrackingID{}
	cp.SubmittedAt = time.Time{}
	return &cp
}
