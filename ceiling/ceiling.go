package ceiling

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/cascade"
)

// Limit defines the ceiling for a single job kind.
type Limit struct {
	// Kind is the job kind this limit applies to.
	Kind cascade.Kind

	// MaxConcurrent caps how many jobs of this kind may be in flight
	// at once. Zero means no concurrency ceiling.
	MaxConcurrent int

	// StartRate is the maximum sustained starts per second for this
	// kind. Zero disables rate limiting.
	StartRate float64

	// StartBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if StartRate is set but StartBurst is zero.
	StartBurst int
}

// kindState tracks runtime state for a single job kind.
type kindState struct {
	limit   Limit
	limiter *rate.Limiter
	active  int
}

// Governor enforces per-kind concurrency and start-rate ceilings.
// It is safe for concurrent use.
type Governor struct {
	mu    sync.Mutex
	kinds map[cascade.Kind]*kindState
}

// NewGovernor creates a Governor with the given limits. Kinds not
// listed here have no ceiling.
func NewGovernor(limits ...Limit) *Governor {
	g := &Governor{
		kinds: make(map[cascade.Kind]*kindState, len(limits)),
	}
	for _, l := range limits {
		g.kinds[l.Kind] = newKindState(l)
	}
	return g
}

func newKindState(l Limit) *kindState {
	ks := &kindState{limit: l}
	if l.StartRate > 0 {
		burst := l.StartBurst
		if burst <= 0 {
			burst = 1
		}
		ks.limiter = rate.NewLimiter(rate.Limit(l.StartRate), burst)
	}
	return ks
}

// Acquire checks the ceiling for the given kind. If the start may
// proceed it increments the active counter and returns (0, true); the
// caller MUST call Release when the job reaches a terminal outcome.
//
// If the ceiling is hit it returns (wait, false) without acquiring.
// A non-zero wait is the rate limiter's estimate of when a token
// becomes available; a zero wait means the concurrency ceiling is
// full and the caller should retry after its own default interval.
func (g *Governor) Acquire(kind cascade.Kind) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ks := g.kinds[kind]
	if ks == nil {
		return 0, true
	}

	if ks.limit.MaxConcurrent > 0 && ks.active >= ks.limit.MaxConcurrent {
		return 0, false
	}

	if ks.limiter != nil {
		r := ks.limiter.Reserve()
		if wait := r.Delay(); wait > 0 {
			// Hand the token back; the deferred start reserves anew.
			r.Cancel()
			return wait, false
		}
	}

	ks.active++
	return 0, true
}

// Release decrements the active count for the kind.
func (g *Governor) Release(kind cascade.Kind) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ks := g.kinds[kind]; ks != nil && ks.active > 0 {
		ks.active--
	}
}

// SetLimit dynamically updates (or creates) the limit for a kind.
func (g *Governor) SetLimit(l Limit) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.kinds[l.Kind]
	ks := newKindState(l)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ks.active = existing.active
	}
	g.kinds[l.Kind] = ks
}

// Active returns the current number of in-flight jobs for a kind.
func (g *Governor) Active(kind cascade.Kind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ks := g.kinds[kind]; ks != nil {
		return ks.active
	}
	return 0
}
