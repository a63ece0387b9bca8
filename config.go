package cascade

import "time"

// Config holds configuration for the Conductor.
type Config struct {
	// MaxHops bounds the links one chain instance may traverse. Cyclic
	// configs are legal; the budget stops runaway loops.
	MaxHops int

	// ResolverTTL is how long resolved link configs are cached before the
	// store is consulted again. Cancellation (isActive=false) becomes
	// visible within this window at the latest.
	ResolverTTL time.Duration

	// DeferDelay is the re-try delay applied when a ceiling or the
	// platform rejects a start. Deferred starts go through the delay
	// scheduler rather than failing.
	DeferDelay time.Duration

	// MaxActiveBatches bounds concurrently executing batch chains.
	// Zero means unlimited.
	MaxActiveBatches int

	// EnqueueRate and EnqueueBurst bound queueable submissions per second
	// as a token bucket. A zero rate means unlimited.
	EnqueueRate  float64
	EnqueueBurst int

	// TickInterval is how often the delay scheduler and the trigger
	// scheduler scan for due work.
	TickInterval time.Duration

	// Concurrency is the local platform's worker count.
	Concurrency int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxHops:          256,
		ResolverTTL:      30 * time.Second,
		DeferDelay:       10 * time.Second,
		MaxActiveBatches: 5,
		EnqueueRate:      0,
		EnqueueBurst:     1,
		TickInterval:     1 * time.Second,
		Concurrency:      10,
		ShutdownTimeout:  30 * time.Second,
	}
}
