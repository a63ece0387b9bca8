package cascade

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Conductor.
type Option func(*Conductor) error

// Storer is the minimal store interface held by the Conductor. It covers
// lifecycle operations only. The subsystem contracts (chain.Store,
// schedule.Store, deadletter.Store, trigger.Store) are asserted from the
// same value at wiring time; implementations satisfy store.Store which
// embeds all of them.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Conductor is the root handle shared by the two engines and the wiring
// layer. Create one with New and functional options, then assemble the
// runtime with engine.Build.
type Conductor struct {
	config Config
	logger *slog.Logger
	store  Storer
}

// New creates a Conductor with the given options.
func New(opts ...Option) (*Conductor, error) {
	c := &Conductor{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Logger returns the conductor's logger.
func (c *Conductor) Logger() *slog.Logger { return c.logger }

// Store returns the conductor's store.
func (c *Conductor) Store() Storer { return c.store }

// Config returns a copy of the conductor's configuration.
func (c *Conductor) Config() Config { return c.config }

// WithStore sets the persistence backend. The store must implement Storer
// at minimum; typically it is a store.Store embedding every subsystem
// contract.
func WithStore(s Storer) Option {
	return func(c *Conductor) error {
		c.store = s
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conductor) error {
		c.logger = l
		return nil
	}
}

// WithMaxHops sets the per-chain hop budget.
func WithMaxHops(n int) Option {
	return func(c *Conductor) error {
		c.config.MaxHops = n
		return nil
	}
}

// WithResolverTTL sets how long link configs are cached.
func WithResolverTTL(d time.Duration) Option {
	return func(c *Conductor) error {
		c.config.ResolverTTL = d
		return nil
	}
}

// WithDeferDelay sets the re-try delay for rejected or ceilinged starts.
func WithDeferDelay(d time.Duration) Option {
	return func(c *Conductor) error {
		c.config.DeferDelay = d
		return nil
	}
}

// WithMaxActiveBatches bounds concurrently executing batch chains.
func WithMaxActiveBatches(n int) Option {
	return func(c *Conductor) error {
		c.config.MaxActiveBatches = n
		return nil
	}
}

// WithEnqueueRate bounds queueable submissions per second.
func WithEnqueueRate(perSecond float64, burst int) Option {
	return func(c *Conductor) error {
		c.config.EnqueueRate = perSecond
		c.config.EnqueueBurst = burst
		return nil
	}
}

// WithTickInterval sets the scheduler scan interval.
func WithTickInterval(d time.Duration) Option {
	return func(c *Conductor) error {
		c.config.TickInterval = d
		return nil
	}
}

// WithConcurrency sets the local platform's worker count.
func WithConcurrency(n int) Option {
	return func(c *Conductor) error {
		c.config.Concurrency = n
		return nil
	}
}

// WithShutdownTimeout sets the graceful shutdown budget.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Conductor) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}
