// Package backoff provides pluggable retry delay strategies for chain
// link re-submission. Strategies are plain functions and safe for
// concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry n (1-indexed). Retry 1 is the
// first re-submission after the initial failure.
type Strategy func(retry int) time.Duration

// Fixed always waits the same interval regardless of retry number.
func Fixed(interval time.Duration) Strategy {
	return func(_ int) time.Duration {
		return interval
	}
}

// Linear grows the delay linearly: min(initial * retry, max).
func Linear(initial, maxDelay time.Duration) Strategy {
	return func(retry int) time.Duration {
		d := initial * time.Duration(retry)
		if maxDelay > 0 && d > maxDelay {
			return maxDelay
		}
		return d
	}
}

// Exponential doubles the delay each retry: min(initial * 2^(retry-1), max).
func Exponential(initial, maxDelay time.Duration) Strategy {
	return func(retry int) time.Duration {
		d := time.Duration(float64(initial) * math.Pow(2, float64(retry-1)))
		if maxDelay > 0 && d > maxDelay {
			return maxDelay
		}
		return d
	}
}

// FullJitter draws a random delay in [0, min(initial * 2^(retry-1), max)].
// This prevents thundering herd when many links retry at once.
func FullJitter(initial, maxDelay time.Duration) Strategy {
	return func(retry int) time.Duration {
		base := float64(initial) * math.Pow(2, float64(retry-1))
		if maxDelay > 0 && base > float64(maxDelay) {
			base = float64(maxDelay)
		}
		return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
}

// Default returns the strategy the engines use when none is configured:
// full jitter over an exponential base, 1s initial, 1m cap.
func Default() Strategy {
	return FullJitter(1*time.Second, 1*time.Minute)
}
