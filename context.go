package cascade

import "context"

type attemptKey struct{}

// WithAttempt returns a context carrying the attempt. The owning engine
// installs it before invoking job-side hooks, so hook code can call back
// into the engine (Continue) without threading the attempt manually.
func WithAttempt(ctx context.Context, a *Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFrom extracts the attempt installed by the owning engine.
func AttemptFrom(ctx context.Context) (*Attempt, bool) {
	a, ok := ctx.Value(attemptKey{}).(*Attempt)
	return a, ok
}
