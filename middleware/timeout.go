package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/cascade"
)

// Timeout returns middleware that enforces a per-link execution deadline.
// If the attempt has a non-zero Timeout, a context.WithTimeout wraps the
// handler call. When the deadline is exceeded the context is cancelled and
// the handler should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, att *cascade.Attempt, next Handler) error {
		if att.Timeout > 0 {
			logger.Debug("link timeout set",
				slog.String("job", att.Job),
				slog.String("chain_id", att.ChainID.String()),
				slog.Duration("timeout", att.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, att.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
