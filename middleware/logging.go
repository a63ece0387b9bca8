package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cascade"
)

// Logging returns middleware that logs attempt start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, att *cascade.Attempt, next Handler) error {
		logger.Info("link started",
			slog.String("job", att.Job),
			slog.String("kind", att.Kind.String()),
			slog.String("chain_id", att.ChainID.String()),
			slog.Int("attempt", att.Number),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("link failed",
				slog.String("job", att.Job),
				slog.String("chain_id", att.ChainID.String()),
				slog.Int("attempt", att.Number),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("link completed",
				slog.String("job", att.Job),
				slog.String("chain_id", att.ChainID.String()),
				slog.Int("attempt", att.Number),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
