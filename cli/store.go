package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/store/memory"
	mongostore "github.com/xraph/cascade/store/mongo"
	"github.com/xraph/cascade/store/postgres"
	redisstore "github.com/xraph/cascade/store/redis"
	"github.com/xraph/cascade/store/sqlite"
)

// openStore selects a backend from a DSN: "memory", a postgres, redis,
// or mongodb URL, or a sqlite file path for anything else.
func openStore(ctx context.Context, dsn string, logger *slog.Logger) (cascade.Storer, error) {
	switch {
	case dsn == "memory":
		return memory.New(), nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn, postgres.WithLogger(logger))

	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redisstore.New(redis.NewClient(opts), redisstore.WithLogger(logger)), nil

	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return mongostore.New(dsn, mongoDatabase(dsn), mongostore.WithLogger(logger))

	default:
		return sqlite.New(dsn, sqlite.WithLogger(logger))
	}
}

// mongoDatabase extracts the database name from a mongodb URI path,
// falling back to "cascade".
func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "cascade"
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		return name
	}
	return "cascade"
}
