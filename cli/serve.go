package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/api"
	"github.com/xraph/cascade/engine"
	"github.com/xraph/cascade/platform/remote"
)

// NewServeCmd runs the Cascade server: both engines, the schedulers,
// and the management API. Without --executor, link attempts run on the
// in-process platform; with it, they are relayed to a remote executor
// service over WebSocket.
func NewServeCmd() *cobra.Command {
	var (
		listen      string
		storeDSN    string
		executorURL string
		token       string
		format      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cascade server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, storeDSN, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			copts := []cascade.Option{
				cascade.WithStore(st),
				cascade.WithLogger(logger),
			}
			if concurrency > 0 {
				copts = append(copts, cascade.WithConcurrency(concurrency))
			}
			c, err := cascade.New(copts...)
			if err != nil {
				return err
			}

			var eopts []engine.Option
			if executorURL != "" {
				bopts := []remote.Option{
					remote.WithLogger(logger),
					remote.WithFormat(format),
				}
				if token != "" {
					bopts = append(bopts, remote.WithToken(token))
				}
				eopts = append(eopts, engine.WithPlatform(remote.NewBridge(executorURL, bopts...)))
			}
			eng, err := engine.Build(c, eopts...)
			if err != nil {
				return err
			}

			if err := eng.Start(ctx); err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), c.Config().ShutdownTimeout)
				defer cancel()
				if err := eng.Stop(sctx); err != nil {
					logger.Error("engine stop", slog.String("error", err.Error()))
				}
			}()

			logger.Info("cascade server listening",
				slog.String("addr", listen),
				slog.String("store", storeDSN),
			)
			return api.NewServer(api.New(eng), listen).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", envOr("CASCADE_LISTEN", ":8080"), "HTTP listen address")
	cmd.Flags().StringVar(&storeDSN, "store", envOr("CASCADE_STORE", "cascade.db"), "store DSN: memory, a sqlite path, or a postgres/redis/mongodb URL")
	cmd.Flags().StringVar(&executorURL, "executor", envOr("CASCADE_EXECUTOR", ""), "remote executor websocket URL")
	cmd.Flags().StringVar(&token, "executor-token", os.Getenv("CASCADE_EXECUTOR_TOKEN"), "remote executor auth token")
	cmd.Flags().StringVar(&format, "executor-format", "json", "relay wire format: json or msgpack")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "in-process worker count (0 uses the default)")
	return cmd
}
