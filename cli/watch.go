package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

// NewWatchCmd streams lifecycle events to stdout until interrupted.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [topic...]",
		Short: "Stream lifecycle events",
		Long: `Stream lifecycle events from the server. With no topics the firehose is
followed; otherwise subscribe to any of: chains, triggers, firehose,
chain:<chain-id>, kind:<kind>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			events, err := apiClient(cmd).Watch(ctx, args...)
			if err != nil {
				return err
			}
			for evt := range events {
				fmt.Printf("%s  %-19s  %s\n",
					evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Data)
			}
			return nil
		},
	}
}
