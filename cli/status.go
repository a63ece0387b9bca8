package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd summarizes a running server.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd)
			ctx := cmd.Context()

			if err := c.Health(ctx); err != nil {
				return err
			}
			stats, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			acts, err := c.ListActivations(ctx)
			if err != nil {
				return err
			}
			dead, err := c.CountDeadLetters(ctx)
			if err != nil {
				return err
			}

			fmt.Println("Server Status: healthy")
			fmt.Printf("  %-22s %d\n", "batch in flight", stats.BatchInFlight)
			fmt.Printf("  %-22s %d\n", "queueable in flight", stats.QueueableInFlight)
			fmt.Printf("  %-22s %d\n", "batch chainables", len(stats.BatchChainables))
			fmt.Printf("  %-22s %d\n", "queueable chainables", len(stats.QueueChainables))
			fmt.Printf("  %-22s %d\n", "pending activations", len(acts))
			fmt.Printf("  %-22s %d\n", "dead letters", dead)
			return nil
		},
	}
}
