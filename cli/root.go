// Package cli implements the cascadectl command tree. The serve command
// runs a Cascade server; every other command talks to a running server
// through its management API.
package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/cascade/client"
)

// NewRootCmd builds the cascadectl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cascadectl",
		Short:        "Cascade chain orchestration",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("addr", envOr("CASCADE_ADDR", "http://localhost:8080"), "cascade server address")

	cmd.AddCommand(
		NewServeCmd(),
		NewLinksCmd(),
		NewStartCmd(),
		NewDeadLettersCmd(),
		NewSchedulesCmd(),
		NewTriggersCmd(),
		NewStatusCmd(),
		NewWatchCmd(),
	)
	return cmd
}

// apiClient builds a client from the root --addr flag.
func apiClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("addr")
	return client.New(addr, client.WithTimeout(30*time.Second))
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
