package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/deadletter"
	"github.com/xraph/cascade/id"
)

// NewDeadLettersCmd manages dead-lettered chains.
func NewDeadLettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletters",
		Aliases: []string{"dlq"},
		Short:   "Manage dead-lettered chains",
	}
	cmd.AddCommand(
		newDeadLettersListCmd(),
		newDeadLettersShowCmd(),
		newDeadLettersReplayCmd(),
		newDeadLettersPurgeCmd(),
	)
	return cmd
}

func newDeadLettersListCmd() *cobra.Command {
	var (
		kindStr string
		limit   int
		offset  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest abort first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := deadletter.ListOpts{Limit: limit, Offset: offset}
			if kindStr != "" {
				kind, err := cascade.ParseKind(kindStr)
				if err != nil {
					return err
				}
				opts.Kind = kind
			}

			entries, err := apiClient(cmd).ListDeadLetters(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No dead letters.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s | %-9s | %-24s | attempts=%d | aborted %s | %s\n",
					e.ID, e.Kind, e.Job, e.Attempts, humanize.Time(e.AbortedAt), truncate(e.Error, 48))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindStr, "kind", "", "filter by kind (batch, queueable)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	return cmd
}

func newDeadLettersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one dead letter as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := id.ParseDeadLetterID(args[0])
			if err != nil {
				return err
			}
			entry, err := apiClient(cmd).GetDeadLetter(cmd.Context(), entryID)
			if err != nil {
				return err
			}
			return printJSON(entry)
		},
	}
}

func newDeadLettersReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <entry-id>",
		Short: "Start a fresh chain from a dead letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entryID, err := id.ParseDeadLetterID(args[0])
			if err != nil {
				return err
			}
			chainID, err := apiClient(cmd).ReplayDeadLetter(cmd.Context(), entryID)
			if err != nil {
				return err
			}
			fmt.Printf("Chain started: %s\n", chainID)
			return nil
		},
	}
}

func newDeadLettersPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove old dead letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			purged, err := apiClient(cmd).PurgeDeadLetters(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("Purged %d dead letters.\n", purged)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 720*time.Hour, "purge entries aborted longer ago than this")
	return cmd
}

// truncate shortens s to max runes for single-line listings.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
