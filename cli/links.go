package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/chain"
)

// NewLinksCmd manages link configs.
func NewLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Manage link configs",
	}
	cmd.AddCommand(
		newLinksListCmd(),
		newLinksGetCmd(),
		newLinksApplyCmd(),
		newLinksDeleteCmd(),
	)
	return cmd
}

func newLinksListCmd() *cobra.Command {
	var (
		kindStr    string
		activeOnly bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List link configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := chain.ListOpts{ActiveOnly: activeOnly}
			if kindStr != "" {
				kind, err := cascade.ParseKind(kindStr)
				if err != nil {
					return err
				}
				opts.Kind = kind
			}

			links, err := apiClient(cmd).ListLinks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(links) == 0 {
				fmt.Println("No link configs found.")
				return nil
			}
			for _, l := range links {
				next := l.Next
				if next == "" {
					next = "-"
				}
				state := "active"
				if !l.Active {
					state = "inactive"
				}
				fmt.Printf("%-9s | %-24s | next=%-24s | retries=%d | %-8s | updated %s\n",
					l.Kind, l.Job, next, l.MaxRetries, state, humanize.Time(l.UpdatedAt))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindStr, "kind", "", "filter by kind (batch, queueable)")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active configs")
	return cmd
}

func newLinksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <job>",
		Short: "Show one link config as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := cascade.ParseKind(args[0])
			if err != nil {
				return err
			}
			cfg, err := apiClient(cmd).GetLink(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func newLinksApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   `apply '{"kind":"batch","job":"extract","next":"transform","active":true}'`,
		Short: "Create or replace a link config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg chain.LinkConfig
			if err := json.Unmarshal([]byte(args[0]), &cfg); err != nil {
				return fmt.Errorf("invalid link config json: %w", err)
			}
			stored, err := apiClient(cmd).PutLink(cmd.Context(), &cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Link config applied: %s:%s\n", stored.Kind, stored.Job)
			return nil
		},
	}
}

func newLinksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <job>",
		Short: "Delete a link config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := cascade.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := apiClient(cmd).DeleteLink(cmd.Context(), kind, args[1]); err != nil {
				return err
			}
			fmt.Printf("Link config deleted: %s:%s\n", kind, args[1])
			return nil
		},
	}
}
