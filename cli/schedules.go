package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xraph/cascade/id"
)

// NewSchedulesCmd inspects pending activations: delayed handoffs, retry
// backoffs, and deferred starts waiting to fire.
func NewSchedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect pending activations",
	}
	cmd.AddCommand(newSchedulesListCmd(), newSchedulesCancelCmd())
	return cmd
}

func newSchedulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending activations, oldest eligibility first",
		RunE: func(cmd *cobra.Command, args []string) error {
			acts, err := apiClient(cmd).ListActivations(cmd.Context())
			if err != nil {
				return err
			}
			if len(acts) == 0 {
				fmt.Println("No pending activations.")
				return nil
			}
			for _, a := range acts {
				fmt.Printf("%s | %-9s | %-24s | chain=%s | %-8s | fires %s\n",
					a.ID, a.Kind, a.Job, a.ChainID, a.Reason, humanize.Time(a.EligibleAt))
			}
			return nil
		},
	}
}

func newSchedulesCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <schedule-id>",
		Short: "Cancel a pending activation; its chain never resumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := id.ParseScheduleID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient(cmd).CancelActivation(cmd.Context(), sid); err != nil {
				return err
			}
			fmt.Printf("Activation cancelled: %s\n", sid)
			return nil
		},
	}
}
