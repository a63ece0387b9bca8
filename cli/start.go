package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/cascade"
)

// NewStartCmd starts a chain at a configured link.
func NewStartCmd() *cobra.Command {
	var paramsJSON string

	cmd := &cobra.Command{
		Use:   "start <kind> <job>",
		Short: "Start a chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := cascade.ParseKind(args[0])
			if err != nil {
				return err
			}
			var params cascade.Params
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid params json: %w", err)
				}
			}

			att, err := apiClient(cmd).StartChain(cmd.Context(), kind, args[1], params)
			if err != nil {
				return err
			}
			fmt.Printf("Chain started: %s (job %s)\n", att.ChainID, att.Job)
			return nil
		},
	}
	cmd.Flags().StringVar(&paramsJSON, "params", "", "initial chain parameters as JSON")
	return cmd
}
