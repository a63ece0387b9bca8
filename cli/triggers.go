package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/trigger"
)

// NewTriggersCmd manages recurring chain starts.
func NewTriggersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triggers",
		Short: "Manage recurring chain starts",
	}
	cmd.AddCommand(
		newTriggersListCmd(),
		newTriggersAddCmd(),
		newTriggersPauseCmd(),
		newTriggersResumeCmd(),
		newTriggersDeleteCmd(),
	)
	return cmd
}

func newTriggersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := apiClient(cmd).ListTriggers(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No triggers registered.")
				return nil
			}
			for _, e := range entries {
				state := "enabled"
				if !e.Enabled {
					state = "paused"
				}
				nextRun := "-"
				if e.NextRunAt != nil {
					nextRun = humanize.Time(*e.NextRunAt)
				}
				fmt.Printf("%s | %-20s | %-14s | %s:%-24s | %-8s | next run %s\n",
					e.ID, e.Name, e.Schedule, e.Kind, e.Job, state, nextRun)
			}
			return nil
		},
	}
}

func newTriggersAddCmd() *cobra.Command {
	var (
		name       string
		scheduleEx string
		kindStr    string
		job        string
		paramsJSON string
		paused     bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := cascade.ParseKind(kindStr)
			if err != nil {
				return err
			}
			var params cascade.Params
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid params json: %w", err)
				}
			}

			entry, err := apiClient(cmd).RegisterTrigger(cmd.Context(), &trigger.Entry{
				Name:     name,
				Schedule: scheduleEx,
				Kind:     kind,
				Job:      job,
				Params:   params,
				Enabled:  !paused,
			})
			if err != nil {
				return err
			}
			next := "-"
			if entry.NextRunAt != nil {
				next = humanize.Time(*entry.NextRunAt)
			}
			fmt.Printf("Trigger registered: %s (%s, next run %s)\n", entry.Name, entry.ID, next)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "unique trigger name")
	cmd.Flags().StringVar(&scheduleEx, "schedule", "", `cron expression or descriptor ("0 3 * * *", "@hourly", "@every 10m")`)
	cmd.Flags().StringVar(&kindStr, "kind", "batch", "engine kind (batch, queueable)")
	cmd.Flags().StringVar(&job, "job", "", "job to start")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "chain parameters as JSON")
	cmd.Flags().BoolVar(&paused, "paused", false, "register paused")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newTriggersPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <trigger-id>",
		Short: "Pause a trigger",
		Args:  cobra.ExactArgs(1),
		RunE:  setTriggerEnabled(false),
	}
}

func newTriggersResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <trigger-id>",
		Short: "Resume a trigger; the next run is computed from now",
		Args:  cobra.ExactArgs(1),
		RunE:  setTriggerEnabled(true),
	}
}

func setTriggerEnabled(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		tid, err := id.ParseTriggerID(args[0])
		if err != nil {
			return err
		}
		entry, err := apiClient(cmd).SetTriggerEnabled(cmd.Context(), tid, enabled)
		if err != nil {
			return err
		}
		if enabled && entry.NextRunAt != nil {
			fmt.Printf("Trigger resumed: %s (next run %s)\n", entry.Name, humanize.Time(*entry.NextRunAt))
		} else {
			fmt.Printf("Trigger paused: %s\n", entry.Name)
		}
		return nil
	}
}

func newTriggersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trigger-id>",
		Short: "Delete a trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := id.ParseTriggerID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient(cmd).DeleteTrigger(cmd.Context(), tid); err != nil {
				return err
			}
			fmt.Printf("Trigger deleted: %s\n", tid)
			return nil
		},
	}
}
