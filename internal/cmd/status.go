package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibecode/playbook/internal/activity"
	"github.com/vibecode/playbook/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active runs recorded in the activity registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := activity.NewRegistry(config.ActivityFile())

		records, err := registry.List()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no active runs")
			return nil
		}

		for _, rec := range records {
			// Probing liveness also reclaims stale records.
			busy, _, err := registry.IsBusy(rec.SessionID)
			if err != nil {
				return err
			}
			state := "stale (reclaimed)"
			if busy {
				state = fmt.Sprintf("running since %s", rec.StartedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tpid %d\t%s\n", rec.SessionID, rec.PlaybookName, rec.PID, state)
			if busy && rec.CurrentDocument != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\t%s: %s\n", rec.CurrentDocument, rec.CurrentTask)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
