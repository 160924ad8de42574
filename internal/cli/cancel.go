package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a running analysis session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := api.Cancel(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("cancel session: %w", err)
		}
		fmt.Printf("Session %s cancelled (%d of %d tasks had completed)\n",
			snap.ID, snap.CompletedTasks, snap.TaskCount)
		return nil
	},
}
