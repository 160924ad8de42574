package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daemon operation metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := api.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}

		uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)
		fmt.Printf("Uptime: %s\n\n", uptime)

		names := make([]string, 0, len(snap.Operations))
		for name := range snap.Operations {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("%-16s %8s %9s %10s %10s\n", "OPERATION", "COUNT", "FAILURES", "AVG MS", "MAX MS")
		fmt.Println("------------------------------------------------------------")
		for _, name := range names {
			op := snap.Operations[name]
			fmt.Printf("%-16s %8d %9d %10.1f %10d\n",
				name, op.Count, op.Failures, op.AvgTimeMs, op.MaxTimeMs)
		}
		return nil
	},
}
