package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

var pathDB string

var pathCmd = &cobra.Command{
	Use:   "path <file-id> <file-id>",
	Short: "Show the direct connections between two files",
	Args:  cobra.ExactArgs(2),
	RunE:  runPath,
}

func init() {
	pathCmd.Flags().StringVar(&pathDB, "db", "", "query an artifact database directly instead of the daemon")
}

func runPath(cmd *cobra.Command, args []string) error {
	fileA, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid file id %q", args[0])
	}
	fileB, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid file id %q", args[1])
	}

	ctx := context.Background()

	var conns []models.PathConnection
	if pathDB != "" {
		b, cleanup, berr := localBuilder(ctx, pathDB)
		if berr != nil {
			return berr
		}
		defer cleanup()
		conns, err = b.PathBetween(ctx, fileA, fileB)
	} else {
		conns, err = api.Path(ctx, fileA, fileB)
	}
	if err != nil {
		return fmt.Errorf("find path: %w", err)
	}

	if len(conns) == 0 {
		fmt.Printf("No direct connections between files %d and %d\n", fileA, fileB)
		return nil
	}

	fmt.Printf("Files %d and %d share:\n", fileA, fileB)
	for _, c := range conns {
		fmt.Printf("  %-18s %s\n", c.ConnectionType, c.SharedElement)
	}
	return nil
}
