package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/client"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/graph"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

var (
	graphMinEntropy float64
	graphMaxNodes   int
	graphFilters    []string
	graphJSON       bool
	graphDB         string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build and print the correlation graph",
	Long: `Build the correlation graph over the artifact store.

Examples:
  ark graph
  ark graph --min-entropy 7.0 --max-nodes 50
  ark graph --filter signature --filter xor_pattern --json
  ark graph --db forensic.db   # query the store without a daemon`,
	Args: cobra.NoArgs,
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().Float64Var(&graphMinEntropy, "min-entropy", 0, "minimum file entropy to include")
	graphCmd.Flags().IntVar(&graphMaxNodes, "max-nodes", 0, "maximum number of file nodes")
	graphCmd.Flags().StringSliceVar(&graphFilters, "filter", nil, "node kinds to include (repeatable)")
	graphCmd.Flags().BoolVar(&graphJSON, "json", false, "print the full graph as JSON")
	graphCmd.Flags().StringVar(&graphDB, "db", "", "query an artifact database directly instead of the daemon")
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var (
		g   models.Graph
		err error
	)
	if graphDB != "" {
		var b *graph.Builder
		var cleanup func()
		b, cleanup, err = localBuilder(ctx, graphDB)
		if err != nil {
			return err
		}
		defer cleanup()
		g, err = b.Build(ctx, graph.Params{
			MinEntropy: graphMinEntropy,
			MaxNodes:   graphMaxNodes,
			Filters:    graphFilters,
		})
	} else {
		g, err = api.Graph(ctx, client.GraphParams{
			MinEntropy: graphMinEntropy,
			MaxNodes:   graphMaxNodes,
			Filters:    graphFilters,
		})
	}
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	if graphJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	}

	cached := ""
	if g.Stats.FromCache {
		cached = " (cached)"
	}
	fmt.Printf("Graph: %d nodes, %d edges, built in %dms%s\n",
		g.Stats.NodeCount, g.Stats.EdgeCount, g.Stats.BuildTimeMs, cached)

	fmt.Printf("\n%-28s %-16s %s\n", "ID", "KIND", "LABEL")
	fmt.Println("--------------------------------------------------------------------")
	for _, n := range g.Nodes {
		fmt.Printf("%-28s %-16s %s\n", n.ID, n.Kind, n.Label)
	}

	return nil
}
