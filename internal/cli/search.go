package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

var (
	searchKind string
	searchDB   string
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search artifacts across the store",
	Long: `Search file paths, signatures, XOR patterns, and suspicious
strings for a substring.

Examples:
  ark search flag
  ark search zip --kind signatures
  ark search flag --db forensic.db   # query the store without a daemon`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "all", "artifact kind (all, files, signatures, xor_patterns, strings)")
	searchCmd.Flags().StringVar(&searchDB, "db", "", "query an artifact database directly instead of the daemon")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var (
		res models.SearchResults
		err error
	)
	if searchDB != "" {
		b, cleanup, berr := localBuilder(ctx, searchDB)
		if berr != nil {
			return berr
		}
		defer cleanup()
		res, err = b.Search(ctx, args[0], searchKind)
	} else {
		res, err = api.Search(ctx, args[0], searchKind)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	total := len(res.Files) + len(res.Signatures) + len(res.XorPatterns) + len(res.Strings)
	if total == 0 {
		fmt.Println("No matches found")
		return nil
	}

	if len(res.Files) > 0 {
		fmt.Printf("Files (%d):\n", len(res.Files))
		for _, f := range res.Files {
			fmt.Printf("  %6d  %-8.3f %s\n", f.ID, f.Entropy, f.Path)
		}
	}
	if len(res.Signatures) > 0 {
		fmt.Printf("Signatures (%d):\n", len(res.Signatures))
		for _, s := range res.Signatures {
			fmt.Printf("  file %-6d %s\n", s.FileID, s.SignatureName)
		}
	}
	if len(res.XorPatterns) > 0 {
		fmt.Printf("XOR patterns (%d):\n", len(res.XorPatterns))
		for _, x := range res.XorPatterns {
			fmt.Printf("  file %-6d key=%s type=%s score=%.2f\n", x.FileID, x.Key, x.KeyType, x.PlaintextScore)
		}
	}
	if len(res.Strings) > 0 {
		fmt.Printf("Strings (%d):\n", len(res.Strings))
		for _, s := range res.Strings {
			fmt.Printf("  file %-6d %q\n", s.FileID, s.Content)
		}
	}

	return nil
}
