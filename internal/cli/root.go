// Package cli provides the command-line interface for the Ark daemon.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string

	// API client, initialized before any command runs.
	api *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ark",
	Short: "Forensic analysis orchestration client",
	Long: `Ark drives a running arkd daemon: submit files for multi-agent
forensic analysis, follow sessions as they run, and explore the
correlation graph built from extracted artifacts.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		api = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "arkd endpoint (default $ARK_SERVER_URL or http://localhost:8001)")

	rootCmd.AddCommand(orchestrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(statsCmd)
}
