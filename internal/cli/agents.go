package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the registered analysis agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, err := api.Agents(context.Background())
		if err != nil {
			return fmt.Errorf("list agents: %w", err)
		}

		fmt.Printf("%-26s %s\n", "ID", "CAPABILITY")
		fmt.Println("---------------------------------------------")
		for _, a := range agents {
			fmt.Printf("%-26s %s\n", a.ID, a.Capability)
		}
		return nil
	},
}

var execParams []string

var execCmd = &cobra.Command{
	Use:   "exec <agent-id> <file-path>",
	Short: "Run a single agent directly, outside any session",
	Long: `Run one agent against a file and print its raw result as JSON.

Examples:
  ark exec cryptography_agent /evidence/dump.bin
  ark exec cryptography_agent /evidence/dump.bin -p max_key_length=4`,
	Args: cobra.ExactArgs(2),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringSliceVarP(&execParams, "param", "p", nil, "agent parameter as key=value (repeatable)")
}

func runExec(cmd *cobra.Command, args []string) error {
	params := make(map[string]any, len(execParams))
	for _, p := range execParams {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		params[key] = value
	}

	res, err := api.ExecuteAgent(context.Background(), args[0], args[1], params)
	if err != nil {
		return fmt.Errorf("execute agent: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
