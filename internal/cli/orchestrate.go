package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/client"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

var (
	orchestrateType         string
	orchestratePriority     string
	orchestrateCapabilities []string
	orchestrateContext      []string
	orchestrateWatch        bool
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate <file-path>",
	Short: "Submit a file for multi-agent analysis",
	Long: `Submit a file for analysis and print the session ID.

Examples:
  ark orchestrate /evidence/dump.bin
  ark orchestrate /evidence/dump.bin --type targeted --capability cryptography
  ark orchestrate /evidence/dump.bin --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runOrchestrate,
}

func init() {
	orchestrateCmd.Flags().StringVar(&orchestrateType, "type", "comprehensive", "analysis type (comprehensive, targeted, collaborative)")
	orchestrateCmd.Flags().StringVar(&orchestratePriority, "priority", "normal", "task priority (low, normal, high, urgent)")
	orchestrateCmd.Flags().StringSliceVar(&orchestrateCapabilities, "capability", nil, "capability to run (targeted only, repeatable)")
	orchestrateCmd.Flags().StringSliceVar(&orchestrateContext, "context", nil, "task parameter as key=value (repeatable)")
	orchestrateCmd.Flags().BoolVarP(&orchestrateWatch, "watch", "w", false, "stream progress until the session finishes")
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	taskCtx := make(map[string]any, len(orchestrateContext))
	for _, p := range orchestrateContext {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid context entry %q, expected key=value", p)
		}
		taskCtx[key] = value
	}

	snap, err := api.Orchestrate(ctx, client.OrchestrateRequest{
		FilePath:     args[0],
		AnalysisType: orchestrateType,
		Priority:     orchestratePriority,
		Capabilities: orchestrateCapabilities,
		Context:      taskCtx,
	})
	if err != nil {
		return fmt.Errorf("orchestrate: %w", err)
	}

	fmt.Printf("Session %s started (%s, %d tasks)\n", snap.ID, snap.AnalysisType, snap.TaskCount)

	if !orchestrateWatch {
		fmt.Printf("Follow with: ark status %s\n", snap.ID)
		return nil
	}

	return watchSession(ctx, snap.ID)
}

func watchSession(ctx context.Context, id string) error {
	lastProgress := -1
	err := api.Stream(ctx, id, func(snap models.OrchestrationSession) {
		if snap.Progress == lastProgress && !snap.Status.Terminal() {
			return
		}
		lastProgress = snap.Progress
		fmt.Printf("  %3d%%  %-10s %s\n", snap.Progress, snap.Status, snap.CurrentPhase)
		if snap.Status.Terminal() {
			printSessionSummary(snap)
		}
	})
	if err != nil {
		return fmt.Errorf("stream session: %w", err)
	}
	return nil
}

func printSessionSummary(snap models.OrchestrationSession) {
	fmt.Println()
	fmt.Printf("Session %s: %s", snap.ID, snap.Status)
	if snap.PartialFailure {
		fmt.Print(" (partial failure)")
	}
	if snap.Cancelled {
		fmt.Print(" (cancelled)")
	}
	fmt.Println()
	fmt.Printf("  Tasks:  %d completed, %d failed of %d\n", snap.CompletedTasks, snap.FailedTasks, snap.TaskCount)
	fmt.Printf("  Agents: %s\n", strings.Join(snap.AgentsInvolved, ", "))

	if len(snap.Insights) > 0 {
		fmt.Println("  Insights:")
		for _, in := range snap.Insights {
			fmt.Printf("    - %s\n", in)
		}
	}
	if len(snap.Connections) > 0 {
		fmt.Println("  Connections:")
		for _, conn := range snap.Connections {
			fmt.Printf("    - [%s] %s (%.2f)\n", conn.Type, conn.Description, conn.Confidence)
		}
	}
}
