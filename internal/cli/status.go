package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "List or inspect analysis sessions",
	Long: `List all analysis sessions or inspect a specific one by ID.

Examples:
  ark status           # List all sessions
  ark status ab12cd34  # Show details for session ab12cd34`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showSession(ctx, args[0])
	}
	return listSessions(ctx)
}

func listSessions(ctx context.Context) error {
	sessions, err := api.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found")
		return nil
	}

	fmt.Printf("%-10s %-14s %-10s %-9s %-9s %s\n", "ID", "TYPE", "STATUS", "PROGRESS", "STARTED", "FILE")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, s := range sessions {
		progress := fmt.Sprintf("%d%%", s.Progress)
		started := s.StartedAt.Format("15:04:05")
		fmt.Printf("%-10s %-14s %-10s %-9s %-9s %s\n", s.ID, s.AnalysisType, s.Status, progress, started, s.FilePath)
	}

	return nil
}

func showSession(ctx context.Context, id string) error {
	snap, err := api.Session(ctx, id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	fmt.Printf("Session:  %s\n", snap.ID)
	fmt.Printf("File:     %s\n", snap.FilePath)
	fmt.Printf("Type:     %s\n", snap.AnalysisType)
	fmt.Printf("Status:   %s (%d%%)\n", snap.Status, snap.Progress)
	fmt.Printf("Phase:    %s\n", snap.CurrentPhase)
	fmt.Printf("Started:  %s\n", snap.StartedAt.Format("2006-01-02 15:04:05"))
	if snap.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", snap.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	if len(snap.Results) > 0 {
		fmt.Println("\nResults:")
		for _, r := range snap.Results {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			agent := r.AgentID
			if agent == "" {
				agent = "synthesis"
			}
			fmt.Printf("  %-24s %-8s confidence %.2f  %s\n", agent, status, r.Confidence, r.ExecutionTime.Round(time.Millisecond))
			if r.Error != "" {
				fmt.Printf("    error: %s\n", r.Error)
			}
		}
	}

	if snap.Status.Terminal() {
		printSessionSummary(snap)
	}
	return nil
}
