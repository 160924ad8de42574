// Package orchestrator schedules analysis tasks across the agent pool
// and tracks orchestration sessions end to end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidRequest is returned when an orchestration request fails validation.
	ErrInvalidRequest = errors.New("invalid orchestration request")
)

// Request describes one orchestration to run.
type Request struct {
	FilePath     string
	AnalysisType models.AnalysisType
	Priority     models.Priority
	// Capabilities selects the agents for targeted analysis.
	// Ignored for comprehensive and collaborative runs.
	Capabilities []models.Capability
	// Context carries caller-supplied parameters through to every task.
	Context map[string]any
}

// Orchestrator runs analysis sessions. Implementations are safe for
// concurrent use.
type Orchestrator interface {
	// Orchestrate starts a session and returns its initial snapshot.
	// Work continues asynchronously; poll Session or use Subscribe.
	Orchestrate(ctx context.Context, req Request) (models.OrchestrationSession, error)

	// Session returns the current snapshot of one session.
	Session(id string) (models.OrchestrationSession, error)

	// Sessions returns snapshots of all known sessions, most recent first.
	Sessions() []models.OrchestrationSession

	// Cancel stops scheduling the session's remaining pending tasks.
	// In-flight tasks run to completion or hit their own timeout.
	Cancel(id string) (models.OrchestrationSession, error)

	// Subscribe streams session snapshots after each state change. The
	// channel is closed once the session reaches a terminal state; the
	// returned func unsubscribes early.
	Subscribe(id string) (<-chan models.OrchestrationSession, func(), error)

	// Close stops the worker pool and waits for in-flight tasks.
	Close()
}

// validate checks a request and resolves the capability set to run.
func (r Request) validate() ([]models.Capability, error) {
	if r.FilePath == "" {
		return nil, fmt.Errorf("%w: file_path is required", ErrInvalidRequest)
	}
	if !r.AnalysisType.Valid() {
		return nil, fmt.Errorf("%w: unknown analysis_type", ErrInvalidRequest)
	}
	if r.AnalysisType != models.AnalysisTargeted {
		return models.AllCapabilities(), nil
	}
	if len(r.Capabilities) == 0 {
		return nil, fmt.Errorf("%w: targeted analysis requires at least one capability", ErrInvalidRequest)
	}
	caps := make([]models.Capability, 0, len(r.Capabilities))
	seen := map[models.Capability]bool{}
	for _, c := range r.Capabilities {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown capability %q", ErrInvalidRequest, c)
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		caps = append(caps, c)
	}
	return caps, nil
}
