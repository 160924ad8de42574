package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// Stub is a deterministic Orchestrator for disconnected or demo
// operation: every session completes synchronously with canned results
// and no agents, tools, or datastore are touched.
type Stub struct {
	mu       sync.RWMutex
	seq      int
	sessions map[string]models.OrchestrationSession
}

// NewStub builds the demo orchestrator.
func NewStub() *Stub {
	return &Stub{sessions: make(map[string]models.OrchestrationSession)}
}

var stubAgentIDs = map[models.Capability]string{
	models.CapabilityFileAnalysis:  "file_analysis_agent",
	models.CapabilitySteganography: "steganography_agent",
	models.CapabilityCryptography:  "cryptography_agent",
	models.CapabilityIntelligence:  "intelligence_agent",
}

// Orchestrate returns a session that is already complete. Output values
// are fixed so consecutive runs for the same request are identical
// apart from the session id.
func (st *Stub) Orchestrate(_ context.Context, req Request) (models.OrchestrationSession, error) {
	caps, err := req.validate()
	if err != nil {
		return models.OrchestrationSession{}, err
	}

	st.mu.Lock()
	st.seq++
	id := fmt.Sprintf("demo-%04d", st.seq)
	st.mu.Unlock()

	now := time.Now()
	snap := models.OrchestrationSession{
		ID:           id,
		FilePath:     req.FilePath,
		AnalysisType: req.AnalysisType,
		Priority:     req.Priority,
		Status:       models.SessionCompleted,
		Progress:     100,
		CurrentPhase: string(models.SessionCompleted),
		TaskCount:    len(caps),
		StartedAt:    now,
		CompletedAt:  &now,
	}
	for i, c := range caps {
		agentID := stubAgentIDs[c]
		snap.CompletedTasks++
		snap.AgentsInvolved = append(snap.AgentsInvolved, agentID)
		snap.Results = append(snap.Results, models.AgentResult{
			TaskID:        fmt.Sprintf("%s-t%d", id, i+1),
			AgentID:       agentID,
			Capability:    c,
			Success:       true,
			Output:        stubOutput(c, req.FilePath),
			Confidence:    0.8,
			ExecutionTime: 120 * time.Millisecond,
		})
	}
	snap.Insights = []string{
		fmt.Sprintf("%d of %d analyses completed for %s", len(caps), len(caps), req.FilePath),
		"demo mode: results are canned, not derived from the datastore",
	}

	st.mu.Lock()
	st.sessions[id] = snap
	st.mu.Unlock()
	return snap, nil
}

func stubOutput(c models.Capability, filePath string) map[string]any {
	switch c {
	case models.CapabilityFileAnalysis:
		return map[string]any{"entropy": 7.2, "is_binary": true, "suspicion_score": 6.5}
	case models.CapabilitySteganography:
		return map[string]any{"has_patterns": true, "pattern_count": 2, "source": "demo"}
	case models.CapabilityCryptography:
		return map[string]any{"candidate_count": 1, "candidates": []map[string]any{
			{"key": "2a", "key_type": "single_byte", "score": 8.5},
		}}
	default:
		return map[string]any{"insights": []string{"demo analysis of " + filePath}}
	}
}

// Session returns the snapshot for id.
func (st *Stub) Session(id string) (models.OrchestrationSession, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	snap, ok := st.sessions[id]
	if !ok {
		return models.OrchestrationSession{}, ErrSessionNotFound
	}
	return snap, nil
}

// Sessions returns all demo sessions, most recent first.
func (st *Stub) Sessions() []models.OrchestrationSession {
	st.mu.RLock()
	defer st.mu.RUnlock()
	snaps := make([]models.OrchestrationSession, 0, len(st.sessions))
	for _, snap := range st.sessions {
		snaps = append(snaps, snap)
	}
	slices.SortFunc(snaps, func(a, b models.OrchestrationSession) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return snaps
}

// Cancel is a no-op: demo sessions complete synchronously.
func (st *Stub) Cancel(id string) (models.OrchestrationSession, error) {
	return st.Session(id)
}

// Subscribe emits the final snapshot and closes immediately.
func (st *Stub) Subscribe(id string) (<-chan models.OrchestrationSession, func(), error) {
	snap, err := st.Session(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan models.OrchestrationSession, 1)
	ch <- snap
	close(ch)
	return ch, func() {}, nil
}

// Close is a no-op.
func (st *Stub) Close() {}
