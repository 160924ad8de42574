package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
)

// evidenceTypes is how many independent evidence classes the
// intelligence agent weighs when scoring a connection.
const evidenceTypes = 3

// correlationLimit bounds how many peer files one shared element can
// pull into a connection.
const correlationLimit = 50

// ResultsParameter is the task parameter key under which the
// orchestrator hands the other agents' results to this agent.
const ResultsParameter = "agent_results"

// IntelligenceAgent fuses the other agents' results with store-side
// correlation into cross-file connections and human-readable insights.
type IntelligenceAgent struct {
	store    *store.Store
	narrator *Narrator
	logger   *slog.Logger
}

// NewIntelligenceAgent creates the intelligence agent. narrator may be
// nil; insights are then fully deterministic.
func NewIntelligenceAgent(st *store.Store, narrator *Narrator, logger *slog.Logger) *IntelligenceAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntelligenceAgent{store: st, narrator: narrator, logger: logger}
}

var _ Agent = (*IntelligenceAgent)(nil)

func (a *IntelligenceAgent) ID() string { return "intelligence_agent" }

func (a *IntelligenceAgent) Capability() models.Capability { return models.CapabilityIntelligence }

// Execute synthesizes connections and insights for the task's file.
// Sibling results travel in task.Parameters[ResultsParameter].
func (a *IntelligenceAgent) Execute(ctx context.Context, task models.AnalysisTask) models.AgentResult {
	start := time.Now()

	var siblingResults []models.AgentResult
	if task.Parameters != nil {
		if rs, ok := task.Parameters[ResultsParameter].([]models.AgentResult); ok {
			siblingResults = rs
		}
	}

	if a.store == nil {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, "no datastore configured")
	}

	file, err := a.store.FileByPath(ctx, task.FilePath)
	if errors.Is(err, store.ErrNotFound) {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, fmt.Sprintf("file not in investigation: %s", task.FilePath))
	}
	if err != nil {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("lookup file: %v", err))
	}

	connections, err := a.discoverConnections(ctx, file)
	if err != nil {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("correlate: %v", err))
	}

	insights := a.deriveInsights(file, siblingResults, connections)

	if a.narrator != nil && len(connections) > 0 {
		summary, err := a.narrator.Narrate(ctx, file.Path, connections)
		if err != nil {
			a.logger.Warn("insight narration degraded", "file", file.Path, "error", err)
		} else if summary != "" {
			insights = append(insights, summary)
		}
	}

	confidence := 0.0
	for _, c := range connections {
		if c.Confidence > confidence {
			confidence = c.Confidence
		}
	}

	return models.AgentResult{
		TaskID:     task.ID,
		AgentID:    a.ID(),
		Capability: a.Capability(),
		Success:    true,
		Output: map[string]any{
			"file_id":     file.ID,
			"connections": connections,
			"insights":    insights,
		},
		Confidence:    confidence,
		ExecutionTime: time.Since(start),
	}
}

// discoverConnections finds other files tied to this one by shared
// signatures, successful XOR keys, or suspicious strings.
func (a *IntelligenceAgent) discoverConnections(ctx context.Context, file models.ForensicFile) ([]models.Connection, error) {
	// peerTypes tracks which evidence classes link each peer file, so a
	// connection corroborated by several classes scores higher.
	peerTypes := map[int64]map[string]bool{}
	note := func(peers []int64, evidenceType string) {
		for _, p := range peers {
			if peerTypes[p] == nil {
				peerTypes[p] = map[string]bool{}
			}
			peerTypes[p][evidenceType] = true
		}
	}

	type discovered struct {
		connType string
		element  string
		peers    []int64
	}
	var found []discovered

	sigs, err := a.store.SignaturesForFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	for _, sig := range sigs {
		peers, err := a.store.FilesWithSignature(ctx, sig.SignatureName, file.ID, correlationLimit)
		if err != nil {
			return nil, err
		}
		if len(peers) > 0 {
			note(peers, "shared_signature")
			found = append(found, discovered{"shared_signature", sig.SignatureName, peers})
		}
	}

	attempts, err := a.store.XorAttemptsForFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	for _, attempt := range attempts {
		if !attempt.Successful() || attempt.PlaintextScore < retainThreshold {
			continue
		}
		peers, err := a.store.FilesWithXorKey(ctx, attempt.Key, file.ID, correlationLimit)
		if err != nil {
			return nil, err
		}
		if len(peers) > 0 {
			note(peers, "shared_xor_key")
			found = append(found, discovered{"shared_xor_key", attempt.Key, peers})
		}
	}

	strings, err := a.store.StringsForFile(ctx, file.ID, 200)
	if err != nil {
		return nil, err
	}
	for _, so := range strings {
		if !so.IsSuspicious {
			continue
		}
		peers, err := a.store.FilesWithSuspiciousString(ctx, so.Content, file.ID, correlationLimit)
		if err != nil {
			return nil, err
		}
		if len(peers) > 0 {
			note(peers, "shared_string")
			found = append(found, discovered{"shared_string", so.Content, peers})
		}
	}

	var connections []models.Connection
	for _, d := range found {
		// Confidence: average corroboration across the linked peers.
		total := 0
		for _, p := range d.peers {
			total += len(peerTypes[p])
		}
		confidence := float64(total) / float64(len(d.peers)) / evidenceTypes

		fileIDs := append([]int64{file.ID}, d.peers...)
		sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

		connections = append(connections, models.Connection{
			Type: d.connType,
			Description: fmt.Sprintf("%s %q links %d files",
				describeConnType(d.connType), truncateElement(d.element), len(fileIDs)),
			Confidence: confidence,
			FileIDs:    fileIDs,
			Evidence:   []string{d.element},
		})
	}

	return connections, nil
}

// deriveInsights turns sibling agent results and connections into
// operator-facing findings.
func (a *IntelligenceAgent) deriveInsights(file models.ForensicFile, results []models.AgentResult, connections []models.Connection) []string {
	var insights []string

	for _, r := range results {
		if !r.Success {
			continue
		}
		switch r.Capability {
		case models.CapabilityFileAnalysis:
			if score, ok := r.Output["suspicion_score"].(float64); ok && score >= 7 {
				insights = append(insights, fmt.Sprintf("%s scores %.1f/10 on the suspicion heuristic", file.Path, score))
			}
			if entropy, ok := r.Output["entropy"].(float64); ok && entropy > 7.5 {
				insights = append(insights, fmt.Sprintf("%s has near-random entropy (%.2f bits/byte), consistent with encryption or compression", file.Path, entropy))
			}
		case models.CapabilityCryptography:
			if count, ok := r.Output["candidate_count"].(int); ok && count > 0 {
				insights = append(insights, fmt.Sprintf("%d plausible XOR decryption(s) found for %s", count, file.Path))
			}
		case models.CapabilitySteganography:
			if has, ok := r.Output["has_patterns"].(bool); ok && has {
				insights = append(insights, fmt.Sprintf("bit-level patterns detected in %s, possible LSB payload", file.Path))
			}
		}
	}

	if len(connections) > 0 {
		insights = append(insights, fmt.Sprintf("%s connects to other carved files through %d shared pattern(s)", file.Path, len(connections)))
	}

	if len(insights) == 0 {
		insights = append(insights, fmt.Sprintf("no cross-file correlations recorded for %s", file.Path))
	}

	return insights
}

func describeConnType(t string) string {
	switch t {
	case "shared_signature":
		return "signature"
	case "shared_xor_key":
		return "XOR key"
	case "shared_string":
		return "suspicious string"
	default:
		return t
	}
}

func truncateElement(s string) string {
	const max = 48
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
