// Package agent implements the analysis capabilities the orchestrator
// dispatches work to: file metadata analysis, steganography detection,
// XOR cryptanalysis, and cross-result intelligence synthesis.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// Sentinel errors for agent lookup and input validation.
var (
	// ErrUnknownCapability indicates no agent is registered for the capability.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrUnknownAgent indicates no agent is registered under the id.
	ErrUnknownAgent = errors.New("unknown agent")
)

// Agent is one analysis capability. Execute never returns a Go error for
// expected failure modes (missing tool, malformed input); those surface
// as AgentResult{Success: false} with a populated error message.
type Agent interface {
	ID() string
	Capability() models.Capability
	Execute(ctx context.Context, task models.AnalysisTask) models.AgentResult
}

// Registry maps capabilities and agent ids to registered agents.
type Registry struct {
	mu    sync.RWMutex
	byCap map[models.Capability]Agent
	byID  map[string]Agent
	order []Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		byCap: make(map[models.Capability]Agent),
		byID:  make(map[string]Agent),
	}
}

// Register adds an agent. Registering a second agent for the same
// capability replaces the first.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCap[a.Capability()]; !exists {
		r.order = append(r.order, a)
	} else {
		for i, existing := range r.order {
			if existing.Capability() == a.Capability() {
				delete(r.byID, existing.ID())
				r.order[i] = a
				break
			}
		}
	}
	r.byCap[a.Capability()] = a
	r.byID[a.ID()] = a
}

// ForCapability returns the agent registered for c.
func (r *Registry) ForCapability(c models.Capability) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byCap[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, c)
	}
	return a, nil
}

// ByID returns the agent registered under id.
func (r *Registry) ByID(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return a, nil
}

// List returns all registered agents in registration order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, len(r.order))
	copy(out, r.order)
	return out
}

// Capabilities returns the registered capability names, sorted.
func (r *Registry) Capabilities() []models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]models.Capability, 0, len(r.byCap))
	for c := range r.byCap {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// failure builds the standard expected-failure result.
func failure(task models.AnalysisTask, agentID string, cap models.Capability, start time.Time, kind models.ErrorKind, msg string) models.AgentResult {
	return models.AgentResult{
		TaskID:        task.ID,
		AgentID:       agentID,
		Capability:    cap,
		Success:       false,
		Confidence:    0,
		ExecutionTime: time.Since(start),
		Error:         msg,
		ErrorKind:     kind,
	}
}
