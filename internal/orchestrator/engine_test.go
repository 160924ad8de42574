package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/agent"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/orchestrator"
)

// fakeAgent is a scriptable agent for pool tests.
type fakeAgent struct {
	id    string
	cap   models.Capability
	calls atomic.Int64
	exec  func(ctx context.Context, task models.AnalysisTask) models.AgentResult
}

func (f *fakeAgent) ID() string                    { return f.id }
func (f *fakeAgent) Capability() models.Capability { return f.cap }

func (f *fakeAgent) Execute(ctx context.Context, task models.AnalysisTask) models.AgentResult {
	f.calls.Add(1)
	if f.exec != nil {
		return f.exec(ctx, task)
	}
	return succeed(f, task)
}

func succeed(f *fakeAgent, task models.AnalysisTask) models.AgentResult {
	return models.AgentResult{
		TaskID:     task.ID,
		AgentID:    f.id,
		Capability: f.cap,
		Success:    true,
		Output:     map[string]any{"ok": true},
		Confidence: 0.9,
	}
}

func failWith(f *fakeAgent, task models.AnalysisTask, kind models.ErrorKind) models.AgentResult {
	return models.AgentResult{
		TaskID:     task.ID,
		AgentID:    f.id,
		Capability: f.cap,
		Success:    false,
		Error:      "simulated failure",
		ErrorKind:  kind,
	}
}

// fullRegistry registers one default fake per capability and returns
// them keyed by capability for per-test overrides.
func fullRegistry() (*agent.Registry, map[models.Capability]*fakeAgent) {
	reg := agent.NewRegistry()
	agents := map[models.Capability]*fakeAgent{
		models.CapabilityFileAnalysis:  {id: "file_analysis_agent", cap: models.CapabilityFileAnalysis},
		models.CapabilitySteganography: {id: "steganography_agent", cap: models.CapabilitySteganography},
		models.CapabilityCryptography:  {id: "cryptography_agent", cap: models.CapabilityCryptography},
		models.CapabilityIntelligence:  {id: "intelligence_agent", cap: models.CapabilityIntelligence},
	}
	for _, f := range agents {
		reg.Register(f)
	}
	return reg, agents
}

func testConfig() orchestrator.Config {
	return orchestrator.Config{
		PoolSize:     3,
		MaxAttempts:  3,
		TaskTimeout:  2 * time.Second,
		RetryBackoff: time.Millisecond,
	}
}

func waitTerminal(t *testing.T, o orchestrator.Orchestrator, id string) models.OrchestrationSession {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := o.Session(id)
		if err != nil {
			t.Fatalf("Session(%q): %v", id, err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session %q never reached a terminal state", id)
	return models.OrchestrationSession{}
}

func TestComprehensiveRunsEveryCapability(t *testing.T) {
	reg, agents := fullRegistry()

	var gotSiblings atomic.Int64
	agents[models.CapabilityIntelligence].exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		if results, ok := task.Parameters[agent.ResultsParameter].([]models.AgentResult); ok {
			gotSiblings.Store(int64(len(results)))
		}
		res := succeed(agents[models.CapabilityIntelligence], task)
		res.Output = map[string]any{
			"insights":    []string{"two files share key 2a"},
			"connections": []models.Connection{{Type: "shared_xor_key", Description: "XOR key 2a", Confidence: 1}},
		}
		return res
	}

	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisComprehensive,
		Priority:     models.PriorityNormal,
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if snap.TaskCount != 4 {
		t.Fatalf("task_count = %d, want 4", snap.TaskCount)
	}

	final := waitTerminal(t, e, snap.ID)
	if final.Status != models.SessionCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if final.CompletedTasks+final.FailedTasks != final.TaskCount {
		t.Errorf("completed %d + failed %d != task_count %d",
			final.CompletedTasks, final.FailedTasks, final.TaskCount)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	if got := gotSiblings.Load(); got != 3 {
		t.Errorf("intelligence agent saw %d sibling results, want 3", got)
	}
	if len(final.AgentsInvolved) != 4 {
		t.Errorf("agents_involved = %v, want all four", final.AgentsInvolved)
	}
	if len(final.Connections) != 1 {
		t.Errorf("connections = %v, want the shared_xor_key connection", final.Connections)
	}
	if len(final.Insights) == 0 {
		t.Error("insights is empty")
	}
}

func TestSingleFailingAgentStillCompletes(t *testing.T) {
	reg, agents := fullRegistry()
	agents[models.CapabilityCryptography].exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		return failWith(agents[models.CapabilityCryptography], task, models.ErrorKindInternal)
	}

	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisComprehensive,
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	final := waitTerminal(t, e, snap.ID)
	if final.Status != models.SessionCompleted {
		t.Fatalf("status = %s, want completed despite one failure", final.Status)
	}
	if !final.PartialFailure {
		t.Error("partial_failure = false, want true")
	}
	if final.CompletedTasks != 3 || final.FailedTasks != 1 {
		t.Errorf("completed/failed = %d/%d, want 3/1", final.CompletedTasks, final.FailedTasks)
	}
	if len(final.Insights) == 0 {
		t.Error("insights is empty, want degraded-but-present insights")
	}
}

func TestAllAgentsFailingFailsSession(t *testing.T) {
	reg, agents := fullRegistry()
	for _, f := range agents {
		f := f
		f.exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
			return failWith(f, task, models.ErrorKindInternal)
		}
	}

	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisComprehensive,
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	final := waitTerminal(t, e, snap.ID)
	if final.Status != models.SessionFailed {
		t.Fatalf("status = %s, want failed when every agent failed", final.Status)
	}
	if final.PartialFailure {
		t.Error("partial_failure = true, want false on total failure")
	}
}

func TestTargetedSingleCapability(t *testing.T) {
	reg, _ := fullRegistry()
	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "f.jpg",
		AnalysisType: models.AnalysisTargeted,
		Capabilities: []models.Capability{models.CapabilityCryptography},
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if snap.TaskCount != 1 {
		t.Fatalf("task_count = %d, want 1", snap.TaskCount)
	}

	final := waitTerminal(t, e, snap.ID)
	if final.Status != models.SessionCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	// The post-run synthesis pass must not surface as an involved agent.
	if len(final.AgentsInvolved) != 1 || final.AgentsInvolved[0] != "cryptography_agent" {
		t.Errorf("agents_involved = %v, want [cryptography_agent]", final.AgentsInvolved)
	}
}

func TestRequestContextReachesTasks(t *testing.T) {
	reg, agents := fullRegistry()
	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	var mu sync.Mutex
	seen := map[string]any{}
	agents[models.CapabilityCryptography].exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		mu.Lock()
		seen = task.Parameters
		mu.Unlock()
		return succeed(agents[models.CapabilityCryptography], task)
	}

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "f.bin",
		AnalysisType: models.AnalysisTargeted,
		Capabilities: []models.Capability{models.CapabilityCryptography},
		Context:      map[string]any{"max_key_length": "4"},
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	waitTerminal(t, e, snap.ID)

	mu.Lock()
	defer mu.Unlock()
	if got := seen["max_key_length"]; got != "4" {
		t.Errorf("task parameter max_key_length = %v, want 4", got)
	}
}

func TestRetriesRetryableFailures(t *testing.T) {
	reg, agents := fullRegistry()
	f := agents[models.CapabilityCryptography]
	f.exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		if f.calls.Load() < 3 {
			return failWith(f, task, models.ErrorKindToolUnavailable)
		}
		return succeed(f, task)
	}

	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisTargeted,
		Capabilities: []models.Capability{models.CapabilityCryptography},
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	final := waitTerminal(t, e, snap.ID)
	if final.Status != models.SessionCompleted {
		t.Fatalf("status = %s, want completed after retries", final.Status)
	}
	if got := f.calls.Load(); got != 3 {
		t.Errorf("agent executed %d times, want 3", got)
	}
}

func TestInvalidInputIsNotRetried(t *testing.T) {
	reg, agents := fullRegistry()
	f := agents[models.CapabilityCryptography]
	f.exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		return failWith(f, task, models.ErrorKindInvalidInput)
	}

	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisTargeted,
		Capabilities: []models.Capability{models.CapabilityCryptography},
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	waitTerminal(t, e, snap.ID)
	if got := f.calls.Load(); got != 1 {
		t.Errorf("agent executed %d times, want 1 for a non-retryable failure", got)
	}
}

func TestTaskTimeout(t *testing.T) {
	reg, agents := fullRegistry()
	f := agents[models.CapabilityCryptography]
	f.exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		time.Sleep(150 * time.Millisecond)
		return succeed(f, task)
	}

	cfg := testConfig()
	cfg.MaxAttempts = 2
	cfg.TaskTimeout = 20 * time.Millisecond
	e := orchestrator.NewEngine(reg, cfg, nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisTargeted,
		Capabilities: []models.Capability{models.CapabilityCryptography},
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	final := waitTerminal(t, e, snap.ID)
	if final.Status != models.SessionFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	var timeoutResults int
	for _, r := range final.Results {
		if r.ErrorKind == models.ErrorKindTimeout {
			timeoutResults++
		}
	}
	if timeoutResults != 1 {
		t.Errorf("timeout results = %d, want 1", timeoutResults)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("agent executed %d times, want 2 (timeout is retryable)", got)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	reg, agents := fullRegistry()
	var active, peak atomic.Int64
	for _, f := range agents {
		f := f
		f.exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			return succeed(f, task)
		}
	}

	cfg := testConfig()
	cfg.PoolSize = 2
	e := orchestrator.NewEngine(reg, cfg, nil, nil)
	defer e.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
			FilePath:     "/evidence/f.bin",
			AnalysisType: models.AnalysisComprehensive,
		})
		if err != nil {
			t.Fatalf("Orchestrate: %v", err)
		}
		ids = append(ids, snap.ID)
	}
	for _, id := range ids {
		waitTerminal(t, e, id)
	}

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrent executions = %d, want <= pool size 2", got)
	}
}

func TestCancelRefusesPendingTasks(t *testing.T) {
	reg, agents := fullRegistry()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	f := agents[models.CapabilityFileAnalysis]
	f.exec = func(_ context.Context, task models.AnalysisTask) models.AgentResult {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return succeed(f, task)
	}

	cfg := testConfig()
	cfg.PoolSize = 1
	e := orchestrator.NewEngine(reg, cfg, nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisComprehensive,
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	<-started
	if _, err := e.Cancel(snap.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	final := waitTerminal(t, e, snap.ID)
	if !final.Cancelled {
		t.Error("cancelled = false, want true")
	}
	if final.CompletedTasks+final.FailedTasks != final.TaskCount {
		t.Errorf("completed %d + failed %d != task_count %d",
			final.CompletedTasks, final.FailedTasks, final.TaskCount)
	}
	// Only the in-flight file analysis task may have run.
	if final.CompletedTasks != 1 {
		t.Errorf("completed_tasks = %d, want 1", final.CompletedTasks)
	}
	for c, other := range agents {
		if c == models.CapabilityFileAnalysis {
			continue
		}
		if got := other.calls.Load(); got != 0 {
			t.Errorf("%s executed %d times after cancel, want 0", other.id, got)
		}
	}
}

func TestSubscribeStreamsUntilTerminal(t *testing.T) {
	reg, _ := fullRegistry()
	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
		FilePath:     "/evidence/f.bin",
		AnalysisType: models.AnalysisComprehensive,
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	ch, cancel, err := e.Subscribe(snap.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	var last models.OrchestrationSession
	var updates int
	for update := range ch {
		last = update
		updates++
	}
	if updates == 0 {
		t.Fatal("no updates received")
	}
	if !last.Status.Terminal() {
		t.Errorf("final streamed status = %s, want terminal", last.Status)
	}
}

func TestSessionNotFound(t *testing.T) {
	reg, _ := fullRegistry()
	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	if _, err := e.Session("nope"); !errors.Is(err, orchestrator.ErrSessionNotFound) {
		t.Errorf("Session err = %v, want ErrSessionNotFound", err)
	}
	if _, err := e.Cancel("nope"); !errors.Is(err, orchestrator.ErrSessionNotFound) {
		t.Errorf("Cancel err = %v, want ErrSessionNotFound", err)
	}
	if _, _, err := e.Subscribe("nope"); !errors.Is(err, orchestrator.ErrSessionNotFound) {
		t.Errorf("Subscribe err = %v, want ErrSessionNotFound", err)
	}
}

func TestRequestValidation(t *testing.T) {
	reg, _ := fullRegistry()
	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	tests := []struct {
		name string
		req  orchestrator.Request
	}{
		{"missing file path", orchestrator.Request{AnalysisType: models.AnalysisComprehensive}},
		{"unknown analysis type", orchestrator.Request{FilePath: "f", AnalysisType: "exhaustive"}},
		{"targeted without capabilities", orchestrator.Request{FilePath: "f", AnalysisType: models.AnalysisTargeted}},
		{"unknown capability", orchestrator.Request{
			FilePath:     "f",
			AnalysisType: models.AnalysisTargeted,
			Capabilities: []models.Capability{"phrenology"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Orchestrate(context.Background(), tt.req); !errors.Is(err, orchestrator.ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestConcurrentSessionsSameFile(t *testing.T) {
	reg, _ := fullRegistry()
	e := orchestrator.NewEngine(reg, testConfig(), nil, nil)
	defer e.Close()

	var wg sync.WaitGroup
	ids := make([]string, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := e.Orchestrate(context.Background(), orchestrator.Request{
				FilePath:     "/evidence/same.bin",
				AnalysisType: models.AnalysisTargeted,
				Capabilities: []models.Capability{models.CapabilityFileAnalysis},
			})
			if err != nil {
				t.Errorf("Orchestrate: %v", err)
				return
			}
			ids[i] = snap.ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
		final := waitTerminal(t, e, id)
		if final.Status != models.SessionCompleted {
			t.Errorf("session %s status = %s, want completed", id, final.Status)
		}
	}
}
