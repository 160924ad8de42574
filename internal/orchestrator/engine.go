package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/agent"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// Config tunes the engine's worker pool and retry behavior.
type Config struct {
	PoolSize     int
	MaxAttempts  int
	TaskTimeout  time.Duration
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 60 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

// Engine is the live Orchestrator: a bounded worker pool draining a
// priority queue of analysis tasks.
type Engine struct {
	registry *agent.Registry
	cfg      Config
	metrics  *metrics.Collector
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session

	queue *taskQueue
	wg    sync.WaitGroup
}

// session pairs the externally visible snapshot with scheduling state.
type session struct {
	mu   sync.RWMutex
	snap models.OrchestrationSession

	tasks []*models.AnalysisTask
	// deferred holds an intelligence task that waits for the other
	// tasks so it can consume their aggregated results.
	deferred *models.AnalysisTask
	// synthesize re-invokes the intelligence agent after all tasks
	// finish, outside the task accounting.
	synthesize bool
	finalizing bool
	finalized  bool

	subs    map[int]chan models.OrchestrationSession
	nextSub int
}

// NewEngine builds the live orchestrator and starts its worker pool.
func NewEngine(registry *agent.Registry, cfg Config, mc *metrics.Collector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		registry: registry,
		cfg:      cfg.withDefaults(),
		metrics:  mc,
		logger:   logger,
		sessions: make(map[string]*session),
		queue:    newTaskQueue(),
	}
	for i := 0; i < e.cfg.PoolSize; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Orchestrate validates the request, creates the session and enqueues
// its tasks. It never blocks on task execution.
func (e *Engine) Orchestrate(ctx context.Context, req Request) (models.OrchestrationSession, error) {
	caps, err := req.validate()
	if err != nil {
		return models.OrchestrationSession{}, err
	}

	now := time.Now()
	s := &session{
		snap: models.OrchestrationSession{
			ID:           uuid.New().String()[:8],
			FilePath:     req.FilePath,
			AnalysisType: req.AnalysisType,
			Priority:     req.Priority,
			Status:       models.SessionPending,
			CurrentPhase: "queued",
			TaskCount:    len(caps),
			StartedAt:    now,
		},
		subs: make(map[int]chan models.OrchestrationSession),
	}

	hasIntelligence := false
	for _, c := range caps {
		task := &models.AnalysisTask{
			ID:         uuid.New().String()[:8],
			SessionID:  s.snap.ID,
			Capability: c,
			FilePath:   req.FilePath,
			Priority:   req.Priority,
			Status:     models.TaskPending,
			Timeout:    e.cfg.TaskTimeout,
			CreatedAt:  now,
			Parameters: copyParams(req.Context),
		}
		s.tasks = append(s.tasks, task)
		if c == models.CapabilityIntelligence {
			hasIntelligence = true
			// Comprehensive runs hold intelligence back until the other
			// agents finish so it can correlate their results.
			if req.AnalysisType == models.AnalysisComprehensive && len(caps) > 1 {
				s.deferred = task
			}
		}
	}
	s.synthesize = req.AnalysisType == models.AnalysisCollaborative ||
		(req.AnalysisType == models.AnalysisTargeted && !hasIntelligence)

	e.mu.Lock()
	e.sessions[s.snap.ID] = s
	e.mu.Unlock()

	for _, task := range s.tasks {
		if task == s.deferred {
			continue
		}
		e.queue.push(s, task)
	}

	e.logger.Info("orchestration started",
		"session_id", s.snap.ID,
		"file", req.FilePath,
		"analysis_type", req.AnalysisType,
		"priority", req.Priority.String(),
		"tasks", len(s.tasks))

	return s.snapshot(), nil
}

// Session returns the current snapshot of one session.
func (e *Engine) Session(id string) (models.OrchestrationSession, error) {
	e.mu.RLock()
	s := e.sessions[id]
	e.mu.RUnlock()
	if s == nil {
		return models.OrchestrationSession{}, ErrSessionNotFound
	}
	return s.snapshot(), nil
}

// Sessions returns all sessions, most recent first.
func (e *Engine) Sessions() []models.OrchestrationSession {
	e.mu.RLock()
	all := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		all = append(all, s)
	}
	e.mu.RUnlock()

	snaps := make([]models.OrchestrationSession, len(all))
	for i, s := range all {
		snaps[i] = s.snapshot()
	}
	slices.SortFunc(snaps, func(a, b models.OrchestrationSession) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return snaps
}

// Cancel refuses to schedule the session's remaining pending tasks.
// In-flight tasks run to completion or hit their own timeout.
func (e *Engine) Cancel(id string) (models.OrchestrationSession, error) {
	e.mu.RLock()
	s := e.sessions[id]
	e.mu.RUnlock()
	if s == nil {
		return models.OrchestrationSession{}, ErrSessionNotFound
	}

	s.mu.Lock()
	if !s.snap.Status.Terminal() && !s.snap.Cancelled {
		s.snap.Cancelled = true
		s.snap.CurrentPhase = "cancelling"
		// A held-back intelligence task is not in the queue, so it
		// must be retired here or the session never terminates.
		if s.deferred != nil {
			e.retireTaskLocked(s, s.deferred, models.TaskCancelled, models.ErrorKindCancelled, "session cancelled")
			s.deferred = nil
		}
		e.logger.Info("orchestration cancelled", "session_id", id)
	}
	s.mu.Unlock()

	s.publish()
	e.maybeFinalize(s)
	return s.snapshot(), nil
}

// Subscribe streams snapshots after each state change until the session
// reaches a terminal state.
func (e *Engine) Subscribe(id string) (<-chan models.OrchestrationSession, func(), error) {
	e.mu.RLock()
	s := e.sessions[id]
	e.mu.RUnlock()
	if s == nil {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan models.OrchestrationSession, 16)

	s.mu.Lock()
	snap := s.cloneLocked()
	if s.finalized {
		s.mu.Unlock()
		ch <- snap
		close(ch)
		return ch, func() {}, nil
	}
	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch
	s.mu.Unlock()

	ch <- snap
	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subs[key]; ok {
			delete(s.subs, key)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// Close drains the pool. Queued tasks are abandoned; in-flight tasks
// finish first.
func (e *Engine) Close() {
	e.queue.close()
	e.wg.Wait()
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for {
		s, task, ok := e.queue.pop()
		if !ok {
			return
		}
		e.runTask(s, task)
	}
}

// runTask executes one task to a terminal state, retrying retryable
// failures with exponential backoff.
func (e *Engine) runTask(s *session, task *models.AnalysisTask) {
	s.mu.Lock()
	if s.snap.Cancelled && task.Status == models.TaskPending {
		e.retireTaskLocked(s, task, models.TaskCancelled, models.ErrorKindCancelled, "session cancelled")
		s.mu.Unlock()
		s.publish()
		e.maybeFinalize(s)
		return
	}
	now := time.Now()
	task.Status = models.TaskRunning
	task.StartedAt = &now
	task.Attempt = 1
	if s.snap.Status == models.SessionPending {
		s.snap.Status = models.SessionRunning
	}
	s.snap.CurrentPhase = string(task.Capability)
	taskCopy := *task
	s.mu.Unlock()
	s.publish()

	ag, err := e.registry.ForCapability(task.Capability)
	if err != nil {
		res := models.AgentResult{
			TaskID:     task.ID,
			Capability: task.Capability,
			Success:    false,
			Error:      err.Error(),
			ErrorKind:  models.ErrorKindInvalidInput,
		}
		e.finishTask(s, task, res)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	var res models.AgentResult
	for attempt := 1; ; attempt++ {
		taskCopy.Attempt = attempt
		res = e.executeOnce(ag, taskCopy)
		if res.Success || !res.ErrorKind.Retryable() || attempt >= e.cfg.MaxAttempts {
			break
		}
		wait := bo.NextBackOff()
		e.logger.Warn("task retry scheduled",
			"session_id", s.snap.ID,
			"task_id", task.ID,
			"capability", task.Capability,
			"attempt", attempt,
			"error_kind", res.ErrorKind,
			"backoff", wait)
		time.Sleep(wait)
		s.mu.Lock()
		task.Attempt = attempt + 1
		cancelled := s.snap.Cancelled
		s.mu.Unlock()
		if cancelled {
			break
		}
	}

	e.finishTask(s, task, res)
}

// executeOnce runs a single attempt under the task's timeout budget.
// A task that outlives its budget is abandoned and reported as a
// timeout failure even if the agent ignores the context.
func (e *Engine) executeOnce(ag agent.Agent, task models.AnalysisTask) models.AgentResult {
	ctx, cancel := context.WithTimeout(context.Background(), task.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan models.AgentResult, 1)
	go func() {
		done <- ag.Execute(ctx, task)
	}()

	var res models.AgentResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = models.AgentResult{
			TaskID:        task.ID,
			AgentID:       ag.ID(),
			Capability:    ag.Capability(),
			Success:       false,
			Error:         fmt.Sprintf("task exceeded %s budget", task.Timeout),
			ErrorKind:     models.ErrorKindTimeout,
			ExecutionTime: time.Since(start),
		}
	}

	if e.metrics != nil {
		if res.Success {
			e.metrics.RecordTiming(metrics.OpAgentExecute, time.Since(start))
		} else {
			e.metrics.RecordFailure(metrics.OpAgentExecute, time.Since(start))
		}
	}
	return res
}

// finishTask records the task's terminal state, releases a deferred
// intelligence task when its inputs are ready, and finalizes the
// session once every task is terminal.
func (e *Engine) finishTask(s *session, task *models.AnalysisTask, res models.AgentResult) {
	s.mu.Lock()
	status := models.TaskCompleted
	if !res.Success {
		status = models.TaskFailed
	}
	e.retireTaskLocked(s, task, status, res.ErrorKind, res.Error)
	s.snap.Results = append(s.snap.Results, res)
	if res.AgentID != "" && !slices.Contains(s.snap.AgentsInvolved, res.AgentID) {
		s.snap.AgentsInvolved = append(s.snap.AgentsInvolved, res.AgentID)
	}

	var release *models.AnalysisTask
	if s.deferred != nil && s.siblingsTerminalLocked() {
		release = s.deferred
		s.deferred = nil
		if release.Parameters == nil {
			release.Parameters = make(map[string]any, 1)
		}
		release.Parameters[agent.ResultsParameter] = successfulResults(s.snap.Results)
	}
	s.mu.Unlock()
	s.publish()

	e.logger.Info("task finished",
		"session_id", s.snap.ID,
		"task_id", task.ID,
		"capability", task.Capability,
		"status", status,
		"confidence", res.Confidence)

	if release != nil {
		e.queue.push(s, release)
		return
	}
	e.maybeFinalize(s)
}

// retireTaskLocked moves a task to a terminal state and updates the
// session counters. Caller holds s.mu.
func (e *Engine) retireTaskLocked(s *session, task *models.AnalysisTask, status models.TaskStatus, kind models.ErrorKind, errMsg string) {
	if task.Status.Terminal() {
		return
	}
	now := time.Now()
	task.Status = status
	task.FinishedAt = &now
	task.Error = errMsg
	task.ErrorKind = kind
	if status == models.TaskCompleted {
		s.snap.CompletedTasks++
	} else {
		s.snap.FailedTasks++
	}
	s.snap.Progress = s.snap.CompletedTasks * 100 / s.snap.TaskCount
}

// siblingsTerminalLocked reports whether every task other than the
// deferred one is terminal. Caller holds s.mu.
func (s *session) siblingsTerminalLocked() bool {
	for _, t := range s.tasks {
		if t == s.deferred {
			continue
		}
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// maybeFinalize transitions the session to a terminal state once all
// tasks are terminal, running the synthesis pass first when configured.
func (e *Engine) maybeFinalize(s *session) {
	s.mu.Lock()
	if s.finalizing || s.deferred != nil {
		s.mu.Unlock()
		return
	}
	for _, t := range s.tasks {
		if !t.Status.Terminal() {
			s.mu.Unlock()
			return
		}
	}
	s.finalizing = true
	runSynthesis := s.synthesize && !s.snap.Cancelled && s.snap.CompletedTasks > 0
	if runSynthesis {
		s.snap.CurrentPhase = "synthesis"
	}
	results := slices.Clone(s.snap.Results)
	filePath := s.snap.FilePath
	priority := s.snap.Priority
	s.mu.Unlock()

	var synth *models.AgentResult
	if runSynthesis {
		s.publish()
		synth = e.runSynthesis(filePath, priority, results)
	}

	s.mu.Lock()
	s.finalized = true
	if synth != nil {
		s.snap.Results = append(s.snap.Results, *synth)
	}
	e.mergeIntelligenceLocked(s)
	if s.snap.CompletedTasks > 0 {
		s.snap.Insights = append(s.snap.Insights,
			fmt.Sprintf("%d of %d analyses completed for %s", s.snap.CompletedTasks, s.snap.TaskCount, filePath))
		s.snap.Status = models.SessionCompleted
	} else {
		s.snap.Status = models.SessionFailed
	}
	s.snap.PartialFailure = s.snap.CompletedTasks > 0 && s.snap.FailedTasks > 0
	s.snap.CurrentPhase = string(s.snap.Status)
	now := time.Now()
	s.snap.CompletedAt = &now
	final := s.cloneLocked()
	subs := s.subs
	s.subs = make(map[int]chan models.OrchestrationSession)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- final:
		default:
		}
		close(ch)
	}

	e.logger.Info("orchestration finished",
		"session_id", final.ID,
		"status", final.Status,
		"completed_tasks", final.CompletedTasks,
		"failed_tasks", final.FailedTasks,
		"connections", len(final.Connections),
		"partial_failure", final.PartialFailure)
}

// runSynthesis re-invokes the intelligence agent with the aggregated
// results. Failures degrade the session's insights, never fail it.
func (e *Engine) runSynthesis(filePath string, priority models.Priority, results []models.AgentResult) *models.AgentResult {
	ag, err := e.registry.ForCapability(models.CapabilityIntelligence)
	if err != nil {
		return nil
	}
	task := models.AnalysisTask{
		ID:         uuid.New().String()[:8],
		Capability: models.CapabilityIntelligence,
		FilePath:   filePath,
		Priority:   priority,
		Status:     models.TaskRunning,
		Timeout:    e.cfg.TaskTimeout,
		CreatedAt:  time.Now(),
		Parameters: map[string]any{
			agent.ResultsParameter: successfulResults(results),
		},
	}
	res := e.executeOnce(ag, task)
	if !res.Success {
		e.logger.Warn("synthesis pass degraded", "file", filePath, "error", res.Error)
		return nil
	}
	// Synthesis is bookkeeping outside the task accounting, so it
	// must not show up as an involved agent.
	res.AgentID = ""
	res.TaskID = ""
	return &res
}

// mergeIntelligenceLocked folds intelligence outputs into the session's
// insights and discovered connections. Caller holds s.mu.
func (e *Engine) mergeIntelligenceLocked(s *session) {
	seenInsight := map[string]bool{}
	for _, in := range s.snap.Insights {
		seenInsight[in] = true
	}
	seenConn := map[string]bool{}
	for _, c := range s.snap.Connections {
		seenConn[c.Type+"|"+c.Description] = true
	}
	for _, r := range s.snap.Results {
		if r.Capability != models.CapabilityIntelligence || !r.Success {
			continue
		}
		if insights, ok := r.Output["insights"].([]string); ok {
			for _, in := range insights {
				if !seenInsight[in] {
					seenInsight[in] = true
					s.snap.Insights = append(s.snap.Insights, in)
				}
			}
		}
		if conns, ok := r.Output["connections"].([]models.Connection); ok {
			for _, c := range conns {
				key := c.Type + "|" + c.Description
				if !seenConn[key] {
					seenConn[key] = true
					s.snap.Connections = append(s.snap.Connections, c)
				}
			}
		}
	}
}

// copyParams gives each task its own parameter map so agents never
// observe another task's mutations.
func copyParams(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// successfulResults filters out failed results before handing them to
// the intelligence agent.
func successfulResults(results []models.AgentResult) []models.AgentResult {
	out := make([]models.AgentResult, 0, len(results))
	for _, r := range results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

func (s *session) snapshot() models.OrchestrationSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneLocked()
}

// cloneLocked deep-copies the slices so callers never observe
// concurrent appends. Caller holds s.mu.
func (s *session) cloneLocked() models.OrchestrationSession {
	snap := s.snap
	snap.AgentsInvolved = slices.Clone(s.snap.AgentsInvolved)
	snap.Results = slices.Clone(s.snap.Results)
	snap.Insights = slices.Clone(s.snap.Insights)
	snap.Connections = slices.Clone(s.snap.Connections)
	return snap
}

// publish sends the current snapshot to every subscriber, dropping
// updates for slow consumers.
func (s *session) publish() {
	s.mu.RLock()
	snap := s.cloneLocked()
	subs := make([]chan models.OrchestrationSession, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.RUnlock()
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
