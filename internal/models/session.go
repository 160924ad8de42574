package models

import "time"

// AnalysisType selects which agent capabilities an orchestration runs.
type AnalysisType string

const (
	// AnalysisComprehensive runs every registered capability.
	AnalysisComprehensive AnalysisType = "comprehensive"
	// AnalysisTargeted runs only the caller-specified capabilities.
	AnalysisTargeted AnalysisType = "targeted"
	// AnalysisCollaborative runs every capability and re-invokes the
	// intelligence agent once the other agents have finished.
	AnalysisCollaborative AnalysisType = "collaborative"
)

// Valid reports whether t names a known analysis type.
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisComprehensive, AnalysisTargeted, AnalysisCollaborative:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of an orchestration session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// OrchestrationSession is a point-in-time snapshot of one orchestration
// run. Progress is monotonically non-decreasing; the session reaches a
// terminal status only after every task has reached one.
type OrchestrationSession struct {
	ID             string        `json:"session_id"`
	FilePath       string        `json:"file_path"`
	AnalysisType   AnalysisType  `json:"analysis_type"`
	Priority       Priority      `json:"priority"`
	Status         SessionStatus `json:"status"`
	Progress       int           `json:"progress"`
	CurrentPhase   string        `json:"current_phase"`
	TaskCount      int           `json:"task_count"`
	CompletedTasks int           `json:"completed_tasks"`
	FailedTasks    int           `json:"failed_tasks"`
	AgentsInvolved []string      `json:"agents_involved"`
	Results        []AgentResult `json:"results,omitempty"`
	Insights       []string      `json:"insights,omitempty"`
	Connections    []Connection  `json:"connections_discovered,omitempty"`
	PartialFailure bool          `json:"partial_failure"`
	Cancelled      bool          `json:"cancelled,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// Terminal reports whether the session has reached a terminal status.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}
