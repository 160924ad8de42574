package models

import "time"

// Capability identifies one analysis capability an agent can provide.
type Capability string

const (
	CapabilityFileAnalysis  Capability = "file_analysis"
	CapabilitySteganography Capability = "steganography"
	CapabilityCryptography  Capability = "cryptography"
	CapabilityIntelligence  Capability = "intelligence"
)

// AllCapabilities returns every capability in dispatch order.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityFileAnalysis,
		CapabilitySteganography,
		CapabilityCryptography,
		CapabilityIntelligence,
	}
}

// Valid reports whether c names a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityFileAnalysis, CapabilitySteganography,
		CapabilityCryptography, CapabilityIntelligence:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of an analysis task.
// Transitions are strictly pending -> running -> terminal.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Priority orders task dispatch within the scheduler. Higher runs first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// ParsePriority maps the wire representation to a Priority.
// Unknown values default to normal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ErrorKind classifies a task or result failure. Only timeouts and
// unavailable tools are retried.
type ErrorKind string

const (
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindToolUnavailable ErrorKind = "tool_unavailable"
	ErrorKindInvalidInput    ErrorKind = "invalid_input"
	ErrorKindInternal        ErrorKind = "internal"
	ErrorKindCancelled       ErrorKind = "cancelled"
)

// Retryable reports whether a failure of this kind may be retried.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTimeout || k == ErrorKindToolUnavailable
}

// AnalysisTask is one unit of work dispatched to a single agent.
type AnalysisTask struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Capability Capability     `json:"capability"`
	FilePath   string         `json:"file_path"`
	FileID     int64          `json:"file_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Priority   Priority       `json:"priority"`
	Status     TaskStatus     `json:"status"`
	Attempt    int            `json:"attempt"`
	Timeout    time.Duration  `json:"timeout"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
}

// AgentResult is the immutable output of one task execution.
type AgentResult struct {
	TaskID        string         `json:"task_id"`
	AgentID       string         `json:"agent_id"`
	Capability    Capability     `json:"capability"`
	Success       bool           `json:"success"`
	Output        map[string]any `json:"output,omitempty"`
	Confidence    float64        `json:"confidence"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Error         string         `json:"error,omitempty"`
	ErrorKind     ErrorKind      `json:"error_kind,omitempty"`
}

// Connection is one cross-artifact correlation discovered by the
// intelligence agent: two or more files tied together by a shared pattern.
type Connection struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	FileIDs     []int64  `json:"file_ids"`
	Evidence    []string `json:"evidence"`
}
