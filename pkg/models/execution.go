package models

import "time"

// ExecutionStatus represents the lifecycle state of a pipeline execution.
type ExecutionStatus string

const (
	ExecutionStatusPending         ExecutionStatus = "pending"
	ExecutionStatusRunning         ExecutionStatus = "running"
	ExecutionStatusSucceeded       ExecutionStatus = "succeeded"
	ExecutionStatusFailed          ExecutionStatus = "failed"
	ExecutionStatusPartiallyFailed ExecutionStatus = "partially_failed"
)

// FailureCause distinguishes why a step or execution failed.
type FailureCause string

const (
	FailureCauseValidation    FailureCause = "validation_failed"
	FailureCauseProcessing    FailureCause = "processing_failed"
	FailureCauseTimeout       FailureCause = "timeout"
	FailureCauseCancelled     FailureCause = "cancelled"
	FailureCauseAgent         FailureCause = "agent_unavailable"
	FailureCauseConfiguration FailureCause = "configuration_error"
)

// StepStatus represents the terminal state of a single step within an execution.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepResult records the outcome of one step. Recovered marks a failed step
// whose on-error hook completed without error.
type StepResult struct {
	StepID     string         `json:"step_id"`
	AgentType  string         `json:"agent_type"`
	Status     StepStatus     `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Cause      FailureCause   `json:"cause,omitempty"`
	Recovered  bool           `json:"recovered,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// PipelineExecution tracks one run of a pipeline against a specific input.
// It is owned exclusively by the orchestrator driving it and is immutable once
// a terminal status is recorded.
type PipelineExecution struct {
	ID          string          `json:"id"`
	PipelineID  string          `json:"pipeline_id" validate:"required"`
	Status      ExecutionStatus `json:"status"`
	Input       map[string]any  `json:"input,omitempty"`
	Output      map[string]any  `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	Cause       FailureCause    `json:"cause,omitempty"`
	StepResults []StepResult    `json:"step_results"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// IsTerminal reports whether the execution has reached a final status.
func (e *PipelineExecution) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusSucceeded, ExecutionStatusFailed, ExecutionStatusPartiallyFailed:
		return true
	default:
		return false
	}
}
