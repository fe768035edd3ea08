package models

import "time"

// PipelineStatus represents the lifecycle state of a pipeline definition.
type PipelineStatus string

const (
	PipelineStatusDraft    PipelineStatus = "draft"    // Editable, not executable
	PipelineStatusActive   PipelineStatus = "active"   // Executable
	PipelineStatusPaused   PipelineStatus = "paused"   // Temporarily not executable
	PipelineStatusArchived PipelineStatus = "archived" // Historical, not executable
)

// MergeStrategy controls how step outputs are combined into the terminal output.
type MergeStrategy string

const (
	// MergeStrategyLast folds succeeded step outputs in ascending order,
	// last write wins per field name.
	MergeStrategyLast MergeStrategy = "last"
	// MergeStrategyCollect gathers every value written for a field into a
	// slice, in step order.
	MergeStrategyCollect MergeStrategy = "collect"
)

// Pipeline is an ordered composition of agent-bound steps.
type Pipeline struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"        validate:"required,min=3"`
	Description   string          `json:"description"`
	Status        PipelineStatus  `json:"status"      validate:"required"`
	Configuration map[string]any  `json:"configuration"`
	Steps         []*PipelineStep `json:"steps"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PipelineStep binds one agent to a position in a pipeline. Order values must
// be unique within a pipeline and define the strict execution order.
type PipelineStep struct {
	ID            string         `json:"id"`
	AgentID       string         `json:"agent_id" validate:"required"`
	Order         int            `json:"order"`
	Configuration map[string]any `json:"configuration"`
	Critical      *bool          `json:"critical,omitempty"`
	TimeoutMs     int64          `json:"timeout_ms,omitempty"`
}

// IsCritical reports whether a failure of this step aborts the execution.
// Steps are critical unless explicitly marked otherwise.
func (s *PipelineStep) IsCritical() bool {
	return s.Critical == nil || *s.Critical
}

// IsExecutable reports whether executions may be started against this pipeline.
func (p *Pipeline) IsExecutable() bool {
	return p.Status == PipelineStatusActive
}

// MergeStrategyOrDefault reads the configured merge strategy, defaulting to
// last-write-wins.
func (p *Pipeline) MergeStrategyOrDefault() MergeStrategy {
	if p.Configuration != nil {
		if s, ok := p.Configuration["merge_strategy"].(string); ok && s != "" {
			return MergeStrategy(s)
		}
	}

	return MergeStrategyLast
}

// Snapshot returns a deep copy of the pipeline's executable shape so an
// in-flight execution never observes concurrent edits.
func (p *Pipeline) Snapshot() *Pipeline {
	snapshot := *p

	snapshot.Steps = make([]*PipelineStep, len(p.Steps))
	for i, step := range p.Steps {
		stepCopy := *step
		stepCopy.Configuration = copyMap(step.Configuration)

		if step.Critical != nil {
			criticalCopy := *step.Critical
			stepCopy.Critical = &criticalCopy
		}

		snapshot.Steps[i] = &stepCopy
	}

	snapshot.Configuration = copyMap(p.Configuration)

	return &snapshot
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}
