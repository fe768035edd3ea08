// Package web provides HTTP request and response types for the pipeline API.
package web

import "github.com/stackconsult/interfaceAgent/pkg/models"

// CreateAgentRequest represents the request body for registering an agent.
type CreateAgentRequest struct {
	TypeName      string         `json:"type_name"     validate:"required,min=3"`
	Name          string         `json:"name"          validate:"required,min=3"`
	Description   string         `json:"description"`
	Category      string         `json:"category"      validate:"required,oneof=validator analyzer enricher transformer custom"`
	Version       string         `json:"version"`
	Configuration map[string]any `json:"configuration"`
}

// UpdateAgentRequest represents the request body for updating an agent.
// All fields are optional to support partial updates; the type name is
// immutable and therefore absent.
type UpdateAgentRequest struct {
	Name          *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description   *string        `json:"description,omitempty"`
	Version       *string        `json:"version,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// CreatePipelineRequest represents the request body for creating a pipeline.
type CreatePipelineRequest struct {
	Name          string         `json:"name"          validate:"required,min=3"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration"`
}

// UpdatePipelineRequest represents the request body for updating a pipeline.
type UpdatePipelineRequest struct {
	Name          *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description   *string        `json:"description,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// AddStepRequest represents the request body for appending a pipeline step.
// Steps are critical when the flag is omitted; only an explicit false makes a
// step's failure non-fatal to the execution.
type AddStepRequest struct {
	AgentID       string         `json:"agent_id"      validate:"required"`
	Order         int            `json:"order"         validate:"min=0"`
	Configuration map[string]any `json:"configuration"`
	Critical      *bool          `json:"critical"`
	TimeoutMs     int64          `json:"timeout_ms"    validate:"min=0"`
}

// SetPipelineStatusRequest represents the request body for a lifecycle transition.
type SetPipelineStatusRequest struct {
	Status models.PipelineStatus `json:"status" validate:"required,oneof=draft active paused archived"`
}

// ExecutePipelineRequest represents the request body for starting an execution.
type ExecutePipelineRequest struct {
	Input map[string]any `json:"input"`
}
