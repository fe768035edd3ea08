// Package models defines the core domain models for agent pipeline orchestration.
package models

import "time"

// AgentCategory classifies what kind of processing an agent performs.
type AgentCategory string

const (
	AgentCategoryValidator   AgentCategory = "validator"
	AgentCategoryAnalyzer    AgentCategory = "analyzer"
	AgentCategoryEnricher    AgentCategory = "enricher"
	AgentCategoryTransformer AgentCategory = "transformer"
	AgentCategoryCustom      AgentCategory = "custom"
)

// AgentStatus represents the lifecycle state of an agent definition.
type AgentStatus string

const (
	AgentStatusActive      AgentStatus = "active"      // Resolvable by pipeline steps
	AgentStatusInactive    AgentStatus = "inactive"    // Registered but not executable
	AgentStatusError       AgentStatus = "error"       // Last activation failed
	AgentStatusMaintenance AgentStatus = "maintenance" // Temporarily withdrawn by an operator
)

// Agent is the persisted definition of a processing unit. The TypeName is the
// stable registry key; Name is a mutable display name.
type Agent struct {
	ID            string         `json:"id"`
	TypeName      string         `json:"type_name"   validate:"required,min=3"`
	Name          string         `json:"name"        validate:"required,min=3"`
	Description   string         `json:"description"`
	Category      AgentCategory  `json:"category"    validate:"required"`
	Version       string         `json:"version"`
	Status        AgentStatus    `json:"status"      validate:"required"`
	Configuration map[string]any `json:"configuration"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsActive reports whether the agent may be bound by an executing step.
func (a *Agent) IsActive() bool {
	return a.Status == AgentStatusActive
}
