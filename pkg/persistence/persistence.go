// Package persistence provides the data storage abstraction for agents,
// pipelines, executions and the audit trail.
package persistence

import (
	"context"

	"github.com/stackconsult/interfaceAgent/pkg/models"
)

// ListExecutionsOptions filters and pages execution listings.
type ListExecutionsOptions struct {
	PipelineID string
	Limit      int
	Offset     int
}

type AgentRepository interface {
	Agents(ctx context.Context) ([]*models.Agent, error)
	AgentByID(ctx context.Context, id string) (*models.Agent, error)
	AgentByTypeName(ctx context.Context, typeName string) (*models.Agent, error)
	SaveAgent(ctx context.Context, agent *models.Agent) error
	DeleteAgent(ctx context.Context, id string) error
}

type PipelineRepository interface {
	Pipelines(ctx context.Context) ([]*models.Pipeline, error)
	PipelineByID(ctx context.Context, id string) (*models.Pipeline, error)
	SavePipeline(ctx context.Context, pipeline *models.Pipeline) error
	DeletePipeline(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	ExecutionByID(ctx context.Context, id string) (*models.PipelineExecution, error)
	SaveExecution(ctx context.Context, execution *models.PipelineExecution) error
	ListExecutions(ctx context.Context, opts ListExecutionsOptions) ([]*models.PipelineExecution, error)
}

// AuditRepository is append-only; records are never updated or deleted.
type AuditRepository interface {
	AppendAuditRecord(ctx context.Context, record *models.AuditRecord) error
	AuditRecords(ctx context.Context, limit int) ([]*models.AuditRecord, error)
}

type Persistence interface {
	AgentRepository() AgentRepository
	PipelineRepository() PipelineRepository
	ExecutionRepository() ExecutionRepository
	AuditRepository() AuditRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
