package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// MockAgentRepository is a mock implementation of persistence.AgentRepository.
type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) Agents(ctx context.Context) ([]*models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) AgentByID(ctx context.Context, id string) (*models.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) AgentByTypeName(ctx context.Context, typeName string) (*models.Agent, error) {
	args := m.Called(ctx, typeName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) SaveAgent(ctx context.Context, agent *models.Agent) error {
	args := m.Called(ctx, agent)

	return args.Error(0)
}

func (m *MockAgentRepository) DeleteAgent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockPipelineRepository is a mock implementation of persistence.PipelineRepository.
type MockPipelineRepository struct {
	mock.Mock
}

func (m *MockPipelineRepository) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Pipeline), args.Error(1)
}

func (m *MockPipelineRepository) PipelineByID(ctx context.Context, id string) (*models.Pipeline, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Pipeline), args.Error(1)
}

func (m *MockPipelineRepository) SavePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	args := m.Called(ctx, pipeline)

	return args.Error(0)
}

func (m *MockPipelineRepository) DeletePipeline(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.PipelineExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.PipelineExecution), args.Error(1)
}

func (m *MockExecutionRepository) SaveExecution(ctx context.Context, execution *models.PipelineExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.PipelineExecution, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.PipelineExecution), args.Error(1)
}

// MockAuditRepository is a mock implementation of persistence.AuditRepository.
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) AppendAuditRecord(ctx context.Context, record *models.AuditRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockAuditRepository) AuditRecords(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.AuditRecord), args.Error(1)
}

// MockPersistence aggregates the repository mocks behind the persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	AgentRepo     *MockAgentRepository
	PipelineRepo  *MockPipelineRepository
	ExecutionRepo *MockExecutionRepository
	AuditRepo     *MockAuditRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		AgentRepo:     &MockAgentRepository{},
		PipelineRepo:  &MockPipelineRepository{},
		ExecutionRepo: &MockExecutionRepository{},
		AuditRepo:     &MockAuditRepository{},
	}
}

func (m *MockPersistence) AgentRepository() persistence.AgentRepository {
	return m.AgentRepo
}

func (m *MockPersistence) PipelineRepository() persistence.PipelineRepository {
	return m.PipelineRepo
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.ExecutionRepo
}

func (m *MockPersistence) AuditRepository() persistence.AuditRepository {
	return m.AuditRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
