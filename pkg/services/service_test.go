package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackconsult/interfaceAgent/pkg/audit"
	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/orchestrator"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
	"github.com/stackconsult/interfaceAgent/pkg/persistence/file"
	"github.com/stackconsult/interfaceAgent/pkg/registry"
)

type recordingPublisher struct {
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.events = append(p.events, event)

	return nil
}

type serviceHarness struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   *recordingPublisher
	agents      *Agent
	pipelines   *Pipeline
	executions  *Execution
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(logger)
	require.NoError(t, reg.RegisterBuiltinAgents())

	publisher := &recordingPublisher{}
	auditLog := audit.NewLogger(p.AuditRepository(), logger)
	executor := orchestrator.NewExecutor(p, reg, publisher, logger)

	return &serviceHarness{
		persistence: p,
		registry:    reg,
		publisher:   publisher,
		agents:      NewAgent(p, reg, publisher, auditLog, logger),
		pipelines:   NewPipeline(p, auditLog, logger),
		executions:  NewExecution(p, executor, logger),
	}
}

func (h *serviceHarness) createAgent(t *testing.T, typeName string) *models.Agent {
	t.Helper()

	agent, err := h.agents.Create(t.Context(), "test", &models.Agent{
		TypeName: typeName,
		Name:     "Agent " + typeName,
		Category: models.AgentCategoryTransformer,
	})
	require.NoError(t, err)

	return agent
}

func (h *serviceHarness) createPipeline(t *testing.T, name string) *models.Pipeline {
	t.Helper()

	pipeline, err := h.pipelines.Create(t.Context(), "test", &models.Pipeline{Name: name})
	require.NoError(t, err)

	return pipeline
}

func TestAgentService_CreateDefaultsToInactive(t *testing.T) {
	h := newServiceHarness(t)

	agent := h.createAgent(t, "transformer")
	assert.NotEmpty(t, agent.ID)
	assert.Equal(t, models.AgentStatusInactive, agent.Status)
}

func TestAgentService_CreateRejectsDuplicateTypeName(t *testing.T) {
	h := newServiceHarness(t)
	h.createAgent(t, "transformer")

	_, err := h.agents.Create(t.Context(), "test", &models.Agent{
		TypeName: "transformer",
		Name:     "Another",
		Category: models.AgentCategoryTransformer,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgentTypeExists)
}

func TestAgentService_CreateRejectsInvalidDefinition(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.agents.Create(t.Context(), "test", &models.Agent{TypeName: "x"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestAgentService_UpdateKeepsTypeNameAndStatus(t *testing.T) {
	h := newServiceHarness(t)
	agent := h.createAgent(t, "transformer")

	updated, err := h.agents.Update(t.Context(), "test", agent.ID, &models.Agent{
		Name:     "Renamed",
		Category: models.AgentCategoryTransformer,
	})
	require.NoError(t, err)
	assert.Equal(t, "transformer", updated.TypeName)
	assert.Equal(t, models.AgentStatusInactive, updated.Status)

	_, err = h.agents.Update(t.Context(), "test", agent.ID, &models.Agent{
		TypeName: "different",
		Name:     "Renamed",
		Category: models.AgentCategoryTransformer,
	})
	assert.ErrorIs(t, err, ErrTypeNameImmutable)
}

func TestAgentService_ActivateRequiresBoundType(t *testing.T) {
	h := newServiceHarness(t)

	bound := h.createAgent(t, "transformer")

	activated, err := h.agents.Activate(t.Context(), "ops", bound.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusActive, activated.Status)
	require.Len(t, h.publisher.events, 1)

	unbound := h.createAgent(t, "unbound-type")

	_, err = h.agents.Activate(t.Context(), "ops", unbound.ID)
	assert.ErrorIs(t, err, ErrAgentTypeUnbound)
}

func TestAgentService_ActivateAcceptsPluginReference(t *testing.T) {
	h := newServiceHarness(t)

	agent, err := h.agents.Create(t.Context(), "test", &models.Agent{
		TypeName: "plugin-backed",
		Name:     "Plugin Backed",
		Category: models.AgentCategoryCustom,
		Configuration: map[string]any{
			"plugin_path":   "/opt/agents/custom.so",
			"plugin_symbol": "Agent",
		},
	})
	require.NoError(t, err)

	activated, err := h.agents.Activate(t.Context(), "ops", agent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AgentStatusActive, activated.Status)
}

func TestAgentService_DeleteBlockedWhileReferenced(t *testing.T) {
	h := newServiceHarness(t)
	agent := h.createAgent(t, "transformer")
	pipeline := h.createPipeline(t, "orders")

	_, err := h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID: agent.ID,
		Order:   0,
	})
	require.NoError(t, err)

	err = h.agents.Delete(t.Context(), "test", agent.ID)
	assert.ErrorIs(t, err, ErrAgentInUse)

	_, err = h.pipelines.RemoveStep(t.Context(), "test", pipeline.ID, pipelineStepID(t, h, pipeline.ID))
	require.NoError(t, err)

	require.NoError(t, h.agents.Delete(t.Context(), "test", agent.ID))
}

func pipelineStepID(t *testing.T, h *serviceHarness, pipelineID string) string {
	t.Helper()

	pipeline, err := h.pipelines.FetchByID(t.Context(), pipelineID)
	require.NoError(t, err)
	require.NotEmpty(t, pipeline.Steps)

	return pipeline.Steps[0].ID
}

func TestPipelineService_CreateDefaultsToDraft(t *testing.T) {
	h := newServiceHarness(t)

	pipeline := h.createPipeline(t, "orders")
	assert.Equal(t, models.PipelineStatusDraft, pipeline.Status)
}

func TestPipelineService_CreateRejectsDuplicateName(t *testing.T) {
	h := newServiceHarness(t)
	h.createPipeline(t, "orders")

	_, err := h.pipelines.Create(t.Context(), "test", &models.Pipeline{Name: "orders"})
	assert.ErrorIs(t, err, ErrPipelineNameExists)
}

func TestPipelineService_CreateRejectsUnknownMergeStrategy(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.pipelines.Create(t.Context(), "test", &models.Pipeline{
		Name:          "orders",
		Configuration: map[string]any{"merge_strategy": "sum"},
	})
	assert.ErrorIs(t, err, ErrInvalidMergeStrategy)
}

func TestPipelineService_AddStepValidations(t *testing.T) {
	h := newServiceHarness(t)
	agent := h.createAgent(t, "transformer")
	pipeline := h.createPipeline(t, "orders")

	_, err := h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID: "missing",
		Order:   0,
	})
	assert.True(t, IsNotFoundError(err))

	_, err = h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID: agent.ID,
		Order:   0,
	})
	require.NoError(t, err)

	_, err = h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID: agent.ID,
		Order:   0,
	})
	assert.ErrorIs(t, err, ErrStepOrderTaken)
}

func TestPipelineService_CreateRejectsDuplicateStepOrders(t *testing.T) {
	h := newServiceHarness(t)

	_, err := h.pipelines.Create(t.Context(), "test", &models.Pipeline{
		Name: "orders",
		Steps: []*models.PipelineStep{
			{AgentID: "agent-a", Order: 1},
			{AgentID: "agent-b", Order: 1},
		},
	})
	assert.ErrorIs(t, err, ErrStepOrderTaken)
	assert.True(t, IsConflictError(err))
}

func TestPipelineService_UpdateRejectsDuplicateStepOrders(t *testing.T) {
	h := newServiceHarness(t)
	pipeline := h.createPipeline(t, "orders")

	pipeline.Steps = []*models.PipelineStep{
		{AgentID: "agent-a", Order: 2},
		{AgentID: "agent-b", Order: 2},
	}

	_, err := h.pipelines.Update(t.Context(), "test", pipeline.ID, pipeline)
	assert.ErrorIs(t, err, ErrStepOrderTaken)
}

func TestPipelineService_StatusTransitions(t *testing.T) {
	h := newServiceHarness(t)
	agent := h.createAgent(t, "transformer")
	pipeline := h.createPipeline(t, "orders")

	// Activation requires at least one step.
	_, err := h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusActive)
	assert.ErrorIs(t, err, ErrPipelineHasNoSteps)

	_, err = h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID: agent.ID,
		Order:   0,
	})
	require.NoError(t, err)

	// Draft cannot pause.
	_, err = h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusPaused)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	for _, status := range []models.PipelineStatus{
		models.PipelineStatusActive,
		models.PipelineStatusPaused,
		models.PipelineStatusActive,
		models.PipelineStatusArchived,
	} {
		_, err = h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, status)
		require.NoError(t, err, string(status))
	}

	// Archived is terminal.
	_, err = h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusActive)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestPipelineService_UpdateArchivedFails(t *testing.T) {
	h := newServiceHarness(t)
	pipeline := h.createPipeline(t, "orders")

	_, err := h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusArchived)
	require.NoError(t, err)

	_, err = h.pipelines.Update(t.Context(), "test", pipeline.ID, &models.Pipeline{Name: "renamed"})
	assert.ErrorIs(t, err, ErrPipelineArchived)
}

func TestPipelineService_DeleteActiveFails(t *testing.T) {
	h := newServiceHarness(t)
	agent := h.createAgent(t, "transformer")
	pipeline := h.createPipeline(t, "orders")

	_, err := h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID: agent.ID,
		Order:   0,
	})
	require.NoError(t, err)

	_, err = h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusActive)
	require.NoError(t, err)

	err = h.pipelines.Delete(t.Context(), "test", pipeline.ID)
	assert.ErrorIs(t, err, ErrPipelineActive)

	_, err = h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusPaused)
	require.NoError(t, err)

	require.NoError(t, h.pipelines.Delete(t.Context(), "test", pipeline.ID))
}

func TestPipelineService_HealthCheck(t *testing.T) {
	h := newServiceHarness(t)

	message, healthy := h.pipelines.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)
}

func activePipeline(t *testing.T, h *serviceHarness) *models.Pipeline {
	t.Helper()

	agent := h.createAgent(t, "transformer")

	activated, err := h.agents.Activate(t.Context(), "test", agent.ID)
	require.NoError(t, err)

	pipeline := h.createPipeline(t, "orders")

	_, err = h.pipelines.AddStep(t.Context(), "test", pipeline.ID, &models.PipelineStep{
		AgentID:       activated.ID,
		Order:         0,
		Configuration: map[string]any{"copy_unmapped": true},
	})
	require.NoError(t, err)

	pipeline, err = h.pipelines.SetStatus(t.Context(), "test", pipeline.ID, models.PipelineStatusActive)
	require.NoError(t, err)

	return pipeline
}

func TestExecutionService_ExecuteRunsInBackground(t *testing.T) {
	h := newServiceHarness(t)
	pipeline := activePipeline(t, h)

	execution, err := h.executions.Execute(t.Context(), pipeline.ID, map[string]any{"value": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, execution.ID)

	h.executions.Wait()

	finished, err := h.executions.FetchByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, finished.Status)
}

func TestExecutionService_ExecuteRejectsInactivePipeline(t *testing.T) {
	h := newServiceHarness(t)
	pipeline := h.createPipeline(t, "orders")

	_, err := h.executions.Execute(t.Context(), pipeline.ID, nil)
	assert.ErrorIs(t, err, ErrPipelineNotActive)
}

func TestExecutionService_StartupFailureIsPersistedTerminal(t *testing.T) {
	h := newServiceHarness(t)

	// A conflicting pipeline written behind the service's back still gets
	// accepted by Execute; the run must then terminate the record as failed.
	pipeline := &models.Pipeline{
		ID:     "pipe-conflict",
		Name:   "conflicting",
		Status: models.PipelineStatusActive,
		Steps: []*models.PipelineStep{
			{ID: "s1", AgentID: "agent-a", Order: 1},
			{ID: "s2", AgentID: "agent-b", Order: 1},
		},
	}
	require.NoError(t, h.persistence.PipelineRepository().SavePipeline(t.Context(), pipeline))

	execution, err := h.executions.Execute(t.Context(), pipeline.ID, nil)
	require.NoError(t, err)

	h.executions.Wait()

	stored, err := h.executions.FetchByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, models.FailureCauseConfiguration, stored.Cause)
	assert.NotEmpty(t, stored.Error)
	assert.NotNil(t, stored.FinishedAt)
}

func TestExecutionService_ListClampsPaging(t *testing.T) {
	h := newServiceHarness(t)
	pipeline := activePipeline(t, h)

	for range 3 {
		_, err := h.executions.ExecuteSync(t.Context(), pipeline.ID, map[string]any{"value": 1})
		require.NoError(t, err)
	}

	listed, err := h.executions.List(t.Context(), ListExecutionsRequest{Limit: -5})
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	listed, err = h.executions.List(t.Context(), ListExecutionsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	listed, err = h.executions.List(t.Context(), ListExecutionsRequest{PipelineID: "other"})
	require.NoError(t, err)
	assert.Empty(t, listed)
}
