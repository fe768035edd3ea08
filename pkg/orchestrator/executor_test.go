package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence/file"
	"github.com/stackconsult/interfaceAgent/pkg/protocol"
	"github.com/stackconsult/interfaceAgent/pkg/registry"
)

// stubAgent is a configurable agent for exercising the executor paths.
type stubAgent struct {
	validateOK bool
	execute    func(ctx context.Context, data map[string]any) (map[string]any, error)
	onError    func(err error) error

	mu           sync.Mutex
	onErrorCalls int
}

func (a *stubAgent) ValidateInput(_ context.Context, _ map[string]any) bool {
	return a.validateOK
}

func (a *stubAgent) Execute(ctx context.Context, data map[string]any, _ *slog.Logger) (map[string]any, error) {
	return a.execute(ctx, data)
}

func (a *stubAgent) OnError(_ context.Context, err error, _ map[string]any) error {
	a.mu.Lock()
	a.onErrorCalls++
	a.mu.Unlock()

	if a.onError != nil {
		return a.onError(err)
	}

	return nil
}

func (a *stubAgent) errorHookCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.onErrorCalls
}

type stubFactory struct {
	typeName string
	agent    *stubAgent
}

func (f *stubFactory) Create(_ map[string]any) (protocol.Agent, error) {
	return f.agent, nil
}

func (f *stubFactory) ID() string {
	return f.typeName
}

// captureBus records published events and optionally simulates a broker outage.
type captureBus struct {
	mu     sync.Mutex
	events []eventbus.Event
	fail   bool
}

func (b *captureBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail {
		return eventbus.ErrBrokerUnavailable
	}

	b.events = append(b.events, event)

	return nil
}

func (b *captureBus) published(eventType events.EventType) []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	matched := make([]eventbus.Event, 0)

	for _, event := range b.events {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

type testHarness struct {
	persistence *file.Persistence
	registry    *registry.Registry
	bus         *captureBus
	executor    *Executor
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	persistence := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(logger)
	bus := &captureBus{}

	return &testHarness{
		persistence: persistence,
		registry:    reg,
		bus:         bus,
		executor:    NewExecutor(persistence, reg, bus, logger),
	}
}

// addAgent persists an agent definition and registers its stub factory.
func (h *testHarness) addAgent(t *testing.T, typeName string, status models.AgentStatus, agent *stubAgent) *models.Agent {
	t.Helper()

	definition := &models.Agent{
		ID:        uuid.New().String(),
		TypeName:  typeName,
		Name:      "Test " + typeName,
		Category:  models.AgentCategoryCustom,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, h.persistence.AgentRepository().SaveAgent(context.Background(), definition))
	require.NoError(t, h.registry.Register(typeName, &stubFactory{typeName: typeName, agent: agent}))

	return definition
}

func (h *testHarness) addPipeline(t *testing.T, steps []*models.PipelineStep, config map[string]any) *models.Pipeline {
	t.Helper()

	pipeline := &models.Pipeline{
		ID:            uuid.New().String(),
		Name:          "Test Pipeline",
		Status:        models.PipelineStatusActive,
		Configuration: config,
		Steps:         steps,
		CreatedAt:     time.Now().UTC(),
	}

	require.NoError(t, h.persistence.PipelineRepository().SavePipeline(context.Background(), pipeline))

	return pipeline
}

func newExecution(pipelineID string, input map[string]any) *models.PipelineExecution {
	return &models.PipelineExecution{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Status:     models.ExecutionStatusPending,
		Input:      input,
	}
}

func boolPtr(value bool) *bool {
	return &value
}

func succeedWith(output map[string]any) *stubAgent {
	return &stubAgent{
		validateOK: true,
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return output, nil
		},
	}
}

func failWith(err error) *stubAgent {
	return &stubAgent{
		validateOK: true,
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return nil, err
		},
	}
}

func TestExecutor_Run_AllStepsSucceed(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	first := h.addAgent(t, "first", models.AgentStatusActive, succeedWith(map[string]any{"a": 1}))
	second := h.addAgent(t, "second", models.AgentStatusActive, succeedWith(map[string]any{"b": 2}))
	third := h.addAgent(t, "third", models.AgentStatusActive, succeedWith(map[string]any{"a": 3}))

	// Steps are stored out of order on purpose; execution must sort ascending.
	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s3", AgentID: third.ID, Order: 30},
		{ID: "s1", AgentID: first.ID, Order: 10},
		{ID: "s2", AgentID: second.ID, Order: 20},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, map[string]any{"input": true}))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
	require.Len(t, execution.StepResults, 3)
	assert.Equal(t, "s1", execution.StepResults[0].StepID)
	assert.Equal(t, "s2", execution.StepResults[1].StepID)
	assert.Equal(t, "s3", execution.StepResults[2].StepID)

	for _, result := range execution.StepResults {
		assert.Equal(t, models.StepStatusSucceeded, result.Status)
	}

	// Last write wins: step s3 overwrote "a".
	assert.Equal(t, 3, execution.Output["a"])
	assert.Equal(t, 2, execution.Output["b"])

	assert.NotNil(t, execution.FinishedAt)
	assert.Len(t, h.bus.published(events.PipelineStepStartedEvent), 3)
	assert.Len(t, h.bus.published(events.PipelineStepSucceededEvent), 3)
	assert.Len(t, h.bus.published(events.PipelineExecutionCompletedEvent), 1)
}

func TestExecutor_Run_CriticalFailureStopsExecution(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	ok := h.addAgent(t, "ok", models.AgentStatusActive, succeedWith(map[string]any{"ok": true}))
	boom := h.addAgent(t, "boom", models.AgentStatusActive, failWith(errors.New("downstream unavailable")))
	never := succeedWith(map[string]any{"never": true})
	neverDef := h.addAgent(t, "never", models.AgentStatusActive, never)

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: ok.ID, Order: 1},
		{ID: "s2", AgentID: boom.ID, Order: 2},
		{ID: "s3", AgentID: neverDef.ID, Order: 3},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.FailureCauseProcessing, execution.Cause)
	require.Len(t, execution.StepResults, 2)
	assert.Equal(t, models.StepStatusFailed, execution.StepResults[1].Status)
	assert.Contains(t, execution.Error, "downstream unavailable")
}

func TestExecutor_Run_StepDefaultsToCritical(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	boom := h.addAgent(t, "boom", models.AgentStatusActive, failWith(errors.New("downstream unavailable")))
	never := succeedWith(map[string]any{"never": true})
	neverDef := h.addAgent(t, "never", models.AgentStatusActive, never)

	// Neither step carries the critical flag; the first failure must abort.
	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: boom.ID, Order: 1},
		{ID: "s2", AgentID: neverDef.ID, Order: 2},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.StepResults, 1)
	assert.Equal(t, models.StepStatusFailed, execution.StepResults[0].Status)
}

func TestExecutor_Run_NonCriticalFailureIsPartial(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	validate := h.addAgent(t, "validate", models.AgentStatusActive, succeedWith(map[string]any{"valid": true}))
	enrich := h.addAgent(t, "enrich", models.AgentStatusActive, failWith(errors.New("enrichment source down")))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: validate.ID, Order: 1, Critical: boolPtr(true)},
		{ID: "s2", AgentID: enrich.ID, Order: 2, Critical: boolPtr(false)},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPartiallyFailed, execution.Status)
	require.Len(t, execution.StepResults, 2)

	// Output reflects only the step that succeeded.
	assert.Equal(t, map[string]any{"valid": true}, execution.Output)
}

func TestExecutor_Run_StepTimeout(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	slow := &stubAgent{
		validateOK: true,
		execute: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			select {
			case <-time.After(2 * time.Second):
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	slowDef := h.addAgent(t, "slow", models.AgentStatusActive, slow)

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: slowDef.ID, Order: 1, TimeoutMs: 50},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.FailureCauseTimeout, execution.Cause)
	require.Len(t, execution.StepResults, 1)
	assert.Equal(t, models.FailureCauseTimeout, execution.StepResults[0].Cause)
	assert.True(t, execution.StepResults[0].Recovered)
	assert.Equal(t, 1, slow.errorHookCalls())
}

func TestExecutor_Run_RecoveryHookFailureIsNotRecovered(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	agent := failWith(errors.New("processing error"))
	agent.onError = func(_ error) error {
		return errors.New("recovery also failed")
	}
	def := h.addAgent(t, "failing", models.AgentStatusActive, agent)

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: def.ID, Order: 1},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	require.Len(t, execution.StepResults, 1)
	assert.False(t, execution.StepResults[0].Recovered)
	assert.Equal(t, 1, agent.errorHookCalls())
}

func TestExecutor_Run_ValidationFailureSkipsRecoveryHook(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	rejecting := &stubAgent{
		validateOK: false,
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			t.Error("execute must not run when validation rejects the input")

			return nil, nil
		},
	}
	def := h.addAgent(t, "rejecting", models.AgentStatusActive, rejecting)

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: def.ID, Order: 1},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.FailureCauseValidation, execution.Cause)
	assert.Equal(t, 0, rejecting.errorHookCalls())
}

func TestExecutor_Run_CancelledBetweenSteps(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithCancel(context.Background())

	// Step one cancels the execution context while running; the running step
	// completes, steps two and three never start.
	first := &stubAgent{
		validateOK: true,
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			cancel()

			return map[string]any{"done": 1}, nil
		},
	}
	firstDef := h.addAgent(t, "canceller", models.AgentStatusActive, first)
	secondDef := h.addAgent(t, "second-step", models.AgentStatusActive, succeedWith(nil))
	thirdDef := h.addAgent(t, "third-step", models.AgentStatusActive, succeedWith(nil))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: firstDef.ID, Order: 1},
		{ID: "s2", AgentID: secondDef.ID, Order: 2},
		{ID: "s3", AgentID: thirdDef.ID, Order: 3},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.FailureCauseCancelled, execution.Cause)
	assert.Len(t, execution.StepResults, 1)
	assert.Equal(t, models.StepStatusSucceeded, execution.StepResults[0].Status)
}

func TestExecutor_Run_AgentUnavailable(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	inactive := h.addAgent(t, "inactive", models.AgentStatusInactive, succeedWith(nil))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: inactive.ID, Order: 1},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.FailureCauseAgent, execution.Cause)
}

func TestExecutor_Run_StepOrderConflict(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	def := h.addAgent(t, "dup", models.AgentStatusActive, succeedWith(nil))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: def.ID, Order: 1},
		{ID: "s2", AgentID: def.ID, Order: 1},
	}, nil)

	execution := newExecution(pipeline.ID, nil)

	_, err := h.executor.Run(ctx, execution)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepOrderConflict)

	// The accepted execution must be observable as failed, never pending.
	stored, err := h.persistence.ExecutionRepository().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, models.FailureCauseConfiguration, stored.Cause)
	assert.NotNil(t, stored.FinishedAt)
	assert.Len(t, h.bus.published(events.PipelineExecutionCompletedEvent), 1)
}

func TestExecutor_Run_PipelineNotActive(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	pipeline := h.addPipeline(t, nil, nil)
	pipeline.Status = models.PipelineStatusDraft
	require.NoError(t, h.persistence.PipelineRepository().SavePipeline(ctx, pipeline))

	_, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipelineNotActive)
}

func TestExecutor_Run_BrokerOutageDoesNotFailExecution(t *testing.T) {
	h := newTestHarness(t)
	h.bus.fail = true
	ctx := context.Background()

	def := h.addAgent(t, "steady", models.AgentStatusActive, succeedWith(map[string]any{"ok": true}))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: def.ID, Order: 1},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
	assert.True(t, h.executor.PublishDegraded())
}

func TestExecutor_Run_CollectMergeStrategy(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	first := h.addAgent(t, "writer-one", models.AgentStatusActive, succeedWith(map[string]any{"value": 1}))
	second := h.addAgent(t, "writer-two", models.AgentStatusActive, succeedWith(map[string]any{"value": 2}))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: first.ID, Order: 1},
		{ID: "s2", AgentID: second.ID, Order: 2},
	}, map[string]any{"merge_strategy": "collect"})

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
	assert.Equal(t, []any{1, 2}, execution.Output["value"])
}

func TestExecutor_Run_ExecutionIsPersistedTerminal(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	def := h.addAgent(t, "persisted", models.AgentStatusActive, succeedWith(map[string]any{"ok": true}))

	pipeline := h.addPipeline(t, []*models.PipelineStep{
		{ID: "s1", AgentID: def.ID, Order: 1},
	}, nil)

	execution, err := h.executor.Run(ctx, newExecution(pipeline.ID, nil))
	require.NoError(t, err)

	stored, err := h.persistence.ExecutionRepository().ExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsTerminal())
	assert.Equal(t, execution.Status, stored.Status)
	assert.Len(t, stored.StepResults, 1)
}

func TestMergeOutputs_LastWriteWins(t *testing.T) {
	steps := []*models.PipelineStep{
		{ID: "s1", Order: 1},
		{ID: "s2", Order: 2},
	}
	outputs := map[string]map[string]any{
		"s1": {"a": 1, "b": 1},
		"s2": {"a": 2},
	}

	merged := MergeOutputs(models.MergeStrategyLast, steps, outputs)

	assert.Equal(t, 2, merged["a"])
	assert.Equal(t, 1, merged["b"])
}

func TestMergeOutputs_CollectKeepsAllValues(t *testing.T) {
	steps := []*models.PipelineStep{
		{ID: "s1", Order: 1},
		{ID: "s2", Order: 2},
	}
	outputs := map[string]map[string]any{
		"s1": {"a": 1, "b": 1},
		"s2": {"a": 2},
	}

	merged := MergeOutputs(models.MergeStrategyCollect, steps, outputs)

	assert.Equal(t, []any{1, 2}, merged["a"])
	assert.Equal(t, 1, merged["b"])
}
