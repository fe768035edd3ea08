// Package orchestrator drives pipeline executions: it resolves each step's
// agent, runs the step lifecycle in strict order and publishes lifecycle
// events to the bus.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/otelhelper"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
	"github.com/stackconsult/interfaceAgent/pkg/protocol"
	"github.com/stackconsult/interfaceAgent/pkg/registry"
)

var (
	// ErrPipelineNotActive indicates execution was requested against a
	// pipeline whose status is not active.
	ErrPipelineNotActive = errors.New("pipeline is not active")

	// ErrStepOrderConflict indicates duplicate step order values, a
	// data-integrity error surfaced before any step runs.
	ErrStepOrderConflict = errors.New("duplicate step order values")

	// ErrAgentUnavailable indicates a step's agent could not be resolved or
	// its definition is not active.
	ErrAgentUnavailable = errors.New("agent unavailable")
)

// DefaultStepTimeout bounds a step execution when the step carries no
// explicit timeout.
const DefaultStepTimeout = 30 * time.Second

type Executor struct {
	persistence     persistence.Persistence
	registry        *registry.Registry
	eventBus        eventbus.EventPublisher
	logger          *slog.Logger
	tracer          trace.Tracer
	stepTimeout     time.Duration
	publishDegraded atomic.Bool
}

func NewExecutor(p persistence.Persistence, reg *registry.Registry, bus eventbus.EventPublisher, logger *slog.Logger) *Executor {
	return &Executor{
		persistence: p,
		registry:    reg,
		eventBus:    bus,
		logger:      logger.With("module", "orchestrator"),
		stepTimeout: DefaultStepTimeout,
	}
}

// WithTracer enables per-execution and per-step spans.
func (e *Executor) WithTracer(tracer trace.Tracer) *Executor {
	e.tracer = tracer

	return e
}

// WithStepTimeout overrides the default per-step timeout.
func (e *Executor) WithStepTimeout(timeout time.Duration) *Executor {
	if timeout > 0 {
		e.stepTimeout = timeout
	}

	return e
}

// PublishDegraded reports whether the last event publication failed. Exposed
// as a health signal; execution correctness is unaffected.
func (e *Executor) PublishDegraded() bool {
	return e.publishDegraded.Load()
}

// Run drives one execution to a terminal status. The execution record is
// owned exclusively by this call until it terminates; it is persisted on
// every transition and never mutated afterwards.
func (e *Executor) Run(ctx context.Context, execution *models.PipelineExecution) (*models.PipelineExecution, error) {
	logger := e.logger.With("pipeline_id", execution.PipelineID, "execution_id", execution.ID)

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "pipeline.execute",
			attribute.String(otelhelper.PipelineIDKey, execution.PipelineID),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		)
		defer span.End()
	}

	pipeline, steps, err := e.loadSnapshot(ctx, execution.PipelineID)
	if err != nil {
		e.failWithoutStarting(ctx, logger, execution, err)

		return nil, err
	}

	execution.Status = models.ExecutionStatusRunning
	execution.StartedAt = time.Now().UTC()
	execution.StepResults = make([]models.StepResult, 0, len(steps))

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		err = fmt.Errorf("failed to persist execution start: %w", err)
		e.failWithoutStarting(ctx, logger, execution, err)

		return nil, err
	}

	logger.InfoContext(ctx, "Execution started", "steps", len(steps))

	current := execution.Input
	outputs := make(map[string]map[string]any, len(steps))
	stopped := false
	nonCriticalFailed := false

	var stopCause models.FailureCause

	var stopError string

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			// Cancellation is honored between steps only; results of steps
			// already run stay intact.
			stopped = true
			stopCause = models.FailureCauseCancelled
			stopError = "execution cancelled"

			logger.InfoContext(ctx, "Execution cancelled between steps",
				"completed_steps", len(execution.StepResults))

			break
		}

		result, output := e.runStep(ctx, logger, pipeline, execution, step, current)
		execution.StepResults = append(execution.StepResults, result)

		if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
			logger.WarnContext(ctx, "Failed to persist step result", "step_id", step.ID, "error", err)
		}

		if result.Status == models.StepStatusSucceeded {
			outputs[step.ID] = output
			current = output

			continue
		}

		if step.IsCritical() {
			stopped = true
			stopCause = result.Cause
			stopError = result.Error

			break
		}

		nonCriticalFailed = true
	}

	e.finish(ctx, logger, pipeline, execution, steps, outputs, stopped, nonCriticalFailed, stopCause, stopError)

	return execution, nil
}

func (e *Executor) loadSnapshot(ctx context.Context, pipelineID string) (*models.Pipeline, []*models.PipelineStep, error) {
	pipeline, err := e.persistence.PipelineRepository().PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, nil, err
	}

	if !pipeline.IsExecutable() {
		return nil, nil, fmt.Errorf("pipeline %s: %w", pipelineID, ErrPipelineNotActive)
	}

	// Snapshot so concurrent edits never tear an in-flight execution.
	snapshot := pipeline.Snapshot()

	steps := snapshot.Steps
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})

	for i := 1; i < len(steps); i++ {
		if steps[i].Order == steps[i-1].Order {
			return nil, nil, fmt.Errorf("pipeline %s order %d: %w",
				pipelineID, steps[i].Order, ErrStepOrderConflict)
		}
	}

	return snapshot, steps, nil
}

// failWithoutStarting records a terminal failure for an execution whose run
// could not start. An accepted execution must never remain observable as
// pending once Run has returned.
func (e *Executor) failWithoutStarting(ctx context.Context, logger *slog.Logger, execution *models.PipelineExecution, cause error) {
	now := time.Now().UTC()

	execution.Status = models.ExecutionStatusFailed
	execution.Cause = models.FailureCauseConfiguration
	execution.Error = cause.Error()

	if execution.StartedAt.IsZero() {
		execution.StartedAt = now
	}

	execution.FinishedAt = &now

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist execution failure", "error", err)
	}

	logger.ErrorContext(ctx, "Execution failed without starting", "error", cause)

	e.publish(ctx, execution.ID, events.PipelineExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.PipelineExecutionCompletedEvent, execution.ID),
		PipelineID: execution.PipelineID,
		Status:     execution.Status,
		Error:      execution.Error,
		Cause:      execution.Cause,
	})
}

func (e *Executor) runStep(
	ctx context.Context,
	logger *slog.Logger,
	pipeline *models.Pipeline,
	execution *models.PipelineExecution,
	step *models.PipelineStep,
	input map[string]any,
) (models.StepResult, map[string]any) {
	stepLogger := logger.With("step_id", step.ID, "order", step.Order)
	started := time.Now()

	agentDef, agent, err := e.resolveAgent(ctx, step)
	if err != nil {
		stepLogger.ErrorContext(ctx, "Agent resolution failed", "error", err)

		result := models.StepResult{
			StepID:     step.ID,
			Status:     models.StepStatusFailed,
			Error:      err.Error(),
			Cause:      models.FailureCauseAgent,
			DurationMs: time.Since(started).Milliseconds(),
		}
		e.publishStepFailed(ctx, pipeline, execution, step, "", result)

		return result, nil
	}

	e.publish(ctx, execution.ID, events.PipelineStepStarted{
		BaseEvent:  events.NewBaseEvent(events.PipelineStepStartedEvent, execution.ID),
		PipelineID: pipeline.ID,
		StepID:     step.ID,
		AgentType:  agentDef.TypeName,
		Order:      step.Order,
	})

	var stepSpan trace.Span

	if e.tracer != nil {
		ctx, stepSpan = otelhelper.StartSpan(ctx, e.tracer, "pipeline.step",
			attribute.String(otelhelper.StepIDKey, step.ID),
			attribute.String(otelhelper.AgentTypeKey, agentDef.TypeName),
		)
		defer stepSpan.End()
	}

	// Validation failure short-circuits the step; it is an outcome, not an
	// error path, so the recovery hook is not invoked.
	if !agent.ValidateInput(ctx, input) {
		stepLogger.InfoContext(ctx, "Step input validation failed")

		result := models.StepResult{
			StepID:     step.ID,
			AgentType:  agentDef.TypeName,
			Status:     models.StepStatusFailed,
			Error:      "input validation failed",
			Cause:      models.FailureCauseValidation,
			DurationMs: time.Since(started).Milliseconds(),
		}
		e.publishStepFailed(ctx, pipeline, execution, step, agentDef.TypeName, result)

		return result, nil
	}

	output, execErr := e.executeWithTimeout(ctx, stepLogger, agent, step, input)
	duration := time.Since(started)

	if execErr != nil {
		cause := models.FailureCauseProcessing
		if errors.Is(execErr, context.DeadlineExceeded) {
			cause = models.FailureCauseTimeout
		}

		if stepSpan != nil {
			otelhelper.SetError(stepSpan, execErr,
				attribute.String(otelhelper.StepIDKey, step.ID))
		}

		recovered := e.invokeOnError(ctx, stepLogger, agent, execErr, input)

		stepLogger.WarnContext(ctx, "Step failed",
			"error", execErr, "cause", cause, "recovered", recovered)

		result := models.StepResult{
			StepID:     step.ID,
			AgentType:  agentDef.TypeName,
			Status:     models.StepStatusFailed,
			Error:      execErr.Error(),
			Cause:      cause,
			Recovered:  recovered,
			DurationMs: duration.Milliseconds(),
		}
		e.publishStepFailed(ctx, pipeline, execution, step, agentDef.TypeName, result)

		return result, nil
	}

	stepLogger.InfoContext(ctx, "Step succeeded", "duration_ms", duration.Milliseconds())

	e.publish(ctx, execution.ID, events.PipelineStepSucceeded{
		BaseEvent:  events.NewBaseEvent(events.PipelineStepSucceededEvent, execution.ID),
		PipelineID: pipeline.ID,
		StepID:     step.ID,
		AgentType:  agentDef.TypeName,
		Output:     output,
		DurationMs: duration.Milliseconds(),
	})

	return models.StepResult{
		StepID:     step.ID,
		AgentType:  agentDef.TypeName,
		Status:     models.StepStatusSucceeded,
		Output:     output,
		DurationMs: duration.Milliseconds(),
	}, output
}

// resolveAgent loads the step's agent definition and constructs a fresh
// instance. Plugin-backed types are loaded on demand when the registry does
// not know them yet.
func (e *Executor) resolveAgent(ctx context.Context, step *models.PipelineStep) (*models.Agent, protocol.Agent, error) {
	agentDef, err := e.persistence.AgentRepository().AgentByID(ctx, step.AgentID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}

	if !agentDef.IsActive() {
		return nil, nil, fmt.Errorf("%w: agent %s status is %s",
			ErrAgentUnavailable, agentDef.TypeName, agentDef.Status)
	}

	if !e.registry.IsRegistered(agentDef.TypeName) {
		if err := e.loadPluginType(agentDef); err != nil {
			return nil, nil, err
		}
	}

	config := mergeConfig(agentDef.Configuration, step.Configuration)

	agent, err := e.registry.Create(agentDef.TypeName, config)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}

	return agentDef, agent, nil
}

func (e *Executor) loadPluginType(agentDef *models.Agent) error {
	path, _ := agentDef.Configuration["plugin_path"].(string)
	symbol, _ := agentDef.Configuration["plugin_symbol"].(string)

	if path == "" || symbol == "" {
		return fmt.Errorf("%w: type %s is not registered and has no plugin reference",
			ErrAgentUnavailable, agentDef.TypeName)
	}

	if err := e.registry.LoadAgentPlugin(path, symbol, agentDef.TypeName); err != nil {
		return fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}

	return nil
}

// executeWithTimeout bounds the step by its configured timeout. The step
// context deliberately does not inherit cancellation: a running step is never
// killed mid-flight, cancellation takes effect between steps.
func (e *Executor) executeWithTimeout(
	ctx context.Context,
	logger *slog.Logger,
	agent protocol.Agent,
	step *models.PipelineStep,
	input map[string]any,
) (map[string]any, error) {
	timeout := e.stepTimeout
	if step.TimeoutMs > 0 {
		timeout = time.Duration(step.TimeoutMs) * time.Millisecond
	}

	stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type stepOutcome struct {
		output map[string]any
		err    error
	}

	done := make(chan stepOutcome, 1)

	go func() {
		output, err := agent.Execute(stepCtx, input, logger)
		done <- stepOutcome{output: output, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.output, outcome.err
	case <-stepCtx.Done():
		return nil, fmt.Errorf("step %s: %w", step.ID, context.DeadlineExceeded)
	}
}

// invokeOnError runs the recovery hook. Its failures are logged, never
// propagated; a clean return tags the step result as recovered.
func (e *Executor) invokeOnError(ctx context.Context, logger *slog.Logger, agent protocol.Agent, execErr error, input map[string]any) bool {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Recovery hook panicked", "panic", r)
		}
	}()

	if err := agent.OnError(ctx, execErr, input); err != nil {
		logger.WarnContext(ctx, "Recovery hook failed", "error", err)

		return false
	}

	return true
}

func (e *Executor) finish(
	ctx context.Context,
	logger *slog.Logger,
	pipeline *models.Pipeline,
	execution *models.PipelineExecution,
	steps []*models.PipelineStep,
	outputs map[string]map[string]any,
	stopped bool,
	nonCriticalFailed bool,
	stopCause models.FailureCause,
	stopError string,
) {
	switch {
	case stopped:
		execution.Status = models.ExecutionStatusFailed
		execution.Cause = stopCause
		execution.Error = stopError
	case nonCriticalFailed:
		execution.Status = models.ExecutionStatusPartiallyFailed
	default:
		execution.Status = models.ExecutionStatusSucceeded
	}

	execution.Output = MergeOutputs(pipeline.MergeStrategyOrDefault(), steps, outputs)

	now := time.Now().UTC()
	execution.FinishedAt = &now

	if err := e.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		logger.ErrorContext(ctx, "Failed to persist terminal execution state", "error", err)
	}

	logger.InfoContext(ctx, "Execution finished",
		"status", execution.Status,
		"steps_executed", len(execution.StepResults),
		"duration_ms", now.Sub(execution.StartedAt).Milliseconds())

	e.publish(ctx, execution.ID, events.PipelineExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.PipelineExecutionCompletedEvent, execution.ID),
		PipelineID:    pipeline.ID,
		Status:        execution.Status,
		StepsExecuted: len(execution.StepResults),
		Output:        execution.Output,
		Error:         execution.Error,
		Cause:         execution.Cause,
		DurationMs:    now.Sub(execution.StartedAt).Milliseconds(),
	})
}

func (e *Executor) publishStepFailed(
	ctx context.Context,
	pipeline *models.Pipeline,
	execution *models.PipelineExecution,
	step *models.PipelineStep,
	agentType string,
	result models.StepResult,
) {
	e.publish(ctx, execution.ID, events.PipelineStepFailed{
		BaseEvent:  events.NewBaseEvent(events.PipelineStepFailedEvent, execution.ID),
		PipelineID: pipeline.ID,
		StepID:     step.ID,
		AgentType:  agentType,
		Error:      result.Error,
		Cause:      result.Cause,
		Recovered:  result.Recovered,
		Critical:   step.IsCritical(),
		DurationMs: result.DurationMs,
	})
}

// publish sends one event keyed by execution id so consumers see a single
// execution's events in publication order. A broker failure degrades
// observability, never execution correctness.
func (e *Executor) publish(ctx context.Context, executionID string, event eventbus.Event) {
	if err := e.eventBus.Publish(ctx, executionID, event); err != nil {
		e.publishDegraded.Store(true)
		e.logger.WarnContext(ctx, "Event publication degraded",
			"event_type", event.GetType(), "execution_id", executionID, "error", err)

		return
	}

	e.publishDegraded.Store(false)
}

func mergeConfig(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))

	for k, v := range base {
		merged[k] = v
	}

	for k, v := range override {
		merged[k] = v
	}

	return merged
}
