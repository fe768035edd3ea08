package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stackconsult/interfaceAgent/pkg/audit"
	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// Pipeline manages pipeline definitions and their step compositions.
type Pipeline struct {
	persistence persistence.Persistence
	auditLog    *audit.Logger
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewPipeline(p persistence.Persistence, auditLog *audit.Logger, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		persistence: p,
		auditLog:    auditLog,
		validate:    validator.New(),
		logger:      logger.With("module", "pipeline-service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Pipeline) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns all pipeline definitions.
func (s *Pipeline) List(ctx context.Context) ([]*models.Pipeline, error) {
	return s.persistence.PipelineRepository().Pipelines(ctx)
}

// FetchByID retrieves a pipeline by its id.
func (s *Pipeline) FetchByID(ctx context.Context, id string) (*models.Pipeline, error) {
	return s.persistence.PipelineRepository().PipelineByID(ctx, id)
}

// Create adds a new pipeline in draft status. Names must be unique.
func (s *Pipeline) Create(ctx context.Context, actor string, pipeline *models.Pipeline) (*models.Pipeline, error) {
	now := time.Now().UTC()
	pipeline.ID = uuid.New().String()
	pipeline.CreatedAt = now
	pipeline.UpdatedAt = now

	if pipeline.Status == "" {
		pipeline.Status = models.PipelineStatusDraft
	}

	if err := s.validate.Struct(pipeline); err != nil {
		return nil, NewValidationError("CreatePipeline", "INVALID_PIPELINE", err.Error(), ErrInvalidRequest)
	}

	if err := s.validateMergeStrategy(pipeline); err != nil {
		return nil, err
	}

	if err := ensureUniqueStepOrders(pipeline.Steps); err != nil {
		return nil, err
	}

	if err := s.ensureUniqueName(ctx, pipeline.Name, pipeline.ID); err != nil {
		return nil, err
	}

	for _, step := range pipeline.Steps {
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
	}

	if err := s.persistence.PipelineRepository().SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "pipeline.created",
		ResourceType: "pipeline",
		ResourceID:   pipeline.ID,
		Details:      map[string]any{"name": pipeline.Name},
	})

	return pipeline, nil
}

// Update modifies a pipeline definition. Archived pipelines are immutable.
// Executions already running keep the definition they snapshotted.
func (s *Pipeline) Update(ctx context.Context, actor, id string, pipeline *models.Pipeline) (*models.Pipeline, error) {
	existing, err := s.persistence.PipelineRepository().PipelineByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.PipelineStatusArchived {
		return nil, ErrPipelineArchived
	}

	pipeline.ID = existing.ID
	pipeline.Status = existing.Status
	pipeline.CreatedAt = existing.CreatedAt
	pipeline.UpdatedAt = time.Now().UTC()

	if err := s.validate.Struct(pipeline); err != nil {
		return nil, NewValidationError("UpdatePipeline", "INVALID_PIPELINE", err.Error(), ErrInvalidRequest)
	}

	if err := s.validateMergeStrategy(pipeline); err != nil {
		return nil, err
	}

	if err := ensureUniqueStepOrders(pipeline.Steps); err != nil {
		return nil, err
	}

	if pipeline.Name != existing.Name {
		if err := s.ensureUniqueName(ctx, pipeline.Name, pipeline.ID); err != nil {
			return nil, err
		}
	}

	for _, step := range pipeline.Steps {
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
	}

	if err := s.persistence.PipelineRepository().SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to update pipeline: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "pipeline.updated",
		ResourceType: "pipeline",
		ResourceID:   pipeline.ID,
	})

	return pipeline, nil
}

// AddStep appends a step to the pipeline. The bound agent must exist and the
// order value must be free.
func (s *Pipeline) AddStep(ctx context.Context, actor, pipelineID string, step *models.PipelineStep) (*models.Pipeline, error) {
	pipeline, err := s.persistence.PipelineRepository().PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if pipeline.Status == models.PipelineStatusArchived {
		return nil, ErrPipelineArchived
	}

	if err := s.validate.Struct(step); err != nil {
		return nil, NewValidationError("AddStep", "INVALID_STEP", err.Error(), ErrInvalidRequest)
	}

	if _, err := s.persistence.AgentRepository().AgentByID(ctx, step.AgentID); err != nil {
		return nil, err
	}

	for _, existing := range pipeline.Steps {
		if existing.Order == step.Order {
			return nil, fmt.Errorf("order %d: %w", step.Order, ErrStepOrderTaken)
		}
	}

	if step.ID == "" {
		step.ID = uuid.New().String()
	}

	pipeline.Steps = append(pipeline.Steps, step)
	pipeline.UpdatedAt = time.Now().UTC()

	if err := s.persistence.PipelineRepository().SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to add step: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "pipeline.step.added",
		ResourceType: "pipeline",
		ResourceID:   pipeline.ID,
		Details:      map[string]any{"step_id": step.ID, "agent_id": step.AgentID, "order": step.Order},
	})

	return pipeline, nil
}

// RemoveStep deletes a step from the pipeline.
func (s *Pipeline) RemoveStep(ctx context.Context, actor, pipelineID, stepID string) (*models.Pipeline, error) {
	pipeline, err := s.persistence.PipelineRepository().PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if pipeline.Status == models.PipelineStatusArchived {
		return nil, ErrPipelineArchived
	}

	steps := make([]*models.PipelineStep, 0, len(pipeline.Steps))
	removed := false

	for _, step := range pipeline.Steps {
		if step.ID == stepID {
			removed = true

			continue
		}

		steps = append(steps, step)
	}

	if !removed {
		return pipeline, nil
	}

	pipeline.Steps = steps
	pipeline.UpdatedAt = time.Now().UTC()

	if err := s.persistence.PipelineRepository().SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to remove step: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "pipeline.step.removed",
		ResourceType: "pipeline",
		ResourceID:   pipeline.ID,
		Details:      map[string]any{"step_id": stepID},
	})

	return pipeline, nil
}

// SetStatus transitions the pipeline lifecycle. Archiving is terminal;
// activation requires at least one step.
func (s *Pipeline) SetStatus(ctx context.Context, actor, id string, status models.PipelineStatus) (*models.Pipeline, error) {
	pipeline, err := s.persistence.PipelineRepository().PipelineByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if pipeline.Status == models.PipelineStatusArchived {
		return nil, fmt.Errorf("pipeline %s is archived: %w", id, ErrInvalidStatusTransition)
	}

	if status == models.PipelineStatusActive && len(pipeline.Steps) == 0 {
		return nil, fmt.Errorf("pipeline %s: %w", id, ErrPipelineHasNoSteps)
	}

	if !validTransition(pipeline.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", pipeline.Status, status, ErrInvalidStatusTransition)
	}

	pipeline.Status = status
	pipeline.UpdatedAt = time.Now().UTC()

	if err := s.persistence.PipelineRepository().SavePipeline(ctx, pipeline); err != nil {
		return nil, fmt.Errorf("failed to update pipeline status: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "pipeline.status.changed",
		ResourceType: "pipeline",
		ResourceID:   pipeline.ID,
		Details:      map[string]any{"status": string(status)},
	})

	return pipeline, nil
}

// Delete removes a pipeline. Active pipelines must be paused or archived first.
func (s *Pipeline) Delete(ctx context.Context, actor, id string) error {
	pipeline, err := s.persistence.PipelineRepository().PipelineByID(ctx, id)
	if err != nil {
		return err
	}

	if pipeline.Status == models.PipelineStatusActive {
		return fmt.Errorf("pipeline %s: %w", id, ErrPipelineActive)
	}

	if err := s.persistence.PipelineRepository().DeletePipeline(ctx, id); err != nil {
		return fmt.Errorf("failed to delete pipeline: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "pipeline.deleted",
		ResourceType: "pipeline",
		ResourceID:   id,
		Details:      map[string]any{"name": pipeline.Name},
	})

	return nil
}

func (s *Pipeline) ensureUniqueName(ctx context.Context, name, selfID string) error {
	pipelines, err := s.persistence.PipelineRepository().Pipelines(ctx)
	if err != nil {
		return fmt.Errorf("failed to check name uniqueness: %w", err)
	}

	for _, existing := range pipelines {
		if existing.Name == name && existing.ID != selfID {
			return fmt.Errorf("name %q: %w", name, ErrPipelineNameExists)
		}
	}

	return nil
}

// ensureUniqueStepOrders rejects step compositions that could never execute.
// Duplicate order values make the execution order ambiguous.
func ensureUniqueStepOrders(steps []*models.PipelineStep) error {
	seen := make(map[int]struct{}, len(steps))

	for _, step := range steps {
		if _, taken := seen[step.Order]; taken {
			return fmt.Errorf("order %d: %w", step.Order, ErrStepOrderTaken)
		}

		seen[step.Order] = struct{}{}
	}

	return nil
}

func (s *Pipeline) validateMergeStrategy(pipeline *models.Pipeline) error {
	if pipeline.Configuration == nil {
		return nil
	}

	raw, ok := pipeline.Configuration["merge_strategy"]
	if !ok {
		return nil
	}

	strategy, ok := raw.(string)
	if !ok {
		return fmt.Errorf("merge_strategy must be a string: %w", ErrInvalidMergeStrategy)
	}

	switch models.MergeStrategy(strategy) {
	case models.MergeStrategyLast, models.MergeStrategyCollect:
		return nil
	default:
		return fmt.Errorf("merge_strategy %q: %w", strategy, ErrInvalidMergeStrategy)
	}
}

func validTransition(from, to models.PipelineStatus) bool {
	if from == to {
		return true
	}

	switch from {
	case models.PipelineStatusDraft:
		return to == models.PipelineStatusActive || to == models.PipelineStatusArchived
	case models.PipelineStatusActive:
		return to == models.PipelineStatusPaused || to == models.PipelineStatusArchived
	case models.PipelineStatusPaused:
		return to == models.PipelineStatusActive || to == models.PipelineStatusArchived
	default:
		return false
	}
}
