package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/orchestrator"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// Execution accepts execution requests and exposes execution history. Runs
// are driven asynchronously; the returned record carries the id to poll.
type Execution struct {
	persistence persistence.Persistence
	executor    *orchestrator.Executor
	logger      *slog.Logger

	wg sync.WaitGroup
}

func NewExecution(p persistence.Persistence, executor *orchestrator.Executor, logger *slog.Logger) *Execution {
	return &Execution{
		persistence: p,
		executor:    executor,
		logger:      logger.With("module", "execution-service"),
	}
}

// Execute accepts a run request against an active pipeline. The execution is
// persisted before this returns, then driven to a terminal status in the
// background.
func (s *Execution) Execute(ctx context.Context, pipelineID string, input map[string]any) (*models.PipelineExecution, error) {
	pipeline, err := s.persistence.PipelineRepository().PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if !pipeline.IsExecutable() {
		return nil, fmt.Errorf("pipeline %s status is %s: %w", pipelineID, pipeline.Status, ErrPipelineNotActive)
	}

	execution := &models.PipelineExecution{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Status:     models.ExecutionStatusPending,
		Input:      input,
	}

	if err := s.persistence.ExecutionRepository().SaveExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution request: %w", err)
	}

	s.wg.Add(1)

	// The run outlives the request context; only shutdown cancels it.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer s.wg.Done()

		if _, err := s.executor.Run(runCtx, execution); err != nil {
			s.logger.Error("Execution run failed before starting",
				"execution_id", execution.ID, "pipeline_id", pipelineID, "error", err)
		}
	}()

	return execution, nil
}

// ExecuteSync drives the execution to a terminal status before returning.
func (s *Execution) ExecuteSync(ctx context.Context, pipelineID string, input map[string]any) (*models.PipelineExecution, error) {
	pipeline, err := s.persistence.PipelineRepository().PipelineByID(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	if !pipeline.IsExecutable() {
		return nil, fmt.Errorf("pipeline %s status is %s: %w", pipelineID, pipeline.Status, ErrPipelineNotActive)
	}

	execution := &models.PipelineExecution{
		ID:         uuid.New().String(),
		PipelineID: pipelineID,
		Status:     models.ExecutionStatusPending,
		Input:      input,
	}

	return s.executor.Run(ctx, execution)
}

// FetchByID retrieves an execution record.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.PipelineExecution, error) {
	return s.persistence.ExecutionRepository().ExecutionByID(ctx, id)
}

// ListExecutionsRequest pages and filters execution history.
type ListExecutionsRequest struct {
	PipelineID string
	Limit      int
	Offset     int
}

// List returns execution history, newest first.
func (s *Execution) List(ctx context.Context, req ListExecutionsRequest) ([]*models.PipelineExecution, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	return s.persistence.ExecutionRepository().ListExecutions(ctx, persistence.ListExecutionsOptions{
		PipelineID: req.PipelineID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
}

// Wait blocks until all background runs accepted by Execute have finished.
func (s *Execution) Wait() {
	s.wg.Wait()
}
