package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// ExecutionRepository stores pipeline executions under <root>/executions.
type ExecutionRepository struct {
	root string
}

func (r *ExecutionRepository) dir() string {
	return filepath.Join(r.root, "executions")
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.PipelineExecution, error) {
	var execution models.PipelineExecution

	found, err := readEntity(r.dir(), id, &execution)
	if err != nil {
		return nil, persistence.NewRepositoryError("ExecutionByID", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	return &execution, nil
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, execution *models.PipelineExecution) error {
	if err := writeEntity(r.dir(), execution.ID, execution); err != nil {
		return persistence.NewRepositoryError("SaveExecution", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ListExecutions(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.PipelineExecution, error) {
	ids, err := listEntityIDs(r.dir())
	if err != nil {
		return nil, persistence.NewRepositoryError("ListExecutions", "", err)
	}

	executions := make([]*models.PipelineExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.ExecutionByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if opts.PipelineID != "" && execution.PipelineID != opts.PipelineID {
			continue
		}

		executions = append(executions, execution)
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(executions) {
			return []*models.PipelineExecution{}, nil
		}

		executions = executions[opts.Offset:]
	}

	if opts.Limit > 0 && opts.Limit < len(executions) {
		executions = executions[:opts.Limit]
	}

	return executions, nil
}
