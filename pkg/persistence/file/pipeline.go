package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// PipelineRepository stores pipeline definitions under <root>/pipelines.
type PipelineRepository struct {
	root string
}

func (r *PipelineRepository) dir() string {
	return filepath.Join(r.root, "pipelines")
}

func (r *PipelineRepository) Pipelines(ctx context.Context) ([]*models.Pipeline, error) {
	ids, err := listEntityIDs(r.dir())
	if err != nil {
		return nil, persistence.NewRepositoryError("Pipelines", "", err)
	}

	pipelines := make([]*models.Pipeline, 0, len(ids))

	for _, id := range ids {
		pipeline, err := r.PipelineByID(ctx, id)
		if err != nil {
			return nil, err
		}

		pipelines = append(pipelines, pipeline)
	}

	sort.Slice(pipelines, func(i, j int) bool {
		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})

	return pipelines, nil
}

func (r *PipelineRepository) PipelineByID(_ context.Context, id string) (*models.Pipeline, error) {
	var pipeline models.Pipeline

	found, err := readEntity(r.dir(), id, &pipeline)
	if err != nil {
		return nil, persistence.NewRepositoryError("PipelineByID", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("PipelineByID", id, persistence.ErrPipelineNotFound)
	}

	return &pipeline, nil
}

func (r *PipelineRepository) SavePipeline(_ context.Context, pipeline *models.Pipeline) error {
	if err := writeEntity(r.dir(), pipeline.ID, pipeline); err != nil {
		return persistence.NewRepositoryError("SavePipeline", pipeline.ID, err)
	}

	return nil
}

func (r *PipelineRepository) DeletePipeline(_ context.Context, id string) error {
	if err := removeEntity(r.dir(), id); err != nil {
		return persistence.NewRepositoryError("DeletePipeline", id, err)
	}

	return nil
}
