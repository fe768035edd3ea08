package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// AgentRepository stores agent definitions under <root>/agents.
type AgentRepository struct {
	root string
}

func (r *AgentRepository) dir() string {
	return filepath.Join(r.root, "agents")
}

func (r *AgentRepository) Agents(ctx context.Context) ([]*models.Agent, error) {
	ids, err := listEntityIDs(r.dir())
	if err != nil {
		return nil, persistence.NewRepositoryError("Agents", "", err)
	}

	agents := make([]*models.Agent, 0, len(ids))

	for _, id := range ids {
		agent, err := r.AgentByID(ctx, id)
		if err != nil {
			return nil, err
		}

		agents = append(agents, agent)
	}

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})

	return agents, nil
}

func (r *AgentRepository) AgentByID(_ context.Context, id string) (*models.Agent, error) {
	var agent models.Agent

	found, err := readEntity(r.dir(), id, &agent)
	if err != nil {
		return nil, persistence.NewRepositoryError("AgentByID", id, err)
	}

	if !found {
		return nil, persistence.NewRepositoryError("AgentByID", id, persistence.ErrAgentNotFound)
	}

	return &agent, nil
}

func (r *AgentRepository) AgentByTypeName(ctx context.Context, typeName string) (*models.Agent, error) {
	agents, err := r.Agents(ctx)
	if err != nil {
		return nil, err
	}

	for _, agent := range agents {
		if agent.TypeName == typeName {
			return agent, nil
		}
	}

	return nil, persistence.NewRepositoryError("AgentByTypeName", typeName, persistence.ErrAgentNotFound)
}

func (r *AgentRepository) SaveAgent(_ context.Context, agent *models.Agent) error {
	if err := writeEntity(r.dir(), agent.ID, agent); err != nil {
		return persistence.NewRepositoryError("SaveAgent", agent.ID, err)
	}

	return nil
}

func (r *AgentRepository) DeleteAgent(_ context.Context, id string) error {
	if err := removeEntity(r.dir(), id); err != nil {
		return persistence.NewRepositoryError("DeleteAgent", id, err)
	}

	return nil
}
