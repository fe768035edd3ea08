package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stackconsult/interfaceAgent/pkg/audit"
	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
	"github.com/stackconsult/interfaceAgent/pkg/registry"
)

// Agent manages agent definitions: registration, activation lifecycle and
// referential integrity against pipelines.
type Agent struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	auditLog    *audit.Logger
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewAgent(
	p persistence.Persistence,
	reg *registry.Registry,
	bus eventbus.EventPublisher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *Agent {
	return &Agent{
		persistence: p,
		registry:    reg,
		eventBus:    bus,
		auditLog:    auditLog,
		validate:    validator.New(),
		logger:      logger.With("module", "agent-service"),
	}
}

// List returns all agent definitions.
func (s *Agent) List(ctx context.Context) ([]*models.Agent, error) {
	return s.persistence.AgentRepository().Agents(ctx)
}

// FetchByID retrieves an agent definition by its id.
func (s *Agent) FetchByID(ctx context.Context, id string) (*models.Agent, error) {
	return s.persistence.AgentRepository().AgentByID(ctx, id)
}

// Create registers a new agent definition. The type name must be unique; new
// agents start inactive and must be activated explicitly.
func (s *Agent) Create(ctx context.Context, actor string, agent *models.Agent) (*models.Agent, error) {
	now := time.Now().UTC()
	agent.ID = uuid.New().String()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	if agent.Status == "" {
		agent.Status = models.AgentStatusInactive
	}

	if err := s.validate.Struct(agent); err != nil {
		return nil, NewValidationError("CreateAgent", "INVALID_AGENT", err.Error(), ErrInvalidRequest)
	}

	existing, err := s.persistence.AgentRepository().AgentByTypeName(ctx, agent.TypeName)
	if err != nil && !errors.Is(err, persistence.ErrAgentNotFound) {
		return nil, fmt.Errorf("failed to check type name uniqueness: %w", err)
	}

	if existing != nil {
		return nil, fmt.Errorf("type %q: %w", agent.TypeName, ErrAgentTypeExists)
	}

	if err := s.persistence.AgentRepository().SaveAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "agent.created",
		ResourceType: "agent",
		ResourceID:   agent.ID,
		Details:      map[string]any{"type_name": agent.TypeName},
	})

	return agent, nil
}

// Update modifies an agent definition. The type name is the stable registry
// key and cannot change.
func (s *Agent) Update(ctx context.Context, actor, id string, agent *models.Agent) (*models.Agent, error) {
	existing, err := s.persistence.AgentRepository().AgentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if agent.TypeName != "" && agent.TypeName != existing.TypeName {
		return nil, ErrTypeNameImmutable
	}

	agent.ID = existing.ID
	agent.TypeName = existing.TypeName
	agent.Status = existing.Status
	agent.CreatedAt = existing.CreatedAt
	agent.UpdatedAt = time.Now().UTC()

	if err := s.validate.Struct(agent); err != nil {
		return nil, NewValidationError("UpdateAgent", "INVALID_AGENT", err.Error(), ErrInvalidRequest)
	}

	if err := s.persistence.AgentRepository().SaveAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "agent.updated",
		ResourceType: "agent",
		ResourceID:   agent.ID,
	})

	return agent, nil
}

// Activate makes the agent resolvable by pipeline steps. The type must be
// bound to an implementation, either built-in or plugin-backed.
func (s *Agent) Activate(ctx context.Context, actor, id string) (*models.Agent, error) {
	agent, err := s.persistence.AgentRepository().AgentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.registry.IsRegistered(agent.TypeName) && !hasPluginReference(agent) {
		return nil, fmt.Errorf("type %q: %w", agent.TypeName, ErrAgentTypeUnbound)
	}

	agent.Status = models.AgentStatusActive
	agent.UpdatedAt = time.Now().UTC()

	if err := s.persistence.AgentRepository().SaveAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to activate agent: %w", err)
	}

	s.publish(ctx, agent.ID, events.AgentActivated{
		BaseEvent: events.NewBaseEvent(events.AgentActivatedEvent, ""),
		AgentID:   agent.ID,
		TypeName:  agent.TypeName,
		Actor:     actor,
		AgentName: agent.Name,
	})

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "agent.activated",
		ResourceType: "agent",
		ResourceID:   agent.ID,
		Details:      map[string]any{"type_name": agent.TypeName},
	})

	return agent, nil
}

// Deactivate withdraws the agent from step resolution. Running executions
// keep their resolved instances; new resolutions fail.
func (s *Agent) Deactivate(ctx context.Context, actor, id string) (*models.Agent, error) {
	agent, err := s.persistence.AgentRepository().AgentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	agent.Status = models.AgentStatusInactive
	agent.UpdatedAt = time.Now().UTC()

	if err := s.persistence.AgentRepository().SaveAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to deactivate agent: %w", err)
	}

	s.publish(ctx, agent.ID, events.AgentDeactivated{
		BaseEvent: events.NewBaseEvent(events.AgentDeactivatedEvent, ""),
		AgentID:   agent.ID,
		TypeName:  agent.TypeName,
		Actor:     actor,
		AgentName: agent.Name,
	})

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "agent.deactivated",
		ResourceType: "agent",
		ResourceID:   agent.ID,
		Details:      map[string]any{"type_name": agent.TypeName},
	})

	return agent, nil
}

// Delete removes an agent definition. Agents referenced by any pipeline step
// cannot be deleted.
func (s *Agent) Delete(ctx context.Context, actor, id string) error {
	agent, err := s.persistence.AgentRepository().AgentByID(ctx, id)
	if err != nil {
		return err
	}

	pipelines, err := s.persistence.PipelineRepository().Pipelines(ctx)
	if err != nil {
		return fmt.Errorf("failed to check agent references: %w", err)
	}

	for _, pipeline := range pipelines {
		for _, step := range pipeline.Steps {
			if step.AgentID == id {
				return fmt.Errorf("agent %s is bound by pipeline %s: %w", id, pipeline.ID, ErrAgentInUse)
			}
		}
	}

	if err := s.persistence.AgentRepository().DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		Actor:        actor,
		Action:       "agent.deleted",
		ResourceType: "agent",
		ResourceID:   id,
		Details:      map[string]any{"type_name": agent.TypeName},
	})

	return nil
}

func (s *Agent) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Event publication degraded",
			"event_type", event.GetType(), "error", err)
	}
}

func hasPluginReference(agent *models.Agent) bool {
	path, _ := agent.Configuration["plugin_path"].(string)
	symbol, _ := agent.Configuration["plugin_symbol"].(string)

	return path != "" && symbol != ""
}
