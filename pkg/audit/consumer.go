package audit

import (
	"context"
	"log/slog"

	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
	"github.com/stackconsult/interfaceAgent/pkg/models"
)

// Consumer turns bus events into audit records so engine-driven transitions
// are audited even when they originate on another node.
type Consumer struct {
	auditLog *Logger
	logger   *slog.Logger
}

func NewConsumer(auditLog *Logger, logger *slog.Logger) *Consumer {
	return &Consumer{
		auditLog: auditLog,
		logger:   logger.With("module", "audit-consumer"),
	}
}

// RegisterHandlers subscribes the consumer to the lifecycle events it audits.
func (c *Consumer) RegisterHandlers(bus eventbus.EventSubscriber) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.AgentActivatedEvent:             c.handleAgentActivated,
		events.AgentDeactivatedEvent:           c.handleAgentDeactivated,
		events.PipelineExecutionCompletedEvent: c.handleExecutionCompleted,
		events.AnomalyDetectedEvent:            c.handleAnomalyDetected,
	}

	for eventType, handler := range handlers {
		if err := bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return nil
}

func (c *Consumer) handleAgentActivated(ctx context.Context, event any) error {
	activated, ok := event.(*events.AgentActivated)
	if !ok {
		return nil
	}

	c.auditLog.Record(ctx, Entry{
		Actor:        activated.Actor,
		Action:       "agent.activated",
		ResourceType: "agent",
		ResourceID:   activated.AgentID,
		Details:      map[string]any{"type_name": activated.TypeName},
	})

	return nil
}

func (c *Consumer) handleAgentDeactivated(ctx context.Context, event any) error {
	deactivated, ok := event.(*events.AgentDeactivated)
	if !ok {
		return nil
	}

	c.auditLog.Record(ctx, Entry{
		Actor:        deactivated.Actor,
		Action:       "agent.deactivated",
		ResourceType: "agent",
		ResourceID:   deactivated.AgentID,
		Details:      map[string]any{"type_name": deactivated.TypeName},
	})

	return nil
}

func (c *Consumer) handleExecutionCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.PipelineExecutionCompleted)
	if !ok {
		return nil
	}

	status := models.AuditStatusSuccess
	if completed.Status == models.ExecutionStatusFailed {
		status = models.AuditStatusFailure
	}

	c.auditLog.Record(ctx, Entry{
		Action:       "pipeline.execution.completed",
		ResourceType: "execution",
		ResourceID:   completed.ExecutionID,
		Status:       status,
		Details: map[string]any{
			"pipeline_id":    completed.PipelineID,
			"status":         string(completed.Status),
			"steps_executed": completed.StepsExecuted,
			"duration_ms":    completed.DurationMs,
		},
	})

	return nil
}

func (c *Consumer) handleAnomalyDetected(ctx context.Context, event any) error {
	anomaly, ok := event.(*events.AnomalyDetected)
	if !ok {
		return nil
	}

	c.auditLog.Record(ctx, Entry{
		Action:       "anomaly.detected",
		ResourceType: "anomaly",
		ResourceID:   anomaly.ID,
		Details: map[string]any{
			"severity": anomaly.Severity,
			"score":    anomaly.Score,
			"source":   anomaly.Source,
		},
	})

	return nil
}
