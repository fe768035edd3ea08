package anomaly

import (
	"context"
	"log/slog"

	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
)

// Consumer scores completed executions against the baseline and raises
// anomaly.detected events for outliers.
type Consumer struct {
	detector *Detector
	eventBus eventbus.EventPublisher
	logger   *slog.Logger
}

func NewConsumer(detector *Detector, bus eventbus.EventPublisher, logger *slog.Logger) *Consumer {
	return &Consumer{
		detector: detector,
		eventBus: bus,
		logger:   logger.With("module", "anomaly-consumer"),
	}
}

// RegisterHandlers subscribes the consumer to execution completions.
func (c *Consumer) RegisterHandlers(bus eventbus.EventSubscriber) error {
	return bus.Handle(events.PipelineExecutionCompletedEvent, c.handleExecutionCompleted)
}

func (c *Consumer) handleExecutionCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.PipelineExecutionCompleted)
	if !ok {
		return nil
	}

	payload := map[string]any{
		"type":   string(completed.Status),
		"source": completed.PipelineID,
	}
	for key, value := range completed.Output {
		payload[key] = value
	}

	// Score before observing so an outlier does not normalize itself.
	anomalous, score, severity := c.detector.Score(payload)
	c.detector.Observe(payload)

	if !anomalous {
		return nil
	}

	c.logger.WarnContext(ctx, "Anomalous execution detected",
		"execution_id", completed.ExecutionID,
		"pipeline_id", completed.PipelineID,
		"score", score,
		"severity", severity)

	detected := events.AnomalyDetected{
		BaseEvent: events.NewBaseEvent(events.AnomalyDetectedEvent, completed.ExecutionID),
		Severity:  string(severity),
		Score:     score,
		Data:      completed.Output,
		Source:    completed.PipelineID,
	}

	if err := c.eventBus.Publish(ctx, completed.ExecutionID, detected); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish anomaly event",
			"execution_id", completed.ExecutionID, "error", err)
	}

	return nil
}
