// Package events defines event types and structures for pipeline lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/stackconsult/interfaceAgent/pkg/models"
)

type EventType string

// Topic is the broker topic carrying all pipeline and agent events.
const Topic = "interfaceagent.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Agent lifecycle events.
	AgentActivatedEvent   EventType = "agent.activated"
	AgentDeactivatedEvent EventType = "agent.deactivated"

	// Pipeline step events.
	PipelineStepStartedEvent   EventType = "pipeline.step.started"
	PipelineStepSucceededEvent EventType = "pipeline.step.succeeded"
	PipelineStepFailedEvent    EventType = "pipeline.step.failed"

	// Execution terminal event.
	PipelineExecutionCompletedEvent EventType = "pipeline.execution.completed"

	// Anomaly detection events.
	AnomalyDetectedEvent EventType = "anomaly.detected"
)

// BaseEvent carries the identity and dedup key of every event. ID must be
// unique; the dedup store suppresses redelivery by it.
type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// GetID exposes the dedup identity of any event embedding BaseEvent.
func (b BaseEvent) GetID() string {
	return b.ID
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
	}
}

type AgentActivated struct {
	BaseEvent

	AgentID   string `json:"agent_id"`
	TypeName  string `json:"type_name"`
	Actor     string `json:"actor"`
	AgentName string `json:"agent_name,omitempty"`
}

func (e AgentActivated) GetType() EventType {
	return AgentActivatedEvent
}

type AgentDeactivated struct {
	BaseEvent

	AgentID   string `json:"agent_id"`
	TypeName  string `json:"type_name"`
	Actor     string `json:"actor"`
	AgentName string `json:"agent_name,omitempty"`
}

func (e AgentDeactivated) GetType() EventType {
	return AgentDeactivatedEvent
}

type PipelineStepStarted struct {
	BaseEvent

	PipelineID string `json:"pipeline_id"`
	StepID     string `json:"step_id"`
	AgentType  string `json:"agent_type"`
	Order      int    `json:"order"`
}

func (e PipelineStepStarted) GetType() EventType {
	return PipelineStepStartedEvent
}

type PipelineStepSucceeded struct {
	BaseEvent

	PipelineID string         `json:"pipeline_id"`
	StepID     string         `json:"step_id"`
	AgentType  string         `json:"agent_type"`
	Output     map[string]any `json:"output,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

func (e PipelineStepSucceeded) GetType() EventType {
	return PipelineStepSucceededEvent
}

type PipelineStepFailed struct {
	BaseEvent

	PipelineID string              `json:"pipeline_id"`
	StepID     string              `json:"step_id"`
	AgentType  string              `json:"agent_type"`
	Error      string              `json:"error"`
	Cause      models.FailureCause `json:"cause"`
	Recovered  bool                `json:"recovered"`
	Critical   bool                `json:"critical"`
	DurationMs int64               `json:"duration_ms"`
}

func (e PipelineStepFailed) GetType() EventType {
	return PipelineStepFailedEvent
}

type PipelineExecutionCompleted struct {
	BaseEvent

	PipelineID    string                 `json:"pipeline_id"`
	Status        models.ExecutionStatus `json:"status"`
	StepsExecuted int                    `json:"steps_executed"`
	Output        map[string]any         `json:"output,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Cause         models.FailureCause    `json:"cause,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
}

func (e PipelineExecutionCompleted) GetType() EventType {
	return PipelineExecutionCompletedEvent
}

type AnomalyDetected struct {
	BaseEvent

	Severity string         `json:"severity"`
	Score    float64        `json:"score"`
	Data     map[string]any `json:"data,omitempty"`
	Source   string         `json:"source,omitempty"`
}

func (e AnomalyDetected) GetType() EventType {
	return AnomalyDetectedEvent
}
