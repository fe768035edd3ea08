package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/stackconsult/interfaceAgent/pkg/events"
)

// WatermillEventBus delivers events through a watermill publisher/subscriber
// pair and suppresses consumer-visible duplicates via a DedupStore.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	dedup         DedupStore
	logger        *slog.Logger
	subscriptions map[events.EventType][]EventHandler
	dedupDegraded atomic.Bool
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, dedup DedupStore, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		dedup:         dedup,
		logger:        logger.With("module", "eventbus"),
		subscriptions: make(map[events.EventType][]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// Publish writes the event to the durable broker first, then records the event
// id in the dedup store. A broker nack fails with ErrBrokerUnavailable; a dedup
// store failure only degrades duplicate diagnostics and is logged.
func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	eventID := eventID(event)
	if eventID == "" {
		eventID = eb.GenerateID()
	}

	msg := message.NewMessage(eventID, payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	if err := eb.publisher.Publish(events.Topic, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	if err := eb.dedup.MarkPublished(ctx, eventID); err != nil {
		eb.dedupDegraded.Store(true)
		eb.logger.WarnContext(ctx, "Dedup store unavailable while publishing",
			"event_id", eventID, "error", err)
	} else {
		eb.dedupDegraded.Store(false)
	}

	return nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eb.process(ctx, msg)
		}
	}()

	return nil
}

// process delivers one message to every handler registered for its type, with
// a single duplicate-suppression decision per delivery. An already-seen id is
// dropped before any handler runs; the id is marked processed only after all
// handlers succeed, so a redelivery reaches them again. When the dedup store
// is unavailable, delivery degrades to at-least-once with possible duplicates
// rather than blocking.
func (eb *WatermillEventBus) process(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	handlers, exists := eb.subscriptions[eventType]
	if !exists {
		msg.Ack()

		return
	}

	event := newEvent(eventType)
	if event == nil {
		msg.Nack()

		return
	}

	if err := json.Unmarshal(msg.Payload, event); err != nil {
		msg.Nack()

		return
	}

	id := decodedEventID(event)

	if id != "" {
		seen, err := eb.dedup.Seen(ctx, id)
		if err != nil {
			eb.dedupDegraded.Store(true)
			eb.logger.WarnContext(ctx, "Dedup store unavailable, duplicates possible",
				"event_id", id, "error", err)
		} else {
			eb.dedupDegraded.Store(false)

			if seen {
				eb.logger.DebugContext(ctx, "Dropping duplicate event", "event_id", id)
				msg.Ack()

				return
			}
		}
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			msg.Nack()

			return
		}
	}

	if id != "" {
		if err := eb.dedup.MarkProcessed(ctx, id); err != nil {
			eb.dedupDegraded.Store(true)
			eb.logger.WarnContext(ctx, "Failed to mark event processed",
				"event_id", id, "error", err)
		}
	}

	msg.Ack()
}

// Handle registers a consumer handler for one event type. Multiple handlers
// may subscribe to the same type; they share one duplicate-suppression
// decision per delivery. Registration must finish before Subscribe is called.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = append(eb.subscriptions[eventType], handler)

	return nil
}

// DedupDegraded reports whether the last dedup store interaction failed.
// Exposed as a health signal; delivery continues regardless.
func (eb *WatermillEventBus) DedupDegraded() bool {
	return eb.dedupDegraded.Load()
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	if err := eb.subscriber.Close(); err != nil {
		return err
	}

	return eb.dedup.Close()
}

func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.AgentActivatedEvent:
		return &events.AgentActivated{}
	case events.AgentDeactivatedEvent:
		return &events.AgentDeactivated{}
	case events.PipelineStepStartedEvent:
		return &events.PipelineStepStarted{}
	case events.PipelineStepSucceededEvent:
		return &events.PipelineStepSucceeded{}
	case events.PipelineStepFailedEvent:
		return &events.PipelineStepFailed{}
	case events.PipelineExecutionCompletedEvent:
		return &events.PipelineExecutionCompleted{}
	case events.AnomalyDetectedEvent:
		return &events.AnomalyDetected{}
	default:
		return nil
	}
}

func eventID(event Event) string {
	type identifiable interface{ GetID() string }

	if withID, ok := event.(identifiable); ok {
		return withID.GetID()
	}

	return ""
}

func decodedEventID(event any) string {
	switch e := event.(type) {
	case *events.AgentActivated:
		return e.ID
	case *events.AgentDeactivated:
		return e.ID
	case *events.PipelineStepStarted:
		return e.ID
	case *events.PipelineStepSucceeded:
		return e.ID
	case *events.PipelineStepFailed:
		return e.ID
	case *events.PipelineExecutionCompleted:
		return e.ID
	case *events.AnomalyDetected:
		return e.ID
	default:
		return ""
	}
}
