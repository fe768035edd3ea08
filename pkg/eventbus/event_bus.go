// Package eventbus provides durable, deduplicating event delivery connecting
// the orchestrator to audit and anomaly consumers.
package eventbus

import (
	"context"
	"errors"

	"github.com/stackconsult/interfaceAgent/pkg/events"
)

// ErrBrokerUnavailable indicates the durable broker write could not be
// acknowledged. Callers must treat this as degraded-but-non-fatal for
// execution correctness.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	// Publish writes the event durably to the broker. The key groups events
	// that must be delivered in publication order (one key per execution).
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// DedupStore records already-delivered event ids so redelivery does not reach
// consumers twice. It is a shared external resource; in-process locking is no
// substitute for it.
type DedupStore interface {
	// Seen reports whether the id has already been processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the id after its handler completed. Entries carry
	// a bounded TTL.
	MarkProcessed(ctx context.Context, eventID string) error

	// MarkPublished records that the id has entered the broker. Best effort;
	// used for publish-side duplicate diagnostics, never for delivery decisions.
	MarkPublished(ctx context.Context, eventID string) error

	Close() error
}
