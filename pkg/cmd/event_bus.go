package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/stackconsult/interfaceAgent/pkg/channels/gochannel"
	"github.com/stackconsult/interfaceAgent/pkg/channels/kafka"
	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
)

// NewEventBus creates an event bus on the named broker provider. The gochannel
// provider is in-process only and suitable for single-node development.
func NewEventBus(provider, serviceName string, dedup eventbus.DedupStore, logger *slog.Logger) eventbus.EventBus {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		cfg, err := kafka.ConfigFromEnv(serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to configure Kafka channel: %w", err))
		}

		pub, sub, err := kafka.CreateChannel(cfg, wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, dedup, logger)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub, dedup, logger)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}

// NewDedupStore creates the shared dedup store. An empty redisURL selects the
// in-memory store, which does not suppress duplicates across replicas.
func NewDedupStore(ctx context.Context, redisURL string, logger *slog.Logger) eventbus.DedupStore {
	if redisURL == "" {
		logger.Warn("No redis url configured, using in-memory dedup store")

		return eventbus.NewMemoryDedupStore(eventbus.DefaultDedupTTL)
	}

	store, err := eventbus.NewRedisDedupStore(ctx, redisURL, eventbus.DefaultDedupTTL, logger)
	if err != nil {
		panic(fmt.Errorf("failed to connect to dedup store: %w", err))
	}

	return store
}
