// Package kafka provides the durable broker channel backing the event bus.
package kafka

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// Config carries the broker connection settings for one consuming service.
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string
}

// ConfigFromEnv builds a Config from KAFKA_BROKERS for the named service.
// Each service gets its own consumer group so every service sees every event.
func ConfigFromEnv(serviceName string) (Config, error) {
	raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if raw == "" {
		return Config{}, errors.New("KAFKA_BROKERS environment variable is not set or empty")
	}

	return Config{
		Brokers:       strings.Split(raw, ","),
		ConsumerGroup: "cg-" + serviceName,
		ClientID:      serviceName,
	}, nil
}

// CreateChannel builds the publisher/subscriber pair. Producer acks from all
// in-sync replicas are required so a publish only succeeds once the broker
// holds the event durably; consumers start from the oldest offset so a new
// consumer group replays history.
func CreateChannel(cfg Config, logger watermill.LoggerAdapter) (*kafka.Publisher, *kafka.Subscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil, errors.New("kafka channel requires at least one broker")
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.ClientID = cfg.ClientID
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         cfg.ConsumerGroup,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	publisherConfig := sarama.NewConfig()
	publisherConfig.ClientID = cfg.ClientID
	publisherConfig.Producer.Return.Successes = true
	publisherConfig.Producer.RequiredAcks = sarama.WaitForAll
	publisherConfig.Producer.Idempotent = true
	publisherConfig.Net.MaxOpenRequests = 1

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return publisher, subscriber, nil
}
