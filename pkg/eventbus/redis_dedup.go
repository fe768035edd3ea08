package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	processedKeyPrefix = "event_processed:"
	publishedKeyPrefix = "event_published:"

	// DefaultDedupTTL bounds how long an event id is remembered.
	DefaultDedupTTL = 24 * time.Hour

	redisDialTimeout = 5 * time.Second
)

// RedisDedupStore implements DedupStore on a shared Redis instance so that all
// orchestrator replicas suppress duplicates against the same state.
type RedisDedupStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDedupStore connects to Redis at url (redis://host:port/db) and
// verifies the connection before returning.
func NewRedisDedupStore(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisDedupStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	logger.InfoContext(ctx, "Connected to dedup store", "addr", opts.Addr, "ttl", ttl)

	return &RedisDedupStore{client: client, ttl: ttl}, nil
}

func (s *RedisDedupStore) Seen(ctx context.Context, eventID string) (bool, error) {
	count, err := s.client.Exists(ctx, processedKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup seen check: %w", err)
	}

	return count > 0, nil
}

func (s *RedisDedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	err := s.client.SetNX(ctx, processedKeyPrefix+eventID, "1", s.ttl).Err()
	if err != nil {
		return fmt.Errorf("dedup mark processed: %w", err)
	}

	return nil
}

func (s *RedisDedupStore) MarkPublished(ctx context.Context, eventID string) error {
	err := s.client.Set(ctx, publishedKeyPrefix+eventID, "1", s.ttl).Err()
	if err != nil {
		return fmt.Errorf("dedup mark published: %w", err)
	}

	return nil
}

func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}
