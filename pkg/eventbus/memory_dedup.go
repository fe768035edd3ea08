package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDedupStoreUnavailable is returned by a failed (or deliberately failing)
// dedup store interaction.
var ErrDedupStoreUnavailable = errors.New("dedup store unavailable")

// MemoryDedupStore is an in-process DedupStore for tests and single-node
// development. It does not provide cross-replica suppression.
type MemoryDedupStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	processed map[string]time.Time
	published map[string]time.Time
	failing   bool
}

func NewMemoryDedupStore(ttl time.Duration) *MemoryDedupStore {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}

	return &MemoryDedupStore{
		ttl:       ttl,
		processed: make(map[string]time.Time),
		published: make(map[string]time.Time),
	}
}

// SetFailing switches the store into a failure mode where every call errors,
// simulating an outage for degraded-delivery tests.
func (s *MemoryDedupStore) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failing = failing
}

func (s *MemoryDedupStore) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return false, ErrDedupStoreUnavailable
	}

	expiry, ok := s.processed[eventID]
	if !ok {
		return false, nil
	}

	if time.Now().After(expiry) {
		delete(s.processed, eventID)

		return false, nil
	}

	return true, nil
}

func (s *MemoryDedupStore) MarkProcessed(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return ErrDedupStoreUnavailable
	}

	s.processed[eventID] = time.Now().Add(s.ttl)

	return nil
}

func (s *MemoryDedupStore) MarkPublished(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		return ErrDedupStoreUnavailable
	}

	s.published[eventID] = time.Now().Add(s.ttl)

	return nil
}

func (s *MemoryDedupStore) Close() error {
	return nil
}
