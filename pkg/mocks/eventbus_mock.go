package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
)

// MockEventBus is a mock implementation of the eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// MockDedupStore is a mock implementation of the eventbus.DedupStore interface.
type MockDedupStore struct {
	mock.Mock
}

func (m *MockDedupStore) Seen(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)

	return args.Bool(0), args.Error(1)
}

func (m *MockDedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)

	return args.Error(0)
}

func (m *MockDedupStore) MarkPublished(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)

	return args.Error(0)
}

func (m *MockDedupStore) Close() error {
	args := m.Called()

	return args.Error(0)
}
