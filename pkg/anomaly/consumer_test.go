package anomaly

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/events"
	"github.com/stackconsult/interfaceAgent/pkg/models"
)

type capturePublisher struct {
	published []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func completedEvent(executionID string, size int) *events.PipelineExecutionCompleted {
	return &events.PipelineExecutionCompleted{
		BaseEvent:  events.NewBaseEvent(events.PipelineExecutionCompletedEvent, executionID),
		PipelineID: "pipe-1",
		Status:     models.ExecutionStatusSucceeded,
		Output:     map[string]any{"blob": payloadWithBlob(size)["blob"]},
	}
}

func TestConsumer_ObservesWithoutPublishingWhenNormal(t *testing.T) {
	detector := newTestDetector()
	publisher := &capturePublisher{}
	consumer := NewConsumer(detector, publisher, quietLogger())

	for i := range 40 {
		require.NoError(t, consumer.handleExecutionCompleted(t.Context(), completedEvent("exec", 100+i%40)))
	}

	assert.Equal(t, 40, detector.SampleCount())
	assert.Empty(t, publisher.published)
}

func TestConsumer_PublishesAnomalyForOutlier(t *testing.T) {
	detector := newTestDetector()
	publisher := &capturePublisher{}
	consumer := NewConsumer(detector, publisher, quietLogger())

	for i := range 40 {
		require.NoError(t, consumer.handleExecutionCompleted(t.Context(), completedEvent("exec", 100+i%40)))
	}

	require.NoError(t, consumer.handleExecutionCompleted(t.Context(), completedEvent("exec-outlier", 5000)))

	require.Len(t, publisher.published, 1)

	detected, ok := publisher.published[0].(events.AnomalyDetected)
	require.True(t, ok)
	assert.Equal(t, "pipe-1", detected.Source)
	assert.Equal(t, string(SeverityCritical), detected.Severity)
	assert.Greater(t, detected.Score, detectionScore)

	// The outlier still joins the baseline after being scored.
	assert.Equal(t, 41, detector.SampleCount())
}

func TestConsumer_IgnoresUnexpectedPayload(t *testing.T) {
	detector := newTestDetector()
	publisher := &capturePublisher{}
	consumer := NewConsumer(detector, publisher, quietLogger())

	require.NoError(t, consumer.handleExecutionCompleted(t.Context(), "not an event"))
	assert.Zero(t, detector.SampleCount())
}
