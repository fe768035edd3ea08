package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stackconsult/interfaceAgent/pkg/anomaly"
	"github.com/stackconsult/interfaceAgent/pkg/audit"
	"github.com/stackconsult/interfaceAgent/pkg/eventbus"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// WorkerManager wires the event consumers: the audit trail writer and the
// anomaly detector with its scheduled baseline refits.
type WorkerManager struct {
	id            string
	logger        *slog.Logger
	persistence   persistence.Persistence
	eventBus      eventbus.EventBus
	refitSchedule string
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	refitSchedule string,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:            id,
		logger:        logger.With("module", "interfaceagent-worker", "worker_id", id),
		persistence:   persistence,
		eventBus:      eventBus,
		refitSchedule: refitSchedule,
	}
}

// Start registers the consumers, subscribes to the bus and blocks until a
// termination signal arrives.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	auditLog := audit.NewLogger(w.persistence.AuditRepository(), w.logger)

	auditConsumer := audit.NewConsumer(auditLog, w.logger)
	if err := auditConsumer.RegisterHandlers(w.eventBus); err != nil {
		return err
	}

	detector := anomaly.NewDetector(w.logger)

	anomalyConsumer := anomaly.NewConsumer(detector, w.eventBus, w.logger)
	if err := anomalyConsumer.RegisterHandlers(w.eventBus); err != nil {
		return err
	}

	scheduler, err := anomaly.NewRefitScheduler(detector, w.refitSchedule, w.logger)
	if err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}
