// Package audit appends tamper-evident records of configuration changes and
// execution outcomes. Recording failures never propagate into the operation
// being audited.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// Entry describes one auditable operation.
type Entry struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Status       models.AuditStatus
	Details      map[string]any
	IPAddress    string
	UserAgent    string
}

// Logger appends audit records. It is safe for concurrent use as long as the
// underlying repository is.
type Logger struct {
	repo   persistence.AuditRepository
	logger *slog.Logger
}

func NewLogger(repo persistence.AuditRepository, logger *slog.Logger) *Logger {
	return &Logger{
		repo:   repo,
		logger: logger.With("module", "audit"),
	}
}

// Record appends one audit record. An append failure is logged at error level
// and swallowed; the audited operation must not fail because auditing did.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	actor := entry.Actor
	if actor == "" {
		actor = models.SystemActor
	}

	status := entry.Status
	if status == "" {
		status = models.AuditStatusSuccess
	}

	record := &models.AuditRecord{
		ID:           uuid.New().String(),
		Actor:        actor,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Status:       status,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		CreatedAt:    time.Now().UTC(),
	}

	if err := l.repo.AppendAuditRecord(ctx, record); err != nil {
		l.logger.ErrorContext(ctx, "Failed to append audit record",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err)
	}
}

// Records returns the most recent audit records, newest first.
func (l *Logger) Records(ctx context.Context, limit int) ([]*models.AuditRecord, error) {
	return l.repo.AuditRecords(ctx, limit)
}
