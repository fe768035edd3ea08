package file

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/stackconsult/interfaceAgent/pkg/models"
	"github.com/stackconsult/interfaceAgent/pkg/persistence"
)

// AuditRepository appends audit records under <root>/audit. Records are never
// rewritten or removed here; retention is an external concern.
type AuditRepository struct {
	root string
}

func (r *AuditRepository) dir() string {
	return filepath.Join(r.root, "audit")
}

func (r *AuditRepository) AppendAuditRecord(_ context.Context, record *models.AuditRecord) error {
	if err := writeEntity(r.dir(), record.ID, record); err != nil {
		return persistence.NewRepositoryError("AppendAuditRecord", record.ID, err)
	}

	return nil
}

func (r *AuditRepository) AuditRecords(_ context.Context, limit int) ([]*models.AuditRecord, error) {
	ids, err := listEntityIDs(r.dir())
	if err != nil {
		return nil, persistence.NewRepositoryError("AuditRecords", "", err)
	}

	records := make([]*models.AuditRecord, 0, len(ids))

	for _, id := range ids {
		var record models.AuditRecord

		found, err := readEntity(r.dir(), id, &record)
		if err != nil {
			return nil, persistence.NewRepositoryError("AuditRecords", id, err)
		}

		if found {
			records = append(records, &record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records, nil
}
