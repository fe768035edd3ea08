package models

import "time"

// AuditStatus marks whether the audited operation succeeded.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// SystemActor is the actor recorded for operations the engine performs itself.
const SystemActor = "system"

// AuditRecord is one append-only entry in the audit trail. Records are never
// updated or deleted by the engine; retention is an external concern.
type AuditRecord struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"         validate:"required"`
	Action       string         `json:"action"        validate:"required"`
	ResourceType string         `json:"resource_type" validate:"required"`
	ResourceID   string         `json:"resource_id"`
	Status       AuditStatus    `json:"status"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
