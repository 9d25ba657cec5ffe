package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTypeInfo     = "info"
	NotificationTypeReminder = "reminder"
	NotificationTypeWarning  = "warning"
)

// Metadata keys the engine stamps into every notification it creates.
const (
	MetaDeduplicationKey = "deduplication_key"
	MetaJobID            = "job_id"
)

// Metadata is an opaque JSONB bag. The engine only interprets the
// deduplication_key and job_id entries; everything else is pass-through.
type Metadata map[string]any

// Clone returns a shallow copy, so stamping engine keys never mutates a
// caller-supplied map. Returns an empty map for nil input.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Notification is an in-app notification row. UserID nil means the
// notification is organization-wide. Rows are never mutated after creation.
type Notification struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	OrganizationID uuid.UUID  `db:"organization_id" json:"organization_id"`
	UserID         *uuid.UUID `db:"user_id"         json:"user_id,omitempty"`
	Title          string     `db:"title"           json:"title"`
	Message        string     `db:"message"         json:"message"`
	Type           string     `db:"type"            json:"type"`
	Metadata       Metadata   `db:"metadata"        json:"metadata"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
}

// DeduplicationKey returns the engine-stamped dedup key, or "" when absent.
func (n *Notification) DeduplicationKey() string {
	if n.Metadata == nil {
		return ""
	}
	if v, ok := n.Metadata[MetaDeduplicationKey].(string); ok {
		return v
	}
	return ""
}
