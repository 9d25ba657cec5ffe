package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// Execution is the audit row for one invocation of one job against one
// organization. OrganizationID is nil for globally scoped jobs. A row starts
// as running and transitions exactly once to completed or failed;
// CompletedAt and NotificationsCreated are meaningful only once terminal.
type Execution struct {
	ID                   uuid.UUID  `db:"id"                    json:"id"`
	JobID                string     `db:"job_id"                json:"job_id"`
	JobName              string     `db:"job_name"              json:"job_name"`
	OrganizationID       *uuid.UUID `db:"organization_id"       json:"organization_id,omitempty"`
	Status               string     `db:"status"                json:"status"`
	StartedAt            time.Time  `db:"started_at"            json:"started_at"`
	CompletedAt          *time.Time `db:"completed_at"          json:"completed_at,omitempty"`
	NotificationsCreated int        `db:"notifications_created" json:"notifications_created"`
	ErrorMessage         *string    `db:"error_message"         json:"error_message,omitempty"`
	Metadata             Metadata   `db:"metadata"              json:"metadata"`
}
