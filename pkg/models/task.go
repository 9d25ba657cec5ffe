package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskStatusOpen       = "open"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusCancelled  = "cancelled"
)

// Task is a unit of work assigned to a person. A task counts as overdue when
// DueAt is in the past and the status is not terminal (done or cancelled).
type Task struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	OrganizationID uuid.UUID  `db:"organization_id" json:"organization_id"`
	Title          string     `db:"title"           json:"title"`
	Status         string     `db:"status"          json:"status"`
	DueAt          *time.Time `db:"due_at"          json:"due_at,omitempty"`
	AssigneeID     *uuid.UUID `db:"assignee_id"     json:"assignee_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}
