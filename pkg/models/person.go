package models

import (
	"time"

	"github.com/google/uuid"
)

// Person is a member of an organization. ManagerID is nil for people at the
// top of the reporting chain; Birthday is nil when not provided.
type Person struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	OrganizationID uuid.UUID  `db:"organization_id" json:"organization_id"`
	Name           string     `db:"name"            json:"name"`
	Email          string     `db:"email"           json:"email"`
	Birthday       *time.Time `db:"birthday"        json:"birthday,omitempty"`
	ManagerID      *uuid.UUID `db:"manager_id"      json:"manager_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// ActivitySignal reports the most recent qualifying activity (task touch,
// one-on-one, feedback given or received) for one person.
type ActivitySignal struct {
	PersonID       uuid.UUID `db:"person_id"        json:"person_id"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}
