package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenancy boundary. Every other entity belongs to an
// organization, and jobs always execute scoped to one.
type Organization struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
