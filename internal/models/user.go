package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the local record of an identity provider user, correlated by ExternalID.
type User struct {
	ID             uuid.UUID  `json:"id"`
	ExternalID     string     `json:"external_id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// BelongsTo reports whether the user is linked to orgID.
func (u *User) BelongsTo(orgID uuid.UUID) bool {
	return u != nil && u.OrganizationID != nil && *u.OrganizationID == orgID
}
