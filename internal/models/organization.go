package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is an applicant nonprofit.
type Organization struct {
	ID                     uuid.UUID  `json:"id"`
	Name                   string     `json:"name"`
	EIN                    string     `json:"ein"`
	Mission                string     `json:"mission,omitempty"`
	Website                string     `json:"website,omitempty"`
	City                   string     `json:"city,omitempty"`
	State                  string     `json:"state,omitempty"`
	ProfileReviewedAt      *time.Time `json:"profile_reviewed_at,omitempty"`
	ProfileReviewedCycleID *uuid.UUID `json:"profile_reviewed_cycle_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// ProfileReview is the result of confirming an organization profile for a cycle.
type ProfileReview struct {
	OrganizationID         uuid.UUID `json:"organization_id"`
	ProfileReviewedAt      time.Time `json:"profile_reviewed_at"`
	ProfileReviewedCycleID uuid.UUID `json:"profile_reviewed_cycle_id"`
}
