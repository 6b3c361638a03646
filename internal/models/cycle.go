package models

import (
	"time"

	"github.com/google/uuid"
)

// Cycle is a time-boxed grant round.
type Cycle struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	IsActive              bool       `json:"is_active"`
	AcceptingLOIs         bool       `json:"accepting_lois"`
	AcceptingApplications bool       `json:"accepting_applications"`
	LOIDeadline           *time.Time `json:"loi_deadline,omitempty"`
	ApplicationDeadline   *time.Time `json:"application_deadline,omitempty"`
	MaxRequestCents       *int64     `json:"max_request_cents,omitempty"`
	MaxApplicationsPerOrg *int       `json:"max_applications_per_org,omitempty"`
	InternalNotes         string     `json:"internal_notes,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// CycleSummary is the public view of a cycle. It carries no staff-only fields.
type CycleSummary struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	AcceptingLOIs         bool       `json:"accepting_lois"`
	AcceptingApplications bool       `json:"accepting_applications"`
	LOIDeadline           *time.Time `json:"loi_deadline,omitempty"`
	ApplicationDeadline   *time.Time `json:"application_deadline,omitempty"`
	MaxRequestCents       *int64     `json:"max_request_cents,omitempty"`
}

// Summary returns the public view of c.
func (c *Cycle) Summary() CycleSummary {
	return CycleSummary{
		ID:                    c.ID,
		Name:                  c.Name,
		AcceptingLOIs:         c.AcceptingLOIs,
		AcceptingApplications: c.AcceptingApplications,
		LOIDeadline:           c.LOIDeadline,
		ApplicationDeadline:   c.ApplicationDeadline,
		MaxRequestCents:       c.MaxRequestCents,
	}
}

// OpenForLOIs reports whether letters of intent may be submitted.
func (c *Cycle) OpenForLOIs() bool { return c.IsActive && c.AcceptingLOIs }

// OpenForApplications reports whether full applications may be submitted.
func (c *Cycle) OpenForApplications() bool { return c.IsActive && c.AcceptingApplications }
