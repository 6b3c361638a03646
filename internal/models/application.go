package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationKind distinguishes letters of intent from full applications.
type ApplicationKind string

const (
	KindLOI  ApplicationKind = "loi"
	KindFull ApplicationKind = "full"
)

// Application statuses.
const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusDeclined    = "declined"
)

// ApplicationStatuses is the closed set of statuses staff may assign.
var ApplicationStatuses = []string{StatusSubmitted, StatusUnderReview, StatusApproved, StatusDeclined}

// ValidStatus reports whether s is one of ApplicationStatuses.
func ValidStatus(s string) bool {
	for _, v := range ApplicationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Application is a letter of intent or full application from an organization for a cycle.
type Application struct {
	ID                   uuid.UUID       `json:"id"`
	OrganizationID       uuid.UUID       `json:"organization_id"`
	CycleID              uuid.UUID       `json:"cycle_id"`
	Kind                 ApplicationKind `json:"kind"`
	Status               string          `json:"status"`
	Title                string          `json:"title"`
	Summary              string          `json:"summary,omitempty"`
	AmountRequestedCents int64           `json:"amount_requested_cents"`
	SubmittedBy          uuid.UUID       `json:"submitted_by"`
	SubmittedAt          time.Time       `json:"submitted_at"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Review is one staff reviewer's score for an application.
type Review struct {
	ID                 uuid.UUID `json:"id"`
	ApplicationID      uuid.UUID `json:"application_id"`
	ReviewerExternalID string    `json:"reviewer_external_id"`
	Score              int       `json:"score"`
	Comment            string    `json:"comment,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ReviewSummary aggregates reviews of an application.
type ReviewSummary struct {
	Count        int      `json:"count"`
	AverageScore *float64 `json:"average_score,omitempty"`
	Reviews      []Review `json:"reviews"`
}
