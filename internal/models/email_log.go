package models

import (
	"time"

	"github.com/google/uuid"
)

// Email types sent by the portal.
const (
	EmailTypeSubmissionReceipt = "submission_receipt"
	EmailTypeStaffNotification = "staff_notification"
	EmailTypeStatusChange      = "status_change"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusSent   = "sent"
	EmailLogStatusFailed = "failed"
)

// EmailLog records a delivery attempt.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
