package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded file belonging to an organization.
type Document struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	ApplicationID  *uuid.UUID `json:"application_id,omitempty"`
	Name           string     `json:"name"`
	S3Key          string     `json:"-"`
	ContentType    string     `json:"content_type"`
	SizeBytes      int64      `json:"size_bytes"`
	UploadedBy     uuid.UUID  `json:"uploaded_by"`
	CreatedAt      time.Time  `json:"created_at"`
	DownloadURL    string     `json:"download_url,omitempty"`
}
