package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantportal/backend/internal/models"
)

const documentColumns = `id, organization_id, application_id, name, s3_key, content_type, size_bytes, uploaded_by, created_at`

// Repository handles document records. Objects live in S3.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a documents repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.OrganizationID, &d.ApplicationID, &d.Name, &d.S3Key, &d.ContentType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// OrganizationExists reports whether the organization exists.
func (r *Repository) OrganizationExists(ctx context.Context, orgID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE id = $1)`, orgID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("organization exists: %w", err)
	}
	return ok, nil
}

// ListByOrganization returns an organization's documents, newest first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]*models.Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	list := []*models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// GetByID returns a document by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ApplicationOrganization returns the organization that owns an application, or nil if absent.
func (r *Repository) ApplicationOrganization(ctx context.Context, applicationID uuid.UUID) (*uuid.UUID, error) {
	var orgID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT organization_id FROM applications WHERE id = $1`, applicationID).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("application organization: %w", err)
	}
	return &orgID, nil
}

// Create inserts a document record. d.ID must already be set; it is part of the object key.
func (r *Repository) Create(ctx context.Context, d *models.Document) error {
	const q = `INSERT INTO documents (id, organization_id, application_id, name, s3_key, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, q, d.ID, d.OrganizationID, d.ApplicationID, d.Name, d.S3Key, d.ContentType, d.SizeBytes, d.UploadedBy).
		Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Delete removes a document record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
