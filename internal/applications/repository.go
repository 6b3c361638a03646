package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantportal/backend/internal/models"
)

const applicationColumns = `id, organization_id, cycle_id, kind, status, title, COALESCE(summary, ''),
	amount_requested_cents, submitted_by, submitted_at, created_at, updated_at`

// ListFilter narrows application listings. Zero values match everything.
type ListFilter struct {
	OrganizationID *uuid.UUID
	CycleID        *uuid.UUID
	Status         string
}

// Repository handles application and review persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an applications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.OrganizationID, &a.CycleID, &a.Kind, &a.Status, &a.Title, &a.Summary,
		&a.AmountRequestedCents, &a.SubmittedBy, &a.SubmittedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns applications matching f, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*models.Application, error) {
	var where []string
	var args []interface{}
	if f.OrganizationID != nil {
		args = append(args, *f.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}
	if f.CycleID != nil {
		args = append(args, *f.CycleID)
		where = append(where, fmt.Sprintf("cycle_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	q := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY submitted_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()
	list := []*models.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetByID returns an application by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	a, err := scanApplication(r.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

// CountForOrganization counts an organization's submissions of kind in a cycle.
func (r *Repository) CountForOrganization(ctx context.Context, orgID, cycleID uuid.UUID, kind models.ApplicationKind) (int, error) {
	const q = `SELECT COUNT(*) FROM applications WHERE organization_id = $1 AND cycle_id = $2 AND kind = $3`
	var n int
	if err := r.pool.QueryRow(ctx, q, orgID, cycleID, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return n, nil
}

// HasApprovedLOI reports whether the organization holds an approved letter of intent for the cycle.
func (r *Repository) HasApprovedLOI(ctx context.Context, orgID, cycleID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM applications
		WHERE organization_id = $1 AND cycle_id = $2 AND kind = 'loi' AND status = 'approved')`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, orgID, cycleID).Scan(&ok); err != nil {
		return false, fmt.Errorf("approved loi: %w", err)
	}
	return ok, nil
}

// Create inserts an application and fills its generated fields.
func (r *Repository) Create(ctx context.Context, a *models.Application) error {
	const q = `INSERT INTO applications (organization_id, cycle_id, kind, status, title, summary, amount_requested_cents, submitted_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING id, submitted_at, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, a.OrganizationID, a.CycleID, a.Kind, a.Status, a.Title, a.Summary, a.AmountRequestedCents, a.SubmittedBy).
		Scan(&a.ID, &a.SubmittedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateStatus sets an application's status and returns it, or nil if absent.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Application, error) {
	q := `UPDATE applications SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + applicationColumns
	a, err := scanApplication(r.pool.QueryRow(ctx, q, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	return a, nil
}

// UpsertReview records a reviewer's score, replacing their earlier review of the same application.
func (r *Repository) UpsertReview(ctx context.Context, rv *models.Review) error {
	const q = `INSERT INTO reviews (application_id, reviewer_external_id, score, comment)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (application_id, reviewer_external_id) DO UPDATE SET
			score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = NOW()
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, rv.ApplicationID, rv.ReviewerExternalID, rv.Score, rv.Comment).
		Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert review: %w", err)
	}
	return nil
}

// ListReviews returns an application's reviews, oldest first.
func (r *Repository) ListReviews(ctx context.Context, applicationID uuid.UUID) ([]models.Review, error) {
	const q = `SELECT id, application_id, reviewer_external_id, score, COALESCE(comment, ''), created_at, updated_at
		FROM reviews WHERE application_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()
	list := []models.Review{}
	for rows.Next() {
		var rv models.Review
		if err := rows.Scan(&rv.ID, &rv.ApplicationID, &rv.ReviewerExternalID, &rv.Score, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rv)
	}
	return list, rows.Err()
}

// CountByStatus returns the number of applications in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
