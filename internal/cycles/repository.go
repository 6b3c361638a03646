package cycles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantportal/backend/internal/models"
)

const cycleColumns = `id, name, is_active, accepting_lois, accepting_applications, loi_deadline, application_deadline,
	max_request_cents, max_applications_per_org, COALESCE(internal_notes, ''), created_at, updated_at`

// Repository handles cycle persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a cycles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCycle(row pgx.Row) (*models.Cycle, error) {
	var c models.Cycle
	err := row.Scan(&c.ID, &c.Name, &c.IsActive, &c.AcceptingLOIs, &c.AcceptingApplications, &c.LOIDeadline,
		&c.ApplicationDeadline, &c.MaxRequestCents, &c.MaxApplicationsPerOrg, &c.InternalNotes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...interface{}) ([]*models.Cycle, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()
	list := []*models.Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListOpen returns cycles that are active and accepting letters of intent, soonest deadline first.
func (r *Repository) ListOpen(ctx context.Context) ([]*models.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM cycles
		WHERE is_active AND accepting_lois
		ORDER BY loi_deadline ASC NULLS LAST, name`)
}

// List returns all cycles, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Cycle, error) {
	return r.list(ctx, `SELECT `+cycleColumns+` FROM cycles ORDER BY created_at DESC`)
}

// GetByID returns a cycle by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	c, err := scanCycle(r.pool.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle: %w", err)
	}
	return c, nil
}

// Create inserts a cycle and fills its generated fields.
func (r *Repository) Create(ctx context.Context, c *models.Cycle) error {
	const q = `INSERT INTO cycles (name, is_active, accepting_lois, accepting_applications, loi_deadline,
			application_deadline, max_request_cents, max_applications_per_org, internal_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.Name, c.IsActive, c.AcceptingLOIs, c.AcceptingApplications, c.LOIDeadline,
		c.ApplicationDeadline, c.MaxRequestCents, c.MaxApplicationsPerOrg, c.InternalNotes).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create cycle: %w", err)
	}
	return nil
}

// Update writes every mutable field of c.
func (r *Repository) Update(ctx context.Context, c *models.Cycle) error {
	const q = `UPDATE cycles SET name = $2, is_active = $3, accepting_lois = $4, accepting_applications = $5,
			loi_deadline = $6, application_deadline = $7, max_request_cents = $8, max_applications_per_org = $9,
			internal_notes = NULLIF($10, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, c.ID, c.Name, c.IsActive, c.AcceptingLOIs, c.AcceptingApplications, c.LOIDeadline,
		c.ApplicationDeadline, c.MaxRequestCents, c.MaxApplicationsPerOrg, c.InternalNotes).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update cycle: %w", err)
	}
	return nil
}
