package organizations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantportal/backend/internal/models"
)

// ErrDuplicateEIN is returned when another organization already holds the EIN.
var ErrDuplicateEIN = errors.New("organization with this EIN already exists")

const orgColumns = `id, name, ein, COALESCE(mission, ''), COALESCE(website, ''), COALESCE(city, ''), COALESCE(state, ''),
	profile_reviewed_at, profile_reviewed_cycle_id, created_at, updated_at`

// Repository handles organization persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.EIN, &o.Mission, &o.Website, &o.City, &o.State,
		&o.ProfileReviewedAt, &o.ProfileReviewedCycleID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateForUser inserts org and links userID to it in one transaction.
func (r *Repository) CreateForUser(ctx context.Context, org *models.Organization, userID uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO organizations (name, ein, mission, website, city, state)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, q, org.Name, org.EIN, org.Mission, org.Website, org.City, org.State).
			Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicateEIN
		}
		if err != nil {
			return fmt.Errorf("insert organization: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET organization_id = $2, updated_at = NOW() WHERE id = $1`, userID, org.ID); err != nil {
			return fmt.Errorf("link user: %w", err)
		}
		return nil
	})
}

// List returns all organizations by name.
func (r *Repository) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	list := []*models.Organization{}
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// GetByID returns an organization by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	o, err := scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// Update writes the profile fields of org.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	const q = `UPDATE organizations SET name = $2, ein = $3, mission = NULLIF($4, ''), website = NULLIF($5, ''),
			city = NULLIF($6, ''), state = NULLIF($7, ''), updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, org.ID, org.Name, org.EIN, org.Mission, org.Website, org.City, org.State).Scan(&org.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEIN
	}
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	return nil
}

// MarkProfileReviewed records the review timestamp and cycle in a single statement.
// It returns nil when the organization does not exist.
func (r *Repository) MarkProfileReviewed(ctx context.Context, orgID, cycleID uuid.UUID) (*models.ProfileReview, error) {
	const q = `UPDATE organizations
		SET profile_reviewed_at = NOW(), profile_reviewed_cycle_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING profile_reviewed_at`
	var at time.Time
	err := r.pool.QueryRow(ctx, q, orgID, cycleID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark profile reviewed: %w", err)
	}
	return &models.ProfileReview{OrganizationID: orgID, ProfileReviewedAt: at, ProfileReviewedCycleID: cycleID}, nil
}
