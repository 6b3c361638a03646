package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/models"
)

const userColumns = `id, external_id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), organization_id, created_at, updated_at`

// Repository handles local user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Ensure returns the local user for id, creating it on first sight and refreshing the profile
// fields the identity provider owns. An unchanged profile is a read only.
func (r *Repository) Ensure(ctx context.Context, id *identity.Identity) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, id.ExternalID))
	switch {
	case err == nil:
		if !profileChanged(u, id) {
			return u, nil
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get user by external id: %w", err)
	}

	q := `INSERT INTO users (external_id, email, first_name, last_name)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (external_id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			last_name = COALESCE(EXCLUDED.last_name, users.last_name),
			updated_at = NOW()
		RETURNING ` + userColumns
	u, err = scanUser(r.pool.QueryRow(ctx, q, id.ExternalID, id.Email, id.FirstName, id.LastName))
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// profileChanged reports whether id carries a non-empty profile field that differs from u.
// Empty claims never overwrite stored values.
func profileChanged(u *models.User, id *identity.Identity) bool {
	differs := func(claim, stored string) bool { return claim != "" && claim != stored }
	return differs(id.Email, u.Email) || differs(id.FirstName, u.FirstName) || differs(id.LastName, u.LastName)
}

// GetByID returns a user by ID, or nil if absent.
func (r *Repository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListByExternalIDs returns local users keyed by external id.
func (r *Repository) ListByExternalIDs(ctx context.Context, externalIDs []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = ANY($1)`, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ExternalID] = u
	}
	return out, rows.Err()
}

// SetOrganization links a user to an organization.
func (r *Repository) SetOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET organization_id = $2, updated_at = NOW() WHERE id = $1`, userID, orgID)
	if err != nil {
		return fmt.Errorf("set organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
