// Package users keeps the local user record that correlates an identity provider user with
// portal data, and serves the caller's own profile.
package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/pkg/apperr"
)

// Lookup finds or creates the local user for an identity.
type Lookup interface {
	Ensure(ctx context.Context, id *identity.Identity) (*models.User, error)
}

// Current returns the local user of the authenticated caller in ctx.
func Current(ctx context.Context, l Lookup) (*models.User, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return nil, apperr.Unauthenticated("authentication required")
	}
	u, err := l.Ensure(ctx, id)
	if err != nil {
		return nil, apperr.Upstream("failed to load user", err)
	}
	return u, nil
}

// AuthorizeOrg allows the caller when staff is true or when they belong to orgID. Staff callers are
// let through without a user lookup, so the returned user may be nil.
func AuthorizeOrg(ctx context.Context, l Lookup, orgID uuid.UUID, staff bool) (*models.User, error) {
	if staff {
		return nil, nil
	}
	u, err := Current(ctx, l)
	if err != nil {
		return nil, err
	}
	if !u.BelongsTo(orgID) {
		return nil, apperr.Forbidden("not authorized for this organization")
	}
	return u, nil
}
