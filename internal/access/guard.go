package access

import (
	"context"

	"github.com/grantportal/backend/internal/identity"
)

// Guard answers privilege questions for one request. The role is resolved once at construction,
// so predicates are pure and may be called any number of times.
type Guard struct {
	identity *identity.Identity
	role     Role
}

// NewGuard resolves the role of id in orgID.
func NewGuard(id *identity.Identity, orgID string) Guard {
	return Guard{identity: id, role: ResolveRole(id, orgID)}
}

// Authenticated reports whether an identity was resolved for the request.
func (g Guard) Authenticated() bool { return g.identity != nil }

// Identity returns the resolved identity, or nil.
func (g Guard) Identity() *identity.Identity { return g.identity }

// Role returns the resolved role.
func (g Guard) Role() Role { return g.role }

// IsReviewer is true for any staff membership.
func (g Guard) IsReviewer() bool { return g.role >= RoleMember }

// IsManager is true for managers and admins.
func (g Guard) IsManager() bool { return g.role >= RoleManager }

// IsAdmin is true for admins only.
func (g Guard) IsAdmin() bool { return g.role == RoleAdmin }

// Allows reports whether the resolved role meets min.
func (g Guard) Allows(min Role) bool {
	switch min {
	case RoleNone:
		return g.Authenticated()
	case RoleMember:
		return g.IsReviewer()
	case RoleManager:
		return g.IsManager()
	case RoleAdmin:
		return g.IsAdmin()
	}
	return false
}

type ctxKey struct{}

// WithGuard returns a copy of ctx carrying g.
func WithGuard(ctx context.Context, g Guard) context.Context {
	return context.WithValue(ctx, ctxKey{}, g)
}

// FromContext returns the guard stored in ctx. Without one, the zero Guard denies everything.
func FromContext(ctx context.Context) Guard {
	g, _ := ctx.Value(ctxKey{}).(Guard)
	return g
}
