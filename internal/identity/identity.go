// Package identity adapts the external identity provider: it verifies session tokens into an
// Identity and manages organization memberships through the provider's backend API.
package identity

import (
	"context"
	"net/http"
)

// Role labels as issued by the identity provider.
const (
	RoleLabelAdmin   = "org:admin"
	RoleLabelManager = "org:manager"
	RoleLabelMember  = "org:member"
)

// MembershipClaim is one provider-reported organization membership, validated at decode time.
type MembershipClaim struct {
	OrgID string
	Role  string
}

// Membership is the caller's standing in one organization. It is either NoMembership or Member.
type Membership interface {
	isMembership()
}

// NoMembership means the identity holds no usable membership in the organization.
type NoMembership struct{}

// Member carries the role label of the membership entry used for the organization.
type Member struct {
	Role string
}

func (NoMembership) isMembership() {}
func (Member) isMembership()       {}

// Identity is an authenticated caller as reported by the identity provider.
type Identity struct {
	ExternalID  string
	Email       string
	FirstName   string
	LastName    string
	Memberships []MembershipClaim
}

// MembershipIn returns the membership for orgID. Only the first entry for the organization is
// considered; later duplicates are ignored. An entry with an empty role label counts as no membership.
func (id *Identity) MembershipIn(orgID string) Membership {
	if id == nil || orgID == "" {
		return NoMembership{}
	}
	for _, m := range id.Memberships {
		if m.OrgID != orgID {
			continue
		}
		if m.Role == "" {
			return NoMembership{}
		}
		return Member{Role: m.Role}
	}
	return NoMembership{}
}

// Provider resolves the caller of an inbound request. Any failure, whatever the cause,
// is reported as absent (ok == false).
type Provider interface {
	Identify(ctx context.Context, r *http.Request) (id *Identity, ok bool)
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
