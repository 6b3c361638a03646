// Package access derives a caller's coarse role from their identity provider membership and
// exposes the predicates handlers gate privileged operations on.
package access

import (
	"github.com/grantportal/backend/internal/identity"
)

// Role is the caller's privilege level. Higher values include every capability of lower ones.
type Role int

const (
	RoleNone Role = iota
	RoleMember
	RoleManager
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// MarshalText renders the role name in JSON responses.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// RoleFromLabel maps a provider role label to a Role. Any non-empty label other than the admin and
// manager labels is a member.
func RoleFromLabel(label string) Role {
	switch label {
	case "":
		return RoleNone
	case identity.RoleLabelAdmin:
		return RoleAdmin
	case identity.RoleLabelManager:
		return RoleManager
	default:
		return RoleMember
	}
}

// ResolveRole computes the role of id in the recognized organization orgID.
// It never fails: a missing identity or membership yields RoleNone.
func ResolveRole(id *identity.Identity, orgID string) Role {
	if id == nil {
		return RoleNone
	}
	switch m := id.MembershipIn(orgID).(type) {
	case identity.Member:
		return RoleFromLabel(m.Role)
	default:
		return RoleNone
	}
}

// AssignableLabels are the role labels an administrator may grant.
var AssignableLabels = []string{identity.RoleLabelAdmin, identity.RoleLabelManager, identity.RoleLabelMember}

// ParseAssignableLabel normalizes a requested role to a provider label. Both the label form
// ("org:manager") and the short form ("manager") are accepted; anything else is rejected.
func ParseAssignableLabel(s string) (string, bool) {
	switch s {
	case identity.RoleLabelAdmin, "admin":
		return identity.RoleLabelAdmin, true
	case identity.RoleLabelManager, "manager":
		return identity.RoleLabelManager, true
	case identity.RoleLabelMember, "member":
		return identity.RoleLabelMember, true
	}
	return "", false
}
