// Package admin serves administrator operations: staff membership management in the identity
// provider and sample data reset.
package admin

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/pkg/apperr"
	"github.com/grantportal/backend/pkg/response"
)

// SampleStore deletes sample organizations.
type SampleStore interface {
	DocumentKeysForEINs(ctx context.Context, eins []string) ([]string, error)
	DeleteOrganizationsByEIN(ctx context.Context, eins []string) (int64, error)
}

// ObjectDeleter removes stored document objects.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Handler handles admin HTTP endpoints. Mount behind RequireRole(admin).
type Handler struct {
	directory identity.Directory
	orgID     string
	samples   SampleStore
	objects   ObjectDeleter
	logger    *zap.Logger
}

// NewHandler creates an admin handler for the organization orgID. objects may be nil.
func NewHandler(directory identity.Directory, orgID string, samples SampleStore, objects ObjectDeleter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{directory: directory, orgID: orgID, samples: samples, objects: objects, logger: logger}
}

// StaffMember is a membership with its resolved portal role.
type StaffMember struct {
	identity.OrgMember
	AccessRole access.Role `json:"access_role"`
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(c *gin.Context) {
	members, err := h.directory.ListMemberships(c.Request.Context(), h.orgID)
	if err != nil {
		h.logger.Error("list memberships failed", zap.Error(err))
		response.Err(c, apperr.Upstream("list memberships", err), "failed to load users")
		return
	}
	out := make([]StaffMember, 0, len(members))
	for _, m := range members {
		out = append(out, StaffMember{OrgMember: m, AccessRole: access.RoleFromLabel(m.Role)})
	}
	response.OK(c, out)
}

// RoleRequest is the body for PATCH /admin/users/:id/role.
type RoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole handles PATCH /admin/users/:id/role. Only admin, manager and member may be assigned;
// anything else is rejected before the identity provider is called.
func (h *Handler) UpdateRole(c *gin.Context) {
	userID := c.Param("id")
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "role required")
		return
	}
	label, ok := access.ParseAssignableLabel(req.Role)
	if !ok {
		response.BadRequest(c, "role must be one of admin, manager, member")
		return
	}
	if h.isSelf(c, userID) {
		response.BadRequest(c, "you cannot change your own role")
		return
	}
	member, err := h.directory.UpdateMembershipRole(c.Request.Context(), h.orgID, userID, label)
	if err != nil {
		h.membershipError(c, err, userID, "failed to update role")
		return
	}
	h.logger.Info("membership role updated", zap.String("user_id", userID), zap.String("role", label))
	response.OK(c, StaffMember{OrgMember: *member, AccessRole: access.RoleFromLabel(member.Role)})
}

// RemoveUser handles DELETE /admin/users/:id. It removes the user's membership in the organization.
func (h *Handler) RemoveUser(c *gin.Context) {
	userID := c.Param("id")
	if h.isSelf(c, userID) {
		response.BadRequest(c, "you cannot remove yourself")
		return
	}
	if err := h.directory.DeleteMembership(c.Request.Context(), h.orgID, userID); err != nil {
		h.membershipError(c, err, userID, "failed to remove user")
		return
	}
	h.logger.Info("membership removed", zap.String("user_id", userID))
	response.NoContent(c)
}

// ResetSampleData handles POST /admin/reset-sample-data. Only organizations in SampleEINs are deleted.
func (h *Handler) ResetSampleData(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.samples.DocumentKeysForEINs(ctx, SampleEINs)
	if err != nil {
		h.logger.Warn("sample document lookup failed", zap.Error(err))
	}
	n, err := h.samples.DeleteOrganizationsByEIN(ctx, SampleEINs)
	if err != nil {
		h.logger.Error("reset sample data failed", zap.Error(err))
		response.Internal(c, "failed to reset sample data")
		return
	}
	if h.objects != nil {
		for _, k := range keys {
			if err := h.objects.Delete(ctx, k); err != nil {
				h.logger.Warn("delete sample document object failed", zap.Error(err), zap.String("s3_key", k))
			}
		}
	}
	h.logger.Info("sample data reset", zap.Int64("deleted", n))
	response.OK(c, gin.H{"deleted": n})
}

func (h *Handler) isSelf(c *gin.Context, userID string) bool {
	id, ok := identity.FromContext(c.Request.Context())
	return ok && id.ExternalID == userID
}

func (h *Handler) membershipError(c *gin.Context, err error, userID, fallback string) {
	if errors.Is(err, identity.ErrMembershipNotFound) {
		response.NotFound(c, "user is not a member of the organization")
		return
	}
	h.logger.Error("identity provider call failed", zap.Error(err), zap.String("user_id", userID))
	response.Err(c, apperr.Upstream(fallback, err), fallback)
}
