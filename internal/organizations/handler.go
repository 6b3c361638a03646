// Package organizations serves applicant organization profiles and the per-cycle profile review confirmation.
package organizations

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/internal/users"
	"github.com/grantportal/backend/pkg/response"
)

// EIN is the US employer identification number, NN-NNNNNNN.
var einRegex = regexp.MustCompile(`^\d{2}-\d{7}$`)

// Store is the organization persistence the handler needs.
type Store interface {
	CreateForUser(ctx context.Context, org *models.Organization, userID uuid.UUID) error
	List(ctx context.Context) ([]*models.Organization, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	MarkProfileReviewed(ctx context.Context, orgID, cycleID uuid.UUID) (*models.ProfileReview, error)
}

// CycleLookup finds cycles by ID, returning nil when absent.
type CycleLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   Store
	cycles CycleLookup
	users  users.Lookup
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo Store, cycles CycleLookup, userLookup users.Lookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, cycles: cycles, users: userLookup, logger: logger}
}

// ProfileRequest is the body for POST /organizations and PATCH /organizations/:id.
type ProfileRequest struct {
	Name    *string `json:"name"`
	EIN     *string `json:"ein"`
	Mission *string `json:"mission"`
	Website *string `json:"website"`
	City    *string `json:"city"`
	State   *string `json:"state"`
}

func (req *ProfileRequest) apply(org *models.Organization) string {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&org.Name, req.Name)
	set(&org.EIN, req.EIN)
	set(&org.Mission, req.Mission)
	set(&org.Website, req.Website)
	set(&org.City, req.City)
	set(&org.State, req.State)
	if org.Name == "" || len(org.Name) > 255 {
		return "name must be 1-255 characters"
	}
	if !einRegex.MatchString(org.EIN) {
		return "ein must be in the form NN-NNNNNNN"
	}
	if len(org.Website) > 512 {
		return "website too long"
	}
	return ""
}

// Create handles POST /organizations. Creates the organization and links the caller to it.
func (h *Handler) Create(c *gin.Context) {
	u, err := users.Current(c.Request.Context(), h.users)
	if err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	if u.OrganizationID != nil {
		response.Conflict(c, "you already belong to an organization")
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	org := &models.Organization{}
	if msg := req.apply(org); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.CreateForUser(c.Request.Context(), org, u.ID); err != nil {
		if errors.Is(err, ErrDuplicateEIN) {
			response.Conflict(c, "an organization with this EIN already exists")
			return
		}
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	h.logger.Info("organization created", zap.String("organization_id", org.ID.String()), zap.String("user_id", u.ID.String()))
	response.Created(c, org)
}

// List handles GET /organizations (reviewer).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list organizations failed", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /organizations/:id. Reviewers and members of the organization only.
func (h *Handler) Get(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	g := access.FromContext(c.Request.Context())
	if _, err := users.AuthorizeOrg(c.Request.Context(), h.users, orgID, g.IsReviewer()); err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	org, ok := h.load(c, orgID)
	if !ok {
		return
	}
	response.OK(c, org)
}

// Update handles PATCH /organizations/:id. Members of the organization and managers only.
func (h *Handler) Update(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	g := access.FromContext(c.Request.Context())
	if _, err := users.AuthorizeOrg(c.Request.Context(), h.users, orgID, g.IsManager()); err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	org, ok := h.load(c, orgID)
	if !ok {
		return
	}
	if msg := req.apply(org); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Update(c.Request.Context(), org); err != nil {
		if errors.Is(err, ErrDuplicateEIN) {
			response.Conflict(c, "an organization with this EIN already exists")
			return
		}
		h.logger.Error("update organization failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to update organization")
		return
	}
	response.OK(c, org)
}

// ReviewProfileRequest is the body for POST /organizations/review-profile.
type ReviewProfileRequest struct {
	OrganizationID string `json:"organization_id"`
	CycleID        string `json:"cycle_id"`
}

// ReviewProfile handles POST /organizations/review-profile. It confirms the organization profile was
// reviewed for a cycle. The cycle must exist; nothing is written otherwise.
func (h *Handler) ReviewProfile(c *gin.Context) {
	var req ReviewProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "organization_id and cycle_id required")
		return
	}
	if strings.TrimSpace(req.OrganizationID) == "" || strings.TrimSpace(req.CycleID) == "" {
		response.BadRequest(c, "organization_id and cycle_id required")
		return
	}
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		response.BadRequest(c, "invalid organization_id")
		return
	}
	cycleID, err := uuid.Parse(req.CycleID)
	if err != nil {
		response.BadRequest(c, "invalid cycle_id")
		return
	}
	ctx := c.Request.Context()
	g := access.FromContext(ctx)
	if _, err := users.AuthorizeOrg(ctx, h.users, orgID, g.IsManager()); err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	cycle, err := h.cycles.GetByID(ctx, cycleID)
	if err != nil {
		h.logger.Error("get cycle failed", zap.Error(err), zap.String("cycle_id", cycleID.String()))
		response.Internal(c, "failed to load cycle")
		return
	}
	if cycle == nil {
		response.NotFound(c, "cycle not found")
		return
	}
	review, err := h.repo.MarkProfileReviewed(ctx, orgID, cycleID)
	if err != nil {
		h.logger.Error("mark profile reviewed failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to record profile review")
		return
	}
	if review == nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, review)
}

func (h *Handler) load(c *gin.Context, orgID uuid.UUID) (*models.Organization, bool) {
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("get organization failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to load organization")
		return nil, false
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return nil, false
	}
	return org, true
}
