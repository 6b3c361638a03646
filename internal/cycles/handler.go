// Package cycles serves grant rounds: the public list of open cycles and staff management.
package cycles

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/pkg/response"
)

// Store is the cycle persistence the handler needs.
type Store interface {
	ListOpen(ctx context.Context) ([]*models.Cycle, error)
	List(ctx context.Context) ([]*models.Cycle, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	Create(ctx context.Context, c *models.Cycle) error
	Update(ctx context.Context, c *models.Cycle) error
}

// Handler handles cycle HTTP endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates a cycles handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListOpen handles GET /cycles. Only active cycles accepting letters of intent are returned, as summaries.
func (h *Handler) ListOpen(c *gin.Context) {
	list, err := h.repo.ListOpen(c.Request.Context())
	if err != nil {
		h.logger.Error("list open cycles failed", zap.Error(err))
		response.Internal(c, "failed to load cycles")
		return
	}
	out := make([]models.CycleSummary, 0, len(list))
	for _, cy := range list {
		if !cy.OpenForLOIs() {
			continue
		}
		out = append(out, cy.Summary())
	}
	response.OK(c, out)
}

// List handles GET /admin/cycles (manager). Includes internal fields.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list cycles failed", zap.Error(err))
		response.Internal(c, "failed to load cycles")
		return
	}
	response.OK(c, list)
}

// CycleRequest is the body for POST /admin/cycles and PATCH /admin/cycles/:id.
// Absent fields are left unchanged on update. Deadlines are RFC3339.
type CycleRequest struct {
	Name                  *string `json:"name"`
	IsActive              *bool   `json:"is_active"`
	AcceptingLOIs         *bool   `json:"accepting_lois"`
	AcceptingApplications *bool   `json:"accepting_applications"`
	LOIDeadline           *string `json:"loi_deadline"`
	ApplicationDeadline   *string `json:"application_deadline"`
	MaxRequestCents       *int64  `json:"max_request_cents"`
	MaxApplicationsPerOrg *int    `json:"max_applications_per_org"`
	InternalNotes         *string `json:"internal_notes"`
}

// apply copies the request onto cy. It returns a client-facing message when a field is invalid.
func (req *CycleRequest) apply(cy *models.Cycle) string {
	if req.Name != nil {
		cy.Name = strings.TrimSpace(*req.Name)
	}
	if cy.Name == "" || len(cy.Name) > 255 {
		return "name must be 1-255 characters"
	}
	if req.IsActive != nil {
		cy.IsActive = *req.IsActive
	}
	if req.AcceptingLOIs != nil {
		cy.AcceptingLOIs = *req.AcceptingLOIs
	}
	if req.AcceptingApplications != nil {
		cy.AcceptingApplications = *req.AcceptingApplications
	}
	var ok bool
	if cy.LOIDeadline, ok = parseDeadline(req.LOIDeadline, cy.LOIDeadline); !ok {
		return "invalid loi_deadline"
	}
	if cy.ApplicationDeadline, ok = parseDeadline(req.ApplicationDeadline, cy.ApplicationDeadline); !ok {
		return "invalid application_deadline"
	}
	if req.MaxRequestCents != nil {
		if *req.MaxRequestCents <= 0 {
			cy.MaxRequestCents = nil
		} else {
			cy.MaxRequestCents = req.MaxRequestCents
		}
	}
	if req.MaxApplicationsPerOrg != nil {
		if *req.MaxApplicationsPerOrg <= 0 {
			cy.MaxApplicationsPerOrg = nil
		} else {
			cy.MaxApplicationsPerOrg = req.MaxApplicationsPerOrg
		}
	}
	if req.InternalNotes != nil {
		cy.InternalNotes = strings.TrimSpace(*req.InternalNotes)
	}
	return ""
}

// parseDeadline returns current when s is absent, nil when s is empty, else the parsed time.
func parseDeadline(s *string, current *time.Time) (*time.Time, bool) {
	if s == nil {
		return current, true
	}
	if *s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

// Create handles POST /admin/cycles (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	cy := &models.Cycle{}
	if msg := req.apply(cy); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Create(c.Request.Context(), cy); err != nil {
		h.logger.Error("create cycle failed", zap.Error(err))
		response.Internal(c, "failed to create cycle")
		return
	}
	h.logger.Info("cycle created", zap.String("cycle_id", cy.ID.String()), zap.String("name", cy.Name))
	response.Created(c, cy)
}

// Update handles PATCH /admin/cycles/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid cycle id")
		return
	}
	var req CycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	cy, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get cycle failed", zap.Error(err), zap.String("cycle_id", id.String()))
		response.Internal(c, "failed to load cycle")
		return
	}
	if cy == nil {
		response.NotFound(c, "cycle not found")
		return
	}
	if msg := req.apply(cy); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.repo.Update(c.Request.Context(), cy); err != nil {
		h.logger.Error("update cycle failed", zap.Error(err), zap.String("cycle_id", id.String()))
		response.Internal(c, "failed to update cycle")
		return
	}
	response.OK(c, cy)
}
