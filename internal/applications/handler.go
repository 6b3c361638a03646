// Package applications serves letters of intent and full applications: submission, staff status
// changes and reviewer scoring.
package applications

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/internal/notify"
	"github.com/grantportal/backend/internal/users"
	"github.com/grantportal/backend/pkg/response"
)

// Store is the application persistence the handler needs.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]*models.Application, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	CountForOrganization(ctx context.Context, orgID, cycleID uuid.UUID, kind models.ApplicationKind) (int, error)
	HasApprovedLOI(ctx context.Context, orgID, cycleID uuid.UUID) (bool, error)
	Create(ctx context.Context, a *models.Application) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Application, error)
	UpsertReview(ctx context.Context, rv *models.Review) error
	ListReviews(ctx context.Context, applicationID uuid.UUID) ([]models.Review, error)
}

// CycleLookup finds cycles by ID, returning nil when absent.
type CycleLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
}

// OrganizationLookup finds organizations by ID, returning nil when absent.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// UserStore finds the caller and other local users.
type UserStore interface {
	users.Lookup
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Config carries the addresses used in notifications.
type Config struct {
	StaffEmail string
	BaseURL    string
}

// Handler handles application HTTP endpoints.
type Handler struct {
	repo     Store
	cycles   CycleLookup
	orgs     OrganizationLookup
	users    UserStore
	notifier notify.Notifier
	cfg      Config
	logger   *zap.Logger
}

// NewHandler creates an applications handler.
func NewHandler(repo Store, cycles CycleLookup, orgs OrganizationLookup, userStore UserStore, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, cycles: cycles, orgs: orgs, users: userStore, notifier: notifier, cfg: cfg, logger: logger}
}

// List handles GET /applications. Reviewers see every application and may filter by cycle_id and status;
// applicants see their organization's only.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	var f ListFilter
	if s := c.Query("cycle_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid cycle_id")
			return
		}
		f.CycleID = &id
	}
	if s := c.Query("status"); s != "" {
		if !models.ValidStatus(s) {
			response.BadRequest(c, "invalid status")
			return
		}
		f.Status = s
	}
	if !access.FromContext(ctx).IsReviewer() {
		u, err := users.Current(ctx, h.users)
		if err != nil {
			response.Err(c, err, "failed to load user")
			return
		}
		if u.OrganizationID == nil {
			response.OK(c, []*models.Application{})
			return
		}
		f.OrganizationID = u.OrganizationID
	}
	list, err := h.repo.List(ctx, f)
	if err != nil {
		h.logger.Error("list applications failed", zap.Error(err))
		response.Internal(c, "failed to load applications")
		return
	}
	response.OK(c, list)
}

// DetailResponse is an application with, for reviewers, its review summary.
type DetailResponse struct {
	*models.Application
	Reviews *models.ReviewSummary `json:"reviews,omitempty"`
}

// Get handles GET /applications/:id. Reviewers and members of the submitting organization only.
func (h *Handler) Get(c *gin.Context) {
	app, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	g := access.FromContext(ctx)
	if _, err := users.AuthorizeOrg(ctx, h.users, app.OrganizationID, g.IsReviewer()); err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	out := DetailResponse{Application: app}
	if g.IsReviewer() {
		reviews, err := h.repo.ListReviews(ctx, app.ID)
		if err != nil {
			h.logger.Error("list reviews failed", zap.Error(err), zap.String("application_id", app.ID.String()))
			response.Internal(c, "failed to load reviews")
			return
		}
		summary := Summarize(reviews)
		out.Reviews = &summary
	}
	response.OK(c, out)
}

// CreateRequest is the body for POST /applications.
type CreateRequest struct {
	CycleID              string `json:"cycle_id" binding:"required"`
	Kind                 string `json:"kind" binding:"required"`
	Title                string `json:"title" binding:"required"`
	Summary              string `json:"summary"`
	AmountRequestedCents int64  `json:"amount_requested_cents"`
}

// Create handles POST /applications. The caller submits on behalf of their organization.
func (h *Handler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := users.Current(ctx, h.users)
	if err != nil {
		response.Err(c, err, "failed to load user")
		return
	}
	if u.OrganizationID == nil {
		response.Forbidden(c, "create your organization profile before applying")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "cycle_id, kind and title required")
		return
	}
	cycleID, err := uuid.Parse(req.CycleID)
	if err != nil {
		response.BadRequest(c, "invalid cycle_id")
		return
	}
	kind := models.ApplicationKind(req.Kind)
	if kind != models.KindLOI && kind != models.KindFull {
		response.BadRequest(c, "kind must be loi or full")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > 255 {
		response.BadRequest(c, "title must be 1-255 characters")
		return
	}
	if req.AmountRequestedCents < 0 {
		response.BadRequest(c, "amount_requested_cents must not be negative")
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
	orgID := *u.OrganizationID
	switch kind {
	case models.KindLOI:
		if !cycle.OpenForLOIs() {
			response.BadRequest(c, "this cycle is not accepting letters of intent")
			return
		}
	case models.KindFull:
		if !cycle.OpenForApplications() {
			response.BadRequest(c, "this cycle is not accepting applications")
			return
		}
		ok, err := h.repo.HasApprovedLOI(ctx, orgID, cycleID)
		if err != nil {
			h.logger.Error("approved loi lookup failed", zap.Error(err), zap.String("organization_id", orgID.String()))
			response.Internal(c, "failed to submit application")
			return
		}
		if !ok {
			response.BadRequest(c, "a full application requires an approved letter of intent for this cycle")
			return
		}
	}
	if cycle.MaxRequestCents != nil && req.AmountRequestedCents > *cycle.MaxRequestCents {
		response.BadRequest(c, "amount requested exceeds the cycle maximum of "+notify.FormatCents(*cycle.MaxRequestCents))
		return
	}
	if cycle.MaxApplicationsPerOrg != nil {
		n, err := h.repo.CountForOrganization(ctx, orgID, cycleID, kind)
		if err != nil {
			h.logger.Error("count applications failed", zap.Error(err), zap.String("organization_id", orgID.String()))
			response.Internal(c, "failed to submit application")
			return
		}
		if n >= *cycle.MaxApplicationsPerOrg {
			response.Conflict(c, "your organization has reached the submission limit for this cycle")
			return
		}
	}

	app := &models.Application{
		OrganizationID:       orgID,
		CycleID:              cycleID,
		Kind:                 kind,
		Status:               models.StatusSubmitted,
		Title:                title,
		Summary:              strings.TrimSpace(req.Summary),
		AmountRequestedCents: req.AmountRequestedCents,
		SubmittedBy:          u.ID,
	}
	if err := h.repo.Create(ctx, app); err != nil {
		h.logger.Error("create application failed", zap.Error(err), zap.String("organization_id", orgID.String()))
		response.Internal(c, "failed to submit application")
		return
	}
	h.logger.Info("application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("kind", string(kind)),
	)

	org, err := h.orgs.GetByID(ctx, orgID)
	if err != nil {
		h.logger.Warn("load organization for email failed", zap.Error(err))
	}
	sub := notify.Submission{Application: app, Organization: org, Cycle: cycle, Submitter: u, BaseURL: h.cfg.BaseURL}
	h.send(ctx, sub, notify.SubmissionReceipt)
	h.send(ctx, sub, func(s notify.Submission) (notify.Message, error) {
		return notify.StaffNotification(s, h.cfg.StaffEmail)
	})
	response.Created(c, app)
}

// StatusRequest is the body for PATCH /applications/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /applications/:id/status (manager). The submitter is emailed when the status changes.
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidStatus(req.Status) {
		response.BadRequest(c, "status must be one of "+strings.Join(models.ApplicationStatuses, ", "))
		return
	}
	ctx := c.Request.Context()
	before, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.logger.Error("get application failed", zap.Error(err), zap.String("application_id", id.String()))
		response.Internal(c, "failed to load application")
		return
	}
	if before == nil {
		response.NotFound(c, "application not found")
		return
	}
	if before.Status == req.Status {
		response.OK(c, before)
		return
	}
	app, err := h.repo.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.logger.Error("update status failed", zap.Error(err), zap.String("application_id", id.String()))
		response.Internal(c, "failed to update status")
		return
	}
	if app == nil {
		response.NotFound(c, "application not found")
		return
	}
	h.logger.Info("application status changed",
		zap.String("application_id", id.String()),
		zap.String("from", before.Status),
		zap.String("to", app.Status),
	)

	submitter, err := h.users.GetByID(ctx, app.SubmittedBy)
	if err != nil || submitter == nil {
		h.logger.Warn("submitter not found for status email", zap.Error(err), zap.String("application_id", id.String()))
	} else {
		sub := notify.Submission{Application: app, Submitter: submitter, BaseURL: h.cfg.BaseURL}
		if cycle, err := h.cycles.GetByID(ctx, app.CycleID); err == nil {
			sub.Cycle = cycle
		}
		h.send(ctx, sub, notify.StatusChange)
	}
	response.OK(c, app)
}

// ReviewRequest is the body for PUT /applications/:id/review.
type ReviewRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Review handles PUT /applications/:id/review (reviewer). Each reviewer holds one review per application.
func (h *Handler) Review(c *gin.Context) {
	app, ok := h.load(c)
	if !ok {
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	if req.Score < MinScore || req.Score > MaxScore {
		response.BadRequest(c, "score must be between 1 and 5")
		return
	}
	ctx := c.Request.Context()
	id, ok := identity.FromContext(ctx)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	rv := &models.Review{
		ApplicationID:      app.ID,
		ReviewerExternalID: id.ExternalID,
		Score:              req.Score,
		Comment:            strings.TrimSpace(req.Comment),
	}
	if err := h.repo.UpsertReview(ctx, rv); err != nil {
		h.logger.Error("upsert review failed", zap.Error(err), zap.String("application_id", app.ID.String()))
		response.Internal(c, "failed to save review")
		return
	}
	response.OK(c, rv)
}

func (h *Handler) load(c *gin.Context) (*models.Application, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return nil, false
	}
	app, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get application failed", zap.Error(err), zap.String("application_id", id.String()))
		response.Internal(c, "failed to load application")
		return nil, false
	}
	if app == nil {
		response.NotFound(c, "application not found")
		return nil, false
	}
	return app, true
}

func (h *Handler) send(ctx context.Context, sub notify.Submission, compose func(notify.Submission) (notify.Message, error)) {
	msg, err := compose(sub)
	if err != nil {
		h.logger.Error("compose email failed", zap.Error(err))
		return
	}
	h.notifier.Send(ctx, msg)
}
