package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Store lists email logs.
type Store interface {
	ListRecent(ctx context.Context, status string, limit int) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/email-logs?status=&limit=. Mount behind RequireRole(manager).
func (h *Handler) List(c *gin.Context) {
	status := c.Query("status")
	if status != "" && status != models.EmailLogStatusSent && status != models.EmailLogStatusFailed {
		response.BadRequest(c, "status must be sent or failed")
		return
	}
	limit := defaultLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}
	logs, err := h.repo.ListRecent(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
