package users

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/pkg/response"
)

// Handler handles the caller's own profile.
type Handler struct {
	users  Lookup
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(users Lookup, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, logger: logger}
}

// MeResponse describes the caller: local record plus resolved privileges.
type MeResponse struct {
	User       *models.User `json:"user"`
	Role       access.Role  `json:"role"`
	IsReviewer bool         `json:"is_reviewer"`
	IsManager  bool         `json:"is_manager"`
	IsAdmin    bool         `json:"is_admin"`
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	u, err := Current(c.Request.Context(), h.users)
	if err != nil {
		h.logger.Error("load current user failed", zap.Error(err))
		response.Err(c, err, "failed to load user")
		return
	}
	g := access.FromContext(c.Request.Context())
	response.OK(c, MeResponse{
		User:       u,
		Role:       g.Role(),
		IsReviewer: g.IsReviewer(),
		IsManager:  g.IsManager(),
		IsAdmin:    g.IsAdmin(),
	})
}
