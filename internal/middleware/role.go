package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/pkg/response"
)

// Landing pages for page routes that fail a guard.
const (
	SignInPath = "/sign-in"
	HomePath   = "/"
)

// RequireRole returns a middleware that allows only callers whose role is at least min.
// Unauthenticated callers get 401, insufficient roles 403.
func RequireRole(min access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		g := access.FromContext(c.Request.Context())
		if !g.Authenticated() {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		if !g.Allows(min) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePageRole is RequireRole for server-rendered pages: failures redirect instead of returning JSON.
func RequirePageRole(min access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		g := access.FromContext(c.Request.Context())
		if !g.Authenticated() {
			c.Redirect(http.StatusFound, SignInPath)
			c.Abort()
			return
		}
		if !g.Allows(min) {
			c.Redirect(http.StatusFound, HomePath)
			c.Abort()
			return
		}
		c.Next()
	}
}
