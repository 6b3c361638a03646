package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/grantportal/backend/internal/access"
	"github.com/grantportal/backend/internal/identity"
	"github.com/grantportal/backend/pkg/response"
)

// ContextExternalID is the key for the caller's identity provider id in gin context (used by the request logger).
const ContextExternalID = "external_id"

// Identity resolves the caller once per request and stores the identity and its guard on the request
// context. It never rejects; use RequireIdentity or RequireRole for that.
func Identity(provider identity.Provider, orgID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := provider.Identify(c.Request.Context(), c.Request)
		if !ok {
			id = nil
		}
		ctx := c.Request.Context()
		if id != nil {
			ctx = identity.WithIdentity(ctx, id)
			c.Set(ContextExternalID, id.ExternalID)
		}
		ctx = access.WithGuard(ctx, access.NewGuard(id, orgID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity rejects unauthenticated API requests with 401.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !access.FromContext(c.Request.Context()).Authenticated() {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}
