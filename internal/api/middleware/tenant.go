package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// TenantHeader carries the authenticated tenant id, set by the auth proxy
	// in front of this service.
	TenantHeader = "X-User-ID"
	// TenantKey is the context key the tenant id is stored under.
	TenantKey = "user_id"
)

// Tenant requires an authenticated tenant id on the request. Session
// validation happens upstream; this service only consumes the resulting
// identity header.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(TenantHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Set(TenantKey, userID)
		c.Next()
	}
}

// TenantID retrieves the tenant id stored by the Tenant middleware.
func TenantID(c *gin.Context) string {
	if userID, exists := c.Get(TenantKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
