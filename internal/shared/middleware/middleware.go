package middleware

import (
	"net/http"

	"topgun/internal/auth"
	"topgun/internal/shared/utils/response"
	"topgun/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextKeyIdentity  = "identity"
	ContextKeyUserID    = "user_id"
	ContextKeyUserType  = "user_type"
	ContextKeyRequestID = "request_id"
)

// BearerAuth creates an authentication middleware backed by the token verifier
func BearerAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "Authorization header is required", nil)
			return
		}

		identity, err := verifier.Verify(authHeader)
		if err != nil {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), err.Error(), c.ClientIP())
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		c.Set(ContextKeyIdentity, identity)
		c.Set(ContextKeyUserID, identity.UserID)
		c.Set(ContextKeyUserType, string(identity.UserType))

		c.Next()
	}
}

// CurrentIdentity returns the identity BearerAuth stored on the context
func CurrentIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok && identity != nil
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "user role not found in context", nil)
			return
		}

		for _, role := range requiredRoles {
			if identity.UserType == role {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "Insufficient permissions", nil)
	}
}

// RequestID propagates X-Request-ID or mints one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Set(ContextKeyRequestID, reqID)

		c.Next()
	}
}
