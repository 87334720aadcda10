package middleware

import (
	"net/http"
	"strings"

	"github.com/flexprice/plansync/internal/auth"
	"github.com/flexprice/plansync/internal/interfaces"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/types"
	"github.com/gin-gonic/gin"
)

// AuthenticateMiddleware authenticates requests with a JWT bearer token and sets the
// user ID and email in the request context for downstream handlers. The first
// authenticated request of a user creates their local record on the free plan.
func AuthenticateMiddleware(validator *auth.TokenValidator, reconciler interfaces.ReconcilerService, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(types.HeaderAuthorization)
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		// Check if the authorization header is in the correct format
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := validator.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Debugw("failed to validate token", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = types.SetUserID(ctx, claims.UserID)
		ctx = types.SetUserEmail(ctx, claims.Email)
		c.Request = c.Request.WithContext(ctx)

		if _, err := reconciler.EnsureUser(ctx, claims.UserID, claims.Email); err != nil {
			logger.Errorw("failed to bootstrap user", "user_id", claims.UserID, "error", err)
			c.Error(err)
			c.Abort()
			return
		}

		c.Next()
	}
}
