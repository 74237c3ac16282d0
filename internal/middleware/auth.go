package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/pair_quiz/internal/security"
	"github.com/mroshb/pair_quiz/pkg/errors"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "userID"
	ContextLogin  = "login"
)

// AuthMiddleware accepts "Authorization: Bearer <jwt>" signed with secret and stores the user id in the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, errors.New(errors.ErrCodeUnauthorized, "authorization header is required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, errors.New(errors.ErrCodeUnauthorized, "invalid token format"))
			return
		}

		claims, err := security.ValidateJWT(strings.TrimSpace(parts[1]), secret)
		if err != nil {
			AbortWithError(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "invalid or expired token"))
			return
		}

		c.Set(ContextUserID, claims.Player())
		c.Set(ContextLogin, claims.Login)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
