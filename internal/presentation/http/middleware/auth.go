package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hutchutchutch/fmath-sub002/internal/infrastructure/security"
	"github.com/hutchutchutch/fmath-sub002/pkg/config"
)

const userIDKey = "userId"

// AuthMiddleware validates the bearer JWT and stashes the acting user
// id on the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token"})
			return
		}

		claims, err := security.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "), config.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		userID, err := security.UserIDFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user id set by AuthMiddleware.
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(userIDKey)
	return userID, userID != ""
}
