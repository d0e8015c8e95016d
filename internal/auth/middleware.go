package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenMiddleware authenticates cron requests. The token comes from the
// `token` query parameter; a Bearer Authorization header also works.
func TokenMiddleware(manager *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		if err := manager.ValidateToken(tokenString); err != nil {
			status := http.StatusUnauthorized
			message := "invalid token"
			if errors.Is(err, ErrTokenExpired) {
				message = "token expired"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Next()
	}
}
