package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is where Middleware stores the authenticated user id.
const ContextUserIDKey = "userID"

// Middleware guards HTTP endpoints with bearer-token authentication.
// Websocket upgrades may pass the token as a "token" query parameter instead,
// since browsers cannot set headers on the upgrade request.
func Middleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}

		claims, err := a.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID extracts the authenticated identity set by Middleware.
func UserID(c *gin.Context) string {
	id, _ := c.Get(ContextUserIDKey)
	s, _ := id.(string)
	return s
}

func bearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
