package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"logitrack/pkg/jwt"
	"logitrack/pkg/log"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// AuthMiddleware requires a valid bearer token and puts the caller's
// identity on the context. Browsers cannot set headers on a websocket
// upgrade, so a ?token= query parameter is accepted too.
func AuthMiddleware(verifier *jwt.Verifier) gin.HandlerFunc {
	logger := log.WithComponent("auth")

	return func(c *gin.Context) {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header required"})
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.User())
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// UserID returns the authenticated caller, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func tokenFrom(c *gin.Context) string {
	// Handle both "Bearer token" and just "token" formats
	if header := c.GetHeader("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}
