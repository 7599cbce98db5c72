package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireAccessToken verifies an access token and injects the account
// identity into the request context. Resource ownership checks belong to the
// handlers; this middleware only establishes who is calling.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithAccount(c.Request.Context(), claims.AccountID)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("account_id", claims.AccountID)

		c.Next()
	}
}

// AccountFromGin returns the authenticated account id set by
// RequireAccessToken, or empty when the route is unauthenticated.
func AccountFromGin(c *gin.Context) string {
	if v, ok := c.Get("account_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
