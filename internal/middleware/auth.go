package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/seopilot/core/internal/pkg/jwt"
	"github.com/seopilot/core/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
)

// Auth returns a middleware that enforces JWT bearer authentication.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jwt.Parse(extractToken(c))
		if err != nil || claims.UserID == "" {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// ActorFromContext returns the authenticated user ID or "system" when the
// request came from an internal caller.
func ActorFromContext(c *gin.Context) string {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return "system"
}

func extractToken(c *gin.Context) string {
	if raw := NormalizeToken(c.GetHeader("Authorization")); raw != "" {
		return raw
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken strips a Bearer prefix and surrounding whitespace.
func NormalizeToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
