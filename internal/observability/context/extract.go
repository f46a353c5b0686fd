package context

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RequestIDFromGin resolves the request id assigned by the logging middleware.
func RequestIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if ctx := c.Request.Context(); ctx != nil {
		if value := RequestIDFromContext(ctx); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.GetString("request_id"))
}

// OrgIDFromGin resolves the org scope placed on the request by the server.
func OrgIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if ctx := c.Request.Context(); ctx != nil {
		if value := OrgIDFromContext(ctx); value != "" {
			return value
		}
	}
	if value, ok := c.Get("org_id"); ok {
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// ActorFromGin resolves the acting identity for audit attribution.
func ActorFromGin(c *gin.Context) (string, string) {
	if c == nil {
		return "", ""
	}
	return ActorFromContext(c.Request.Context())
}
