package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gorianvarbanov/quendoo-mcp/internal/service"
	"github.com/gorianvarbanov/quendoo-mcp/internal/tenant"
)

// Auth resolves the caller identity from the Authorization header and stores
// it in the request context for downstream handlers and MCP tools.
type Auth struct {
	Tokens *service.AccessTokenService
}

// ResolveIdentity attaches a tenant identity to every request. A valid
// bearer token yields an authenticated identity; anything else falls back to
// the anonymous tenant resolution. Invalid tokens do not fail the request
// here because unauthenticated access is allowed on most surfaces.
func (m *Auth) ResolveIdentity(c *gin.Context) {
	id := tenant.Resolve(c.Request)

	if raw, ok := bearerToken(c); ok {
		if identity, err := m.Tokens.Validate(c.Request.Context(), raw); err == nil {
			id = tenant.Identity{UserID: identity.UserID, Authenticated: true}
		}
	}

	c.Request = c.Request.WithContext(tenant.WithIdentity(c.Request.Context(), id))
	c.Next()
}

// RequireAuth aborts requests that lack a valid bearer token.
func (m *Auth) RequireAuth(c *gin.Context) {
	raw, ok := bearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}
	identity, err := m.Tokens.Validate(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}
	c.Request = c.Request.WithContext(tenant.WithIdentity(c.Request.Context(), tenant.Identity{
		UserID:        identity.UserID,
		Authenticated: true,
	}))
	c.Next()
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
