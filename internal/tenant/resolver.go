package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorianvarbanov/quendoo-mcp/internal/credentials"
)

// HeaderTenantID carries an explicit tenant key for unauthenticated callers.
const HeaderTenantID = "X-Tenant-ID"

// HeaderMCPSession is the MCP streamable-HTTP session header. It scopes
// credentials to the session when no tenant key is presented.
const HeaderMCPSession = "Mcp-Session-Id"

// SessionKeyPrefix namespaces session-derived cache keys so they can never
// collide with explicit tenant keys or user keys.
const SessionKeyPrefix = "session:"

// Identity is the resolved caller of a request. Authenticated requests carry
// the token's user; anonymous requests carry only a tenant cache key.
type Identity struct {
	UserID        int64
	Authenticated bool
	TenantKey     string
}

// CacheKey returns the credential cache key for this identity.
func (id Identity) CacheKey() string {
	if id.Authenticated {
		return credentials.KeyForUser(id.UserID)
	}
	if id.TenantKey != "" {
		return id.TenantKey
	}
	return credentials.GlobalKey
}

type ctxKey struct{}

// WithIdentity stores the resolved identity in the request context so it
// survives into downstream handlers and tool invocations.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity resolved for this request. The zero
// identity maps to the global credential.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Identity{}
}

// Resolve builds an anonymous identity from request headers: an explicit
// X-Tenant-ID wins, then the MCP session id, then nothing (the global key).
// Callers that validated a bearer token should construct the identity
// directly instead.
func Resolve(r *http.Request) Identity {
	if key := strings.TrimSpace(r.Header.Get(HeaderTenantID)); key != "" {
		return Identity{TenantKey: key}
	}
	if session := strings.TrimSpace(r.Header.Get(HeaderMCPSession)); session != "" {
		return Identity{TenantKey: SessionKeyPrefix + session}
	}
	return Identity{}
}
