package tenant_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gorianvarbanov/quendoo-mcp/internal/credentials"
	"github.com/gorianvarbanov/quendoo-mcp/internal/tenant"
)

func TestCacheKey(t *testing.T) {
	require.Equal(t, "user:7", tenant.Identity{UserID: 7, Authenticated: true}.CacheKey())
	require.Equal(t, "hotel-a", tenant.Identity{TenantKey: "hotel-a"}.CacheKey())
	require.Equal(t, credentials.GlobalKey, tenant.Identity{}.CacheKey())

	// An authenticated user's key wins over a tenant header.
	id := tenant.Identity{UserID: 3, Authenticated: true, TenantKey: "hotel-a"}
	require.Equal(t, "user:3", id.CacheKey())
}

func TestResolveFromHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/mcp", nil)
	req.Header.Set(tenant.HeaderTenantID, "hotel-a")

	id := tenant.Resolve(req)
	require.False(t, id.Authenticated)
	require.Equal(t, "hotel-a", id.TenantKey)
}

func TestResolveFallsBackToMCPSession(t *testing.T) {
	req := httptest.NewRequest("GET", "/mcp", nil)
	req.Header.Set(tenant.HeaderMCPSession, "abc123")

	id := tenant.Resolve(req)
	require.False(t, id.Authenticated)
	require.Equal(t, "session:abc123", id.TenantKey)
	require.Equal(t, "session:abc123", id.CacheKey())

	// An explicit tenant key wins over the session id.
	req.Header.Set(tenant.HeaderTenantID, "hotel-a")
	require.Equal(t, "hotel-a", tenant.Resolve(req).TenantKey)

	// Neither header resolves to the global key.
	bare := httptest.NewRequest("GET", "/mcp", nil)
	require.Equal(t, credentials.GlobalKey, tenant.Resolve(bare).CacheKey())
}

func TestIdentityContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, tenant.Identity{}, tenant.FromContext(ctx))

	want := tenant.Identity{UserID: 9, Authenticated: true}
	ctx = tenant.WithIdentity(ctx, want)
	require.Equal(t, want, tenant.FromContext(ctx))
}
