package credentials_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/credentials"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
)

func testResolver(t *testing.T) (*credentials.Resolver, *credentials.Cache, *repository.MemoryUserRepo) {
	t.Helper()
	cache := credentials.NewCache(24 * time.Hour)
	users := repository.NewMemoryUserRepo()
	return credentials.NewResolver(cache, users, zap.NewNop()), cache, users
}

func TestResolveForUserStoredKey(t *testing.T) {
	ctx := context.Background()
	resolver, _, users := testResolver(t)

	user, err := users.Create(ctx, domain.User{Email: "host@example.com", QuendooAPIKey: "stored-key"})
	require.NoError(t, err)

	v, err := resolver.ResolveForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "stored-key", v)

	// Second resolve is served from cache.
	require.NoError(t, users.UpdateAPIKeys(ctx, user.ID, "changed", ""))
	v, err = resolver.ResolveForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "stored-key", v)
}

func TestResolveForUserWithoutKeyNoGlobalFallback(t *testing.T) {
	ctx := context.Background()
	resolver, cache, users := testResolver(t)
	cache.Set(credentials.GlobalKey, "global-key")

	user, err := users.Create(ctx, domain.User{Email: "host@example.com"})
	require.NoError(t, err)

	_, err = resolver.ResolveForUser(ctx, user.ID)
	require.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestResolveForTenantFallbackChain(t *testing.T) {
	resolver, cache, _ := testResolver(t)

	_, err := resolver.ResolveForTenant("tenant-a")
	require.ErrorIs(t, err, domain.ErrNoCredential)

	cache.Set(credentials.GlobalKey, "global-key")
	v, err := resolver.ResolveForTenant("tenant-a")
	require.NoError(t, err)
	require.Equal(t, "global-key", v)

	cache.Set("tenant-a", "tenant-key")
	v, err = resolver.ResolveForTenant("tenant-a")
	require.NoError(t, err)
	require.Equal(t, "tenant-key", v)
}

func TestStoreAndDropUserKeyPersists(t *testing.T) {
	ctx := context.Background()
	resolver, _, users := testResolver(t)

	user, err := users.Create(ctx, domain.User{Email: "host@example.com", EmailAPIKey: "mail-key"})
	require.NoError(t, err)
	key := credentials.KeyForUser(user.ID)

	require.NoError(t, resolver.Store(ctx, key, "fresh-key"))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "fresh-key", stored.QuendooAPIKey)
	require.Equal(t, "mail-key", stored.EmailAPIKey)

	require.NoError(t, resolver.Drop(ctx, key))
	stored, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.QuendooAPIKey)

	_, err = resolver.ResolveForUser(ctx, user.ID)
	require.ErrorIs(t, err, domain.ErrNoCredential)
}

func TestStoreUnknownUser(t *testing.T) {
	ctx := context.Background()
	resolver, _, _ := testResolver(t)

	err := resolver.Store(ctx, credentials.KeyForUser(99), "key")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestResolveEmailForUser(t *testing.T) {
	ctx := context.Background()
	resolver, _, users := testResolver(t)

	user, err := users.Create(ctx, domain.User{Email: "host@example.com", EmailAPIKey: "mail-key"})
	require.NoError(t, err)

	v, err := resolver.ResolveEmailForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "mail-key", v)

	bare, err := users.Create(ctx, domain.User{Email: "other@example.com"})
	require.NoError(t, err)
	_, err = resolver.ResolveEmailForUser(ctx, bare.ID)
	require.ErrorIs(t, err, domain.ErrNoCredential)
}
