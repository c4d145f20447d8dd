package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/jwt"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
	"github.com/gorianvarbanov/quendoo-mcp/internal/service"
)

func testTokenService(ttl time.Duration) *service.AccessTokenService {
	keys := jwt.NewKeyManager(repository.NewMemoryKeyRepo())
	generator := jwt.NewGenerator(keys, "https://mcp.example.com")
	cfg := config.Config{AccessTokenTTL: ttl}
	return service.NewAccessTokenService(repository.NewMemoryTokenRepo(), generator, cfg, zap.NewNop())
}

func testGrant() domain.AuthorizationCode {
	return domain.AuthorizationCode{
		ClientID: "qdo_client",
		UserID:   42,
		Scope:    "pms",
	}
}

func TestTokenIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc := testTokenService(time.Hour)

	issued, err := svc.Issue(ctx, testGrant())
	require.NoError(t, err)
	require.Equal(t, "Bearer", issued.TokenType)
	require.Equal(t, int64(3600), issued.ExpiresIn)
	require.NotEmpty(t, issued.AccessToken)

	identity, err := svc.Validate(ctx, issued.AccessToken)
	require.NoError(t, err)
	require.Equal(t, int64(42), identity.UserID)
	require.Equal(t, "qdo_client", identity.ClientID)
	require.Equal(t, "pms", identity.Scope)
	require.NotEmpty(t, identity.JTI)
}

func TestTokenValidateGarbage(t *testing.T) {
	ctx := context.Background()
	svc := testTokenService(time.Hour)

	_, err := svc.Validate(ctx, "not.a.jwt")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestTokenValidateExpired(t *testing.T) {
	ctx := context.Background()
	svc := testTokenService(-time.Minute)

	issued, err := svc.Issue(ctx, testGrant())
	require.NoError(t, err)

	_, err = svc.Validate(ctx, issued.AccessToken)
	require.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestTokenRevoke(t *testing.T) {
	ctx := context.Background()
	svc := testTokenService(time.Hour)

	issued, err := svc.Issue(ctx, testGrant())
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, issued.AccessToken))

	_, err = svc.Validate(ctx, issued.AccessToken)
	require.ErrorIs(t, err, domain.ErrRevokedToken)

	// Second revocation is a no-op success.
	require.NoError(t, svc.Revoke(ctx, issued.AccessToken))
}

func TestTokenRevokeUnknownIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc := testTokenService(time.Hour)

	require.NoError(t, svc.Revoke(ctx, "garbage-token"))
}

func TestTokenFromForeignKeyRejected(t *testing.T) {
	ctx := context.Background()
	svc := testTokenService(time.Hour)
	other := testTokenService(time.Hour)

	issued, err := other.Issue(ctx, testGrant())
	require.NoError(t, err)

	_, err = svc.Validate(ctx, issued.AccessToken)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
