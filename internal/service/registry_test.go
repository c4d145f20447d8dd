package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
	"github.com/gorianvarbanov/quendoo-mcp/internal/service"
)

func testRegistry() *service.ClientRegistry {
	cfg := config.Config{ClientSecretBytes: 48}
	return service.NewClientRegistry(repository.NewMemoryClientRepo(), cfg, zap.NewNop())
}

func TestRegisterConfidentialClient(t *testing.T) {
	ctx := context.Background()
	registry := testRegistry()

	out, err := registry.Register(ctx, service.RegistrationInput{
		ClientName:   "Test App",
		RedirectURIs: []string{"https://app.example.com/callback"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.ClientID, "qdo_"))
	require.NotEmpty(t, out.ClientSecret)
	require.Equal(t, domain.AuthMethodSecretPost, out.TokenEndpointAuthMethod)
	require.Equal(t, []string{"authorization_code"}, out.GrantTypes)
	require.Equal(t, []string{"code"}, out.ResponseTypes)

	client, err := registry.Lookup(ctx, out.ClientID)
	require.NoError(t, err)
	require.False(t, client.Public)
	require.True(t, client.HasRedirectURI("https://app.example.com/callback"))
	require.False(t, client.HasRedirectURI("https://app.example.com/other"))
}

func TestRegisterPublicClient(t *testing.T) {
	ctx := context.Background()
	registry := testRegistry()

	out, err := registry.Register(ctx, service.RegistrationInput{
		ClientName:              "CLI",
		RedirectURIs:            []string{"http://localhost:8765/callback"},
		TokenEndpointAuthMethod: domain.AuthMethodNone,
	})
	require.NoError(t, err)
	require.Empty(t, out.ClientSecret)

	client, err := registry.Lookup(ctx, out.ClientID)
	require.NoError(t, err)
	require.True(t, client.Public)

	// Public clients authenticate with no secret.
	_, err = registry.Authenticate(ctx, out.ClientID, "")
	require.NoError(t, err)
}

func TestRegisterRejectsBadMetadata(t *testing.T) {
	ctx := context.Background()
	registry := testRegistry()

	_, err := registry.Register(ctx, service.RegistrationInput{ClientName: "No URIs"})
	requireOAuthError(t, err, "invalid_client_metadata")

	_, err = registry.Register(ctx, service.RegistrationInput{
		RedirectURIs: []string{"http://public.example.com/callback"},
	})
	requireOAuthError(t, err, "invalid_redirect_uri")

	_, err = registry.Register(ctx, service.RegistrationInput{
		RedirectURIs: []string{"https://app.example.com/callback#frag"},
	})
	requireOAuthError(t, err, "invalid_redirect_uri")

	_, err = registry.Register(ctx, service.RegistrationInput{
		RedirectURIs: []string{"https://app.example.com/callback"},
		GrantTypes:   []string{"client_credentials"},
	})
	requireOAuthError(t, err, "invalid_client_metadata")
}

func TestAuthenticateConfidentialClient(t *testing.T) {
	ctx := context.Background()
	registry := testRegistry()

	out, err := registry.Register(ctx, service.RegistrationInput{
		RedirectURIs: []string{"https://app.example.com/callback"},
	})
	require.NoError(t, err)

	_, err = registry.Authenticate(ctx, out.ClientID, out.ClientSecret)
	require.NoError(t, err)

	_, err = registry.Authenticate(ctx, out.ClientID, "wrong-secret")
	requireOAuthError(t, err, "invalid_client")

	_, err = registry.Authenticate(ctx, "qdo_unknown", "whatever")
	require.ErrorIs(t, err, domain.ErrUnknownClient)
}
