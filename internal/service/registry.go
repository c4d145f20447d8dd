package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
)

const clientIDPrefix = "qdo_"

// RegistrationInput is the RFC 7591 client metadata accepted at registration.
type RegistrationInput struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// RegistrationOutput is returned to the registering client. Secret is set
// only for confidential clients and only at registration time.
type RegistrationOutput struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// ClientRegistry implements dynamic client registration and client lookup.
type ClientRegistry struct {
	repo   repository.ClientRepository
	cfg    config.Config
	logger *zap.Logger
}

func NewClientRegistry(repo repository.ClientRepository, cfg config.Config, logger *zap.Logger) *ClientRegistry {
	return &ClientRegistry{repo: repo, cfg: cfg, logger: logger}
}

// Register validates metadata, mints credentials and persists the client.
func (r *ClientRegistry) Register(ctx context.Context, in RegistrationInput) (*RegistrationOutput, error) {
	if len(in.RedirectURIs) == 0 {
		return nil, newOAuthError(http.StatusBadRequest, "invalid_client_metadata", "redirect_uris is required")
	}
	for _, raw := range in.RedirectURIs {
		if err := validateRedirectURI(raw); err != nil {
			return nil, newOAuthError(http.StatusBadRequest, "invalid_redirect_uri", err.Error())
		}
	}

	authMethod := strings.TrimSpace(in.TokenEndpointAuthMethod)
	if authMethod == "" {
		authMethod = domain.AuthMethodSecretPost
	}
	switch authMethod {
	case domain.AuthMethodNone, domain.AuthMethodSecretPost, domain.AuthMethodSecretBasic:
	default:
		return nil, newOAuthError(http.StatusBadRequest, "invalid_client_metadata", "unsupported token_endpoint_auth_method")
	}

	grantTypes := in.GrantTypes
	if len(grantTypes) == 0 {
		grantTypes = []string{"authorization_code"}
	}
	for _, gt := range grantTypes {
		if gt != "authorization_code" {
			return nil, newOAuthError(http.StatusBadRequest, "invalid_client_metadata", "unsupported grant_type "+gt)
		}
	}

	responseTypes := in.ResponseTypes
	if len(responseTypes) == 0 {
		responseTypes = []string{"code"}
	}
	for _, rt := range responseTypes {
		if rt != "code" {
			return nil, newOAuthError(http.StatusBadRequest, "invalid_client_metadata", "unsupported response_type "+rt)
		}
	}

	client := domain.OAuthClient{
		ID:                      clientIDPrefix + uuid.NewString(),
		Name:                    strings.TrimSpace(in.ClientName),
		RedirectURIs:            in.RedirectURIs,
		GrantTypes:              grantTypes,
		ResponseTypes:           responseTypes,
		Scope:                   strings.TrimSpace(in.Scope),
		TokenEndpointAuthMethod: authMethod,
		Public:                  authMethod == domain.AuthMethodNone,
	}

	var plainSecret string
	if !client.Public {
		secret, err := secureRandomString(r.cfg.ClientSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate client secret: %w", err)
		}
		plainSecret = secret
		client.Secret = secret
	}

	if err := r.repo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("persist client: %w", err)
	}

	r.log().Info("registered oauth client",
		zap.String("client_id", client.ID),
		zap.String("auth_method", client.TokenEndpointAuthMethod),
		zap.Int("redirect_uris", len(client.RedirectURIs)),
	)

	return &RegistrationOutput{
		ClientID:                client.ID,
		ClientSecret:            plainSecret,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		Scope:                   client.Scope,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
	}, nil
}

// Lookup loads a client by ID.
func (r *ClientRegistry) Lookup(ctx context.Context, clientID string) (domain.OAuthClient, error) {
	client, err := r.repo.GetByID(ctx, clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OAuthClient{}, domain.ErrUnknownClient
	}
	if err != nil {
		return domain.OAuthClient{}, fmt.Errorf("lookup client: %w", err)
	}
	return client, nil
}

// Authenticate verifies client credentials for the token endpoint. Public
// clients pass with an empty secret; confidential clients must present the
// secret issued at registration.
func (r *ClientRegistry) Authenticate(ctx context.Context, clientID, clientSecret string) (domain.OAuthClient, error) {
	client, err := r.Lookup(ctx, clientID)
	if err != nil {
		return domain.OAuthClient{}, err
	}
	if client.Public {
		return client, nil
	}
	if clientSecret == "" || !secureCompare(clientSecret, client.Secret) {
		return domain.OAuthClient{}, newOAuthError(http.StatusUnauthorized, "invalid_client", "client authentication failed")
	}
	return client, nil
}

func (r *ClientRegistry) log() *zap.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return zap.L()
}

func validateRedirectURI(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("redirect_uri is not a valid URI")
	}
	if u.Scheme == "" {
		return fmt.Errorf("redirect_uri must be absolute")
	}
	if u.Fragment != "" {
		return fmt.Errorf("redirect_uri must not contain a fragment")
	}
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("http redirect_uri is only allowed for loopback hosts")
		}
	}
	return nil
}

func secureRandomString(size int) (string, error) {
	if size <= 0 {
		size = 32
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
