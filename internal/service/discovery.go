package service

import (
	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
)

// AuthorizationServerMetadata is the RFC 8414 discovery document.
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 discovery document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// DiscoveryService renders the well-known metadata documents.
type DiscoveryService struct {
	cfg config.Config
}

func NewDiscoveryService(cfg config.Config) *DiscoveryService {
	return &DiscoveryService{cfg: cfg}
}

// AuthorizationServer returns the authorization server metadata document.
func (s *DiscoveryService) AuthorizationServer() AuthorizationServerMetadata {
	base := s.cfg.BaseURL
	return AuthorizationServerMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/oauth/authorize",
		TokenEndpoint:                     base + "/oauth/token",
		RegistrationEndpoint:              base + "/oauth/register",
		RevocationEndpoint:                base + "/oauth/revoke",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		CodeChallengeMethodsSupported:     []string{domain.ChallengeMethodS256, domain.ChallengeMethodPlain},
		TokenEndpointAuthMethodsSupported: []string{domain.AuthMethodNone, domain.AuthMethodSecretPost, domain.AuthMethodSecretBasic},
	}
}

// ProtectedResource returns the protected resource metadata document.
func (s *DiscoveryService) ProtectedResource() ProtectedResourceMetadata {
	base := s.cfg.BaseURL
	return ProtectedResourceMetadata{
		Resource:               base,
		AuthorizationServers:   []string{base},
		BearerMethodsSupported: []string{"header"},
	}
}
