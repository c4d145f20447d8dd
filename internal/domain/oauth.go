package domain

import "time"

// Token endpoint authentication methods accepted at registration.
const (
	AuthMethodNone        = "none"
	AuthMethodSecretPost  = "client_secret_post"
	AuthMethodSecretBasic = "client_secret_basic"
)

// PKCE code challenge methods.
const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

// OAuthClient is a dynamically registered OAuth client.
// Records are immutable once issued.
type OAuthClient struct {
	ID                      string
	Secret                  string
	Name                    string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scope                   string
	TokenEndpointAuthMethod string
	Public                  bool
	CreatedAt               time.Time
}

// HasRedirectURI reports whether uri is a registered redirect URI.
// Matching is exact string comparison, no normalization.
func (c OAuthClient) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode is a single-use, short-lived grant bound to a PKCE challenge.
// Used transitions false -> true at most once; used codes are retained for audit.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              int64
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Used                bool
	CreatedAt           time.Time
}

// AccessToken is the persisted side record of an issued bearer token,
// keyed by the token's JTI. The bearer credential itself is the signed JWT;
// this record exists for revocation checks.
type AccessToken struct {
	ID        string
	UserID    int64
	ClientID  string
	Scope     string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// SigningKey is an HMAC key used to sign access tokens.
type SigningKey struct {
	ID        int64
	KID       string
	Secret    []byte
	Algorithm string
	Active    bool
	CreatedAt time.Time
}
