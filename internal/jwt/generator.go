package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
)

// Claims are the verified contents of an access token.
type Claims struct {
	Subject  string
	JTI      string
	ClientID string
	Scope    string
	Expiry   time.Time
}

type customClaims struct {
	ClientID string `json:"client_id,omitempty"`
	Scope    string `json:"scope,omitempty"`
}

// Generator signs and verifies HS256 access tokens.
type Generator struct {
	keys     *KeyManager
	issuer   string
	audience string
}

func NewGenerator(keys *KeyManager, issuer string) *Generator {
	return &Generator{keys: keys, issuer: issuer, audience: issuer}
}

// Sign produces a signed JWT for the given token record.
func (g *Generator) Sign(ctx context.Context, token domain.AccessToken) (string, error) {
	key, err := g.keys.ActiveKey(ctx)
	if err != nil {
		return "", err
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key.Secret}, nil)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}

	std := jwt.Claims{
		Subject:  fmt.Sprintf("%d", token.UserID),
		Issuer:   g.issuer,
		Audience: jwt.Audience{g.audience},
		ID:       token.ID,
		IssuedAt: jwt.NewNumericDate(token.CreatedAt),
		Expiry:   jwt.NewNumericDate(token.ExpiresAt),
	}
	custom := customClaims{ClientID: token.ClientID, Scope: token.Scope}

	raw, err := jwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}

// Verify checks the signature and standard claims of a raw token and returns
// its claims. Expired tokens return domain.ErrExpiredToken; any other defect
// returns domain.ErrInvalidToken.
func (g *Generator) Verify(ctx context.Context, raw string) (Claims, error) {
	key, err := g.keys.ActiveKey(ctx)
	if err != nil {
		return Claims{}, err
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	var std jwt.Claims
	var custom customClaims
	if err := tok.Claims(key.Secret, &std, &custom); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	err = std.Validate(jwt.Expected{Issuer: g.issuer, Time: time.Now()})
	if errors.Is(err, jwt.ErrExpired) {
		return Claims{}, domain.ErrExpiredToken
	}
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	return Claims{
		Subject:  std.Subject,
		JTI:      std.ID,
		ClientID: custom.ClientID,
		Scope:    custom.Scope,
		Expiry:   std.Expiry.Time(),
	}, nil
}
