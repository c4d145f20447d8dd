package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/jwt"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
)

// IssuedToken is the token endpoint response body.
type IssuedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// TokenIdentity is the verified principal behind a bearer token.
type TokenIdentity struct {
	UserID   int64
	ClientID string
	Scope    string
	JTI      string
}

// AccessTokenService issues, validates and revokes bearer tokens. The bearer
// credential is a signed JWT; a side record keyed by JTI backs revocation.
type AccessTokenService struct {
	tokens repository.TokenRepository
	jwt    *jwt.Generator
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewAccessTokenService(tokens repository.TokenRepository, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *AccessTokenService {
	return &AccessTokenService{tokens: tokens, jwt: generator, cfg: cfg, logger: logger, now: time.Now}
}

// Issue mints a signed token for the code grant's user and client.
func (s *AccessTokenService) Issue(ctx context.Context, grant domain.AuthorizationCode) (*IssuedToken, error) {
	now := s.now()
	record := domain.AccessToken{
		ID:        uuid.NewString(),
		UserID:    grant.UserID,
		ClientID:  grant.ClientID,
		Scope:     grant.Scope,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL),
		CreatedAt: now,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("persist token record: %w", err)
	}

	signed, err := s.jwt.Sign(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.log().Info("issued access token",
		zap.String("jti", record.ID),
		zap.String("client_id", record.ClientID),
		zap.Int64("user_id", record.UserID),
	)
	return &IssuedToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
		Scope:       record.Scope,
	}, nil
}

// Validate verifies the signature and claims of a raw bearer token and checks
// its revocation record.
func (s *AccessTokenService) Validate(ctx context.Context, raw string) (TokenIdentity, error) {
	claims, err := s.jwt.Verify(ctx, raw)
	if err != nil {
		return TokenIdentity{}, err
	}

	record, err := s.tokens.GetByID(ctx, claims.JTI)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenIdentity{}, domain.ErrInvalidToken
	}
	if err != nil {
		return TokenIdentity{}, fmt.Errorf("load token record: %w", err)
	}
	if record.Revoked {
		return TokenIdentity{}, domain.ErrRevokedToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return TokenIdentity{}, domain.ErrInvalidToken
	}

	return TokenIdentity{
		UserID:   userID,
		ClientID: claims.ClientID,
		Scope:    claims.Scope,
		JTI:      claims.JTI,
	}, nil
}

// Revoke marks the token's side record revoked. Per RFC 7009 revocation is
// idempotent: unknown, malformed and already revoked tokens all succeed.
func (s *AccessTokenService) Revoke(ctx context.Context, raw string) error {
	claims, err := s.jwt.Verify(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrExpiredToken) {
			return nil
		}
		return err
	}

	if err := s.tokens.Revoke(ctx, claims.JTI); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.log().Info("revoked access token", zap.String("jti", claims.JTI))
	return nil
}

func (s *AccessTokenService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
