package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
)

const authCodeBytes = 48

// IssueCodeInput captures a granted authorization request.
type IssueCodeInput struct {
	ClientID            string
	UserID              int64
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ExchangeInput captures an authorization_code token request.
type ExchangeInput struct {
	Code         string
	ClientID     string
	RedirectURI  string
	CodeVerifier string
}

// AuthorizationCodeService issues single-use authorization codes and
// validates their exchange.
type AuthorizationCodeService struct {
	codes   repository.CodeRepository
	clients repository.ClientRepository
	cfg     config.Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewAuthorizationCodeService(codes repository.CodeRepository, clients repository.ClientRepository, cfg config.Config, logger *zap.Logger) *AuthorizationCodeService {
	return &AuthorizationCodeService{codes: codes, clients: clients, cfg: cfg, logger: logger, now: time.Now}
}

// Issue mints a fresh code bound to the client, user, redirect URI and PKCE
// challenge of the authorization request. The client must exist and the
// redirect URI must be one it registered; an omitted challenge method
// defaults to S256.
func (s *AuthorizationCodeService) Issue(ctx context.Context, in IssueCodeInput) (string, error) {
	client, err := s.clients.GetByID(ctx, in.ClientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", newOAuthError(http.StatusBadRequest, "invalid_request", "unknown client")
	}
	if err != nil {
		return "", fmt.Errorf("load client: %w", err)
	}
	if !client.HasRedirectURI(in.RedirectURI) {
		return "", newOAuthError(http.StatusBadRequest, "invalid_request", "redirect_uri is not registered")
	}

	if in.CodeChallenge == "" {
		return "", newOAuthError(http.StatusBadRequest, "invalid_request", "code_challenge is required")
	}
	method := in.CodeChallengeMethod
	if method == "" {
		method = domain.ChallengeMethodS256
	}
	switch method {
	case domain.ChallengeMethodS256, domain.ChallengeMethodPlain:
	default:
		return "", newOAuthError(http.StatusBadRequest, "invalid_request", "unsupported code_challenge_method")
	}

	code, err := secureRandomString(authCodeBytes)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	record := domain.AuthorizationCode{
		Code:                code,
		ClientID:            in.ClientID,
		UserID:              in.UserID,
		RedirectURI:         in.RedirectURI,
		Scope:               in.Scope,
		CodeChallenge:       in.CodeChallenge,
		CodeChallengeMethod: method,
		ExpiresAt:           s.now().Add(s.cfg.AuthCodeTTL),
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return "", fmt.Errorf("persist code: %w", err)
	}

	s.log().Info("issued authorization code",
		zap.String("client_id", in.ClientID),
		zap.Int64("user_id", in.UserID),
	)
	return code, nil
}

// Exchange validates the code against the presented client, redirect URI and
// PKCE verifier, then consumes it. Validation failures do not consume the
// code; a valid exchange consumes it so that exactly one of any number of
// concurrent exchanges for the same code succeeds.
//
// Every rejection surfaces as the same invalid_grant wire error. The log
// keeps the real reason.
func (s *AuthorizationCodeService) Exchange(ctx context.Context, in ExchangeInput) (domain.AuthorizationCode, error) {
	record, err := s.codes.Get(ctx, in.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuthorizationCode{}, s.reject("unknown code", in.ClientID)
	}
	if err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("load code: %w", err)
	}

	if record.Used {
		return domain.AuthorizationCode{}, s.reject("code already used", in.ClientID)
	}
	if s.now().After(record.ExpiresAt) {
		return domain.AuthorizationCode{}, s.reject("code expired", in.ClientID)
	}
	if record.ClientID != in.ClientID {
		return domain.AuthorizationCode{}, s.reject("client mismatch", in.ClientID)
	}
	if record.RedirectURI != in.RedirectURI {
		return domain.AuthorizationCode{}, s.reject("redirect_uri mismatch", in.ClientID)
	}
	if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, in.CodeVerifier) {
		return domain.AuthorizationCode{}, s.reject("pkce verification failed", in.ClientID)
	}

	consumed, err := s.codes.Consume(ctx, in.Code)
	if err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		// Lost the race to a concurrent exchange.
		return domain.AuthorizationCode{}, s.reject("code already used", in.ClientID)
	}

	s.log().Info("exchanged authorization code",
		zap.String("client_id", record.ClientID),
		zap.Int64("user_id", record.UserID),
	)
	return record, nil
}

func (s *AuthorizationCodeService) reject(reason, clientID string) error {
	s.log().Warn("rejected code exchange",
		zap.String("reason", reason),
		zap.String("client_id", clientID),
	)
	return newOAuthError(http.StatusBadRequest, "invalid_grant", "invalid authorization code")
}

func (s *AuthorizationCodeService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case domain.ChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return secureCompare(computed, challenge)
	case domain.ChallengeMethodPlain:
		return secureCompare(verifier, challenge)
	default:
		return false
	}
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
