package handler_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	httptransport "github.com/gorianvarbanov/quendoo-mcp/internal/http"
	"github.com/gorianvarbanov/quendoo-mcp/internal/http/handler"
	httpmiddleware "github.com/gorianvarbanov/quendoo-mcp/internal/http/middleware"
	"github.com/gorianvarbanov/quendoo-mcp/internal/jwt"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
	"github.com/gorianvarbanov/quendoo-mcp/internal/service"
)

type testEnv struct {
	router *gin.Engine
	tokens *service.AccessTokenService
	users  *service.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		BaseURL:           "http://localhost:8080",
		ServiceName:       "quendoo-mcp",
		AccessTokenTTL:    time.Hour,
		AuthCodeTTL:       10 * time.Minute,
		ClientSecretBytes: 48,
		CORSAllowedOrigins: []string{"*"},
	}
	logger := zap.NewNop()

	keys := jwt.NewKeyManager(repository.NewMemoryKeyRepo())
	generator := jwt.NewGenerator(keys, cfg.BaseURL)

	clientRepo := repository.NewMemoryClientRepo()
	registry := service.NewClientRegistry(clientRepo, cfg, logger)
	codes := service.NewAuthorizationCodeService(repository.NewMemoryCodeRepo(), clientRepo, cfg, logger)
	tokens := service.NewAccessTokenService(repository.NewMemoryTokenRepo(), generator, cfg, logger)
	users := service.NewUserService(repository.NewMemoryUserRepo(), logger)

	oauthHandler := &handler.OAuthHandler{
		Registry:  registry,
		Codes:     codes,
		Tokens:    tokens,
		Users:     users,
		Discovery: service.NewDiscoveryService(cfg),
		Logger:    logger,
	}
	authMiddleware := &httpmiddleware.Auth{Tokens: tokens}
	router := httptransport.NewRouter(cfg, oauthHandler, authMiddleware, nil, http.NotFoundHandler())

	return &testEnv{router: router, tokens: tokens, users: users}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerClient(t *testing.T, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := e.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAuthorizationCodeFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	// Dynamic client registration.
	client := env.registerClient(t, `{
		"client_name": "Test Agent",
		"redirect_uris": ["https://app.example.com/callback"]
	}`)
	clientID := client["client_id"].(string)
	clientSecret := client["client_secret"].(string)
	require.NotEmpty(t, clientSecret)

	// A user with credentials.
	user, err := env.users.Create(context.Background(), "host@example.com", "hunter2boogaloo", "Host")
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	// Authorization request renders the login form.
	verifier := "end-to-end-verifier-0123456789abcdefghij"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	authQuery := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {"https://app.example.com/callback"},
		"state":                 {"xyzzy"},
		"scope":                 {"pms"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	w := env.do(httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+authQuery.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	require.Contains(t, string(body), "Test Agent")
	require.Contains(t, string(body), `name="request"`)

	// Login submission redirects back with a code.
	form := url.Values{
		"request":  {authQuery.Encode()},
		"email":    {"host@example.com"},
		"password": {"hunter2boogaloo"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	redirect, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "app.example.com", redirect.Host)
	require.Equal(t, "xyzzy", redirect.Query().Get("state"))
	code := redirect.Query().Get("code")
	require.NotEmpty(t, code)

	// Token exchange.
	tokenForm := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/callback"},
		"code_verifier": {verifier},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(tokenForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tokenResp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokenResp))
	accessToken := tokenResp["access_token"].(string)
	require.NotEmpty(t, accessToken)
	require.Equal(t, "Bearer", tokenResp["token_type"])

	identity, err := env.tokens.Validate(context.Background(), accessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, identity.UserID)

	// Replaying the code fails with invalid_grant.
	req = httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(tokenForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_grant")

	// Revocation.
	revokeForm := url.Values{"token": {accessToken}}
	req = httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(revokeForm.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	_, err = env.tokens.Validate(context.Background(), accessToken)
	require.Error(t, err)
}

func TestAuthorizeRejectsUnregisteredRedirect(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t, `{"redirect_uris": ["https://app.example.com/callback"]}`)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {client["client_id"].(string)},
		"redirect_uri":  {"https://evil.example.com/callback"},
		"code_challenge": {"abc"},
		"code_challenge_method": {"S256"},
	}
	w := env.do(httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	// No redirect to the unregistered URI.
	require.Empty(t, w.Header().Get("Location"))
}

func TestAuthorizeWrongPasswordShowsFormAgain(t *testing.T) {
	env := newTestEnv(t)
	client := env.registerClient(t, `{"redirect_uris": ["https://app.example.com/callback"]}`)
	_, err := env.users.Create(context.Background(), "host@example.com", "correct-password", "Host")
	require.NoError(t, err)

	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {client["client_id"].(string)},
		"redirect_uri":          {"https://app.example.com/callback"},
		"code_challenge":        {"abc"},
		"code_challenge_method": {"S256"},
	}
	form := url.Values{
		"request":  {q.Encode()},
		"email":    {"host@example.com"},
		"password": {"wrong-password"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid email or password")
}

func TestTokenRejectsUnsupportedGrant(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"grant_type": {"client_credentials"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unsupported_grant_type")
}

func TestDiscoveryDocuments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	require.Equal(t, "http://localhost:8080", meta["issuer"])
	require.Equal(t, "http://localhost:8080/oauth/token", meta["token_endpoint"])
	require.Equal(t, "http://localhost:8080/oauth/register", meta["registration_endpoint"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	require.Equal(t, "http://localhost:8080", meta["resource"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterPublicClientOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	out := env.registerClient(t, `{
		"redirect_uris": ["http://localhost:9999/cb"],
		"token_endpoint_auth_method": "none"
	}`)
	require.NotEmpty(t, out["client_id"])
	_, hasSecret := out["client_secret"]
	require.False(t, hasSecret)
}
