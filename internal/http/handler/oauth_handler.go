package handler

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/service"
)

// OAuthHandler exposes the authorization server over HTTP.
type OAuthHandler struct {
	Registry  *service.ClientRegistry
	Codes     *service.AuthorizationCodeService
	Tokens    *service.AccessTokenService
	Users     *service.UserService
	Discovery *service.DiscoveryService
	Logger    *zap.Logger
}

// Register handles RFC 7591 dynamic client registration.
func (h *OAuthHandler) Register(c *gin.Context) {
	var in service.RegistrationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeOAuthError(c, &service.OAuthError{
			Code: "invalid_client_metadata", Description: "request body must be JSON client metadata", Status: http.StatusBadRequest,
		})
		return
	}

	out, err := h.Registry.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "client registration failed")
		return
	}
	c.JSON(http.StatusCreated, out)
}

// Authorize renders the login form for a GET authorization request after
// validating the client and redirect URI.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	q := c.Request.URL.Query()
	if q.Get("response_type") != "code" {
		writeOAuthError(c, &service.OAuthError{Code: "unsupported_response_type", Status: http.StatusBadRequest})
		return
	}

	client, err := h.Registry.Lookup(c.Request.Context(), q.Get("client_id"))
	if err != nil {
		writeOAuthError(c, &service.OAuthError{Code: "invalid_request", Description: "unknown client", Status: http.StatusBadRequest})
		return
	}
	redirectURI := q.Get("redirect_uri")
	if !client.HasRedirectURI(redirectURI) {
		// Never redirect to an unregistered URI.
		writeOAuthError(c, &service.OAuthError{Code: "invalid_request", Description: "redirect_uri is not registered", Status: http.StatusBadRequest})
		return
	}
	if q.Get("code_challenge") == "" {
		redirectError(c, redirectURI, q.Get("state"), "invalid_request", "code_challenge is required")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", loginPage(client.Name, c.Request.URL.RawQuery, ""))
}

// AuthorizeSubmit handles the login form POST: it authenticates the user,
// issues a code and redirects back to the client.
func (h *OAuthHandler) AuthorizeSubmit(c *gin.Context) {
	rawQuery := c.PostForm("request")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		writeOAuthError(c, &service.OAuthError{Code: "invalid_request", Status: http.StatusBadRequest})
		return
	}

	client, err := h.Registry.Lookup(c.Request.Context(), q.Get("client_id"))
	if err != nil {
		writeOAuthError(c, &service.OAuthError{Code: "invalid_request", Description: "unknown client", Status: http.StatusBadRequest})
		return
	}
	redirectURI := q.Get("redirect_uri")
	if !client.HasRedirectURI(redirectURI) {
		writeOAuthError(c, &service.OAuthError{Code: "invalid_request", Description: "redirect_uri is not registered", Status: http.StatusBadRequest})
		return
	}

	user, err := h.Users.Authenticate(c.Request.Context(), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.Data(http.StatusUnauthorized, "text/html; charset=utf-8", loginPage(client.Name, rawQuery, "Invalid email or password."))
			return
		}
		h.fail(c, err, "login failed")
		return
	}

	code, err := h.Codes.Issue(c.Request.Context(), service.IssueCodeInput{
		ClientID:            client.ID,
		UserID:              user.ID,
		RedirectURI:         redirectURI,
		Scope:               q.Get("scope"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	})
	if err != nil {
		var oe *service.OAuthError
		if errors.As(err, &oe) {
			redirectError(c, redirectURI, q.Get("state"), oe.Code, oe.Description)
			return
		}
		h.fail(c, err, "code issuance failed")
		return
	}

	target, _ := url.Parse(redirectURI)
	params := target.Query()
	params.Set("code", code)
	if state := q.Get("state"); state != "" {
		params.Set("state", state)
	}
	target.RawQuery = params.Encode()
	c.Redirect(http.StatusFound, target.String())
}

// Token handles the authorization_code grant.
func (h *OAuthHandler) Token(c *gin.Context) {
	if c.PostForm("grant_type") != "authorization_code" {
		writeOAuthError(c, &service.OAuthError{Code: "unsupported_grant_type", Status: http.StatusBadRequest})
		return
	}

	clientID, clientSecret := clientCredentials(c)
	client, err := h.Registry.Authenticate(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownClient) {
			writeOAuthError(c, &service.OAuthError{Code: "invalid_client", Status: http.StatusUnauthorized})
			return
		}
		h.fail(c, err, "client authentication failed")
		return
	}

	grant, err := h.Codes.Exchange(c.Request.Context(), service.ExchangeInput{
		Code:         c.PostForm("code"),
		ClientID:     client.ID,
		RedirectURI:  c.PostForm("redirect_uri"),
		CodeVerifier: c.PostForm("code_verifier"),
	})
	if err != nil {
		h.fail(c, err, "code exchange failed")
		return
	}

	token, err := h.Tokens.Issue(c.Request.Context(), grant)
	if err != nil {
		h.fail(c, err, "token issuance failed")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, token)
}

// Revoke handles RFC 7009 token revocation. The response is 200 regardless
// of whether the token was known.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	raw := c.PostForm("token")
	if raw == "" {
		writeOAuthError(c, &service.OAuthError{Code: "invalid_request", Description: "token is required", Status: http.StatusBadRequest})
		return
	}
	if err := h.Tokens.Revoke(c.Request.Context(), raw); err != nil {
		h.fail(c, err, "revocation failed")
		return
	}
	c.Status(http.StatusOK)
}

// AuthorizationServerMetadata serves the RFC 8414 document.
func (h *OAuthHandler) AuthorizationServerMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.Discovery.AuthorizationServer())
}

// ProtectedResourceMetadata serves the RFC 9728 document.
func (h *OAuthHandler) ProtectedResourceMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.Discovery.ProtectedResource())
}

// Healthz is the liveness probe.
func (h *OAuthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *OAuthHandler) fail(c *gin.Context, err error, msg string) {
	var oe *service.OAuthError
	if errors.As(err, &oe) {
		writeOAuthError(c, oe)
		return
	}
	h.log().Error(msg, zap.Error(err))
	writeOAuthError(c, &service.OAuthError{Code: "server_error", Status: http.StatusInternalServerError})
}

func (h *OAuthHandler) log() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.L()
}

func writeOAuthError(c *gin.Context, oe *service.OAuthError) {
	status := oe.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	c.AbortWithStatusJSON(status, oe)
}

// clientCredentials reads client authentication from HTTP Basic or the
// request body.
func clientCredentials(c *gin.Context) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}
	return c.PostForm("client_id"), c.PostForm("client_secret")
}

func redirectError(c *gin.Context, redirectURI, state, code, description string) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(c, &service.OAuthError{Code: code, Description: description, Status: http.StatusBadRequest})
		return
	}
	params := target.Query()
	params.Set("error", code)
	if description != "" {
		params.Set("error_description", description)
	}
	if state != "" {
		params.Set("state", state)
	}
	target.RawQuery = params.Encode()
	c.Redirect(http.StatusFound, target.String())
}

func loginPage(clientName, rawQuery, message string) []byte {
	if clientName == "" {
		clientName = "an application"
	}
	var banner string
	if message != "" {
		banner = fmt.Sprintf(`<p class="error">%s</p>`, html.EscapeString(message))
	}
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Sign in</title>
<style>
body{font-family:sans-serif;max-width:24rem;margin:4rem auto;padding:0 1rem}
input{display:block;width:100%%;margin:.5rem 0;padding:.5rem}
button{padding:.5rem 1.5rem}
.error{color:#b00}
</style>
</head>
<body>
<h2>Sign in to continue to %s</h2>
%s
<form method="post" action="/oauth/authorize">
<input type="hidden" name="request" value="%s">
<input type="email" name="email" placeholder="Email" required>
<input type="password" name="password" placeholder="Password" required>
<button type="submit">Sign in</button>
</form>
</body>
</html>`, html.EscapeString(clientName), banner, html.EscapeString(rawQuery))
	return []byte(page)
}
