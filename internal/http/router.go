package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/http/handler"
	httpmiddleware "github.com/gorianvarbanov/quendoo-mcp/internal/http/middleware"
	"github.com/gorianvarbanov/quendoo-mcp/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	oauthHandler *handler.OAuthHandler,
	authMiddleware *httpmiddleware.Auth,
	rateLimiter *middleware.RateLimiter,
	mcpHandler nethttp.Handler,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/.well-known/oauth-authorization-server", oauthHandler.AuthorizationServerMetadata)
	r.GET("/.well-known/oauth-protected-resource", oauthHandler.ProtectedResourceMetadata)
	r.GET("/healthz", oauthHandler.Healthz)

	oauth := r.Group("/oauth")
	{
		oauth.POST("/register", oauthHandler.Register)
		oauth.GET("/authorize", oauthHandler.Authorize)
		oauth.POST("/authorize", oauthHandler.AuthorizeSubmit)
		oauth.POST("/token", oauthHandler.Token)
		oauth.POST("/revoke", oauthHandler.Revoke)
	}

	// The MCP transport does its own protocol handling; it only needs the
	// caller identity resolved into the request context first.
	mcp := r.Group("/mcp", authMiddleware.ResolveIdentity)
	{
		mcp.Any("", gin.WrapH(mcpHandler))
		mcp.Any("/*path", gin.WrapH(mcpHandler))
	}

	return r
}
