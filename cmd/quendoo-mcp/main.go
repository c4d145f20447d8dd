package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/config"
	"github.com/gorianvarbanov/quendoo-mcp/internal/credentials"
	httptransport "github.com/gorianvarbanov/quendoo-mcp/internal/http"
	"github.com/gorianvarbanov/quendoo-mcp/internal/http/handler"
	httpmiddleware "github.com/gorianvarbanov/quendoo-mcp/internal/http/middleware"
	"github.com/gorianvarbanov/quendoo-mcp/internal/jwt"
	"github.com/gorianvarbanov/quendoo-mcp/internal/mcptools"
	apimiddleware "github.com/gorianvarbanov/quendoo-mcp/internal/middleware"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
	"github.com/gorianvarbanov/quendoo-mcp/internal/server"
	"github.com/gorianvarbanov/quendoo-mcp/internal/service"
	"github.com/gorianvarbanov/quendoo-mcp/internal/telemetry"
	"github.com/gorianvarbanov/quendoo-mcp/internal/upstream"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newStores,
			newRateLimiter,
			newKeyManager,
			newTokenGenerator,
			newClientRegistry,
			newCodeService,
			newTokenService,
			newUserService,
			newDiscoveryService,
			newCredentialCache,
			newCredentialResolver,
			newQuendooClient,
			newEmailClient,
			newVoiceClient,
			newMCPServer,
			newOAuthHandler,
			newAuthMiddleware,
			newRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, seedGlobalCredential, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

// newStores connects Postgres when DATABASE_URL is set and otherwise falls
// back to in-memory stores, which lose all state on restart.
func newStores(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (
	repository.UserRepository,
	repository.ClientRepository,
	repository.CodeRepository,
	repository.TokenRepository,
	repository.KeyRepository,
	error,
) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		return repository.NewMemoryUserRepo(),
			repository.NewMemoryClientRepo(),
			repository.NewMemoryCodeRepo(),
			repository.NewMemoryTokenRepo(),
			repository.NewMemoryKeyRepo(),
			nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, nil, nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return repository.NewPostgresUserRepo(pool),
		repository.NewPostgresClientRepo(pool),
		repository.NewPostgresCodeRepo(pool),
		repository.NewPostgresTokenRepo(pool),
		repository.NewPostgresKeyRepo(pool),
		nil
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newKeyManager(repo repository.KeyRepository) *jwt.KeyManager {
	return jwt.NewKeyManager(repo)
}

func newTokenGenerator(manager *jwt.KeyManager, cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator(manager, cfg.BaseURL)
}

func newClientRegistry(repo repository.ClientRepository, cfg config.Config, logger *zap.Logger) *service.ClientRegistry {
	return service.NewClientRegistry(repo, cfg, logger)
}

func newCodeService(codes repository.CodeRepository, clients repository.ClientRepository, cfg config.Config, logger *zap.Logger) *service.AuthorizationCodeService {
	return service.NewAuthorizationCodeService(codes, clients, cfg, logger)
}

func newTokenService(repo repository.TokenRepository, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *service.AccessTokenService {
	return service.NewAccessTokenService(repo, generator, cfg, logger)
}

func newUserService(repo repository.UserRepository, logger *zap.Logger) *service.UserService {
	return service.NewUserService(repo, logger)
}

func newDiscoveryService(cfg config.Config) *service.DiscoveryService {
	return service.NewDiscoveryService(cfg)
}

func newCredentialCache(cfg config.Config) *credentials.Cache {
	return credentials.NewCache(cfg.CredentialTTL)
}

func newCredentialResolver(cache *credentials.Cache, users repository.UserRepository, logger *zap.Logger) *credentials.Resolver {
	return credentials.NewResolver(cache, users, logger)
}

func newQuendooClient(cfg config.Config) *upstream.QuendooClient {
	return upstream.NewQuendooClient(cfg.QuendooAPIBaseURL)
}

func newEmailClient(cfg config.Config) *upstream.EmailClient {
	return upstream.NewEmailClient(cfg.EmailAPIBaseURL)
}

func newVoiceClient(cfg config.Config) *upstream.VoiceClient {
	return upstream.NewVoiceClient(cfg.VoiceAPIBaseURL, cfg.VoiceAPIBearer)
}

func newMCPServer(
	resolver *credentials.Resolver,
	quendoo *upstream.QuendooClient,
	email *upstream.EmailClient,
	voice *upstream.VoiceClient,
	logger *zap.Logger,
) *mcptools.Server {
	return mcptools.NewServer(resolver, quendoo, email, voice, logger)
}

func newOAuthHandler(
	registry *service.ClientRegistry,
	codes *service.AuthorizationCodeService,
	tokens *service.AccessTokenService,
	users *service.UserService,
	discovery *service.DiscoveryService,
	logger *zap.Logger,
) *handler.OAuthHandler {
	return &handler.OAuthHandler{
		Registry:  registry,
		Codes:     codes,
		Tokens:    tokens,
		Users:     users,
		Discovery: discovery,
		Logger:    logger,
	}
}

func newAuthMiddleware(tokens *service.AccessTokenService) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Tokens: tokens}
}

func newRouter(
	cfg config.Config,
	oauthHandler *handler.OAuthHandler,
	authMiddleware *httpmiddleware.Auth,
	rateLimiter *apimiddleware.RateLimiter,
	mcpServer *mcptools.Server,
) *gin.Engine {
	return httptransport.NewRouter(cfg, oauthHandler, authMiddleware, rateLimiter, mcpServer.Handler())
}

// seedGlobalCredential places the shared fallback API key in the cache when
// one is configured.
func seedGlobalCredential(cache *credentials.Cache, cfg config.Config, logger *zap.Logger) {
	if cfg.QuendooAPIKey == "" {
		return
	}
	cache.Set(credentials.GlobalKey, cfg.QuendooAPIKey)
	logger.Info("seeded global api key from environment")
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
