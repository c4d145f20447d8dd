package credentials

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
)

// UserKeyPrefix namespaces per-user cache keys so they cannot collide with
// plain tenant identifiers or the global key.
const UserKeyPrefix = "user:"

// KeyForUser builds the cache key for a user's credential.
func KeyForUser(userID int64) string {
	return UserKeyPrefix + strconv.FormatInt(userID, 10)
}

// Resolver decides which Quendoo API key serves a request. An authenticated
// user's stored key is definitive; anonymous callers fall back to the tenant
// cache and finally the shared global credential.
type Resolver struct {
	cache  *Cache
	users  repository.UserRepository
	logger *zap.Logger
}

func NewResolver(cache *Cache, users repository.UserRepository, logger *zap.Logger) *Resolver {
	return &Resolver{cache: cache, users: users, logger: logger}
}

// ResolveForUser returns the credential for an authenticated user. The cache
// is consulted first; on a miss the user's stored key is loaded and cached.
// A user without a stored key does not fall back to the global credential.
func (r *Resolver) ResolveForUser(ctx context.Context, userID int64) (string, error) {
	key := KeyForUser(userID)
	if v, ok := r.cache.Get(key); ok {
		return v, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load user credential: %w", err)
	}
	if strings.TrimSpace(user.QuendooAPIKey) == "" {
		return "", domain.ErrNoCredential
	}

	r.cache.Set(key, user.QuendooAPIKey)
	return user.QuendooAPIKey, nil
}

// ResolveForTenant returns the credential for an anonymous tenant key,
// falling back to the global credential when the tenant has none.
func (r *Resolver) ResolveForTenant(tenantKey string) (string, error) {
	tenantKey = strings.TrimSpace(tenantKey)
	if tenantKey != "" && tenantKey != GlobalKey {
		if v, ok := r.cache.Get(tenantKey); ok {
			return v, nil
		}
	}
	if v, ok := r.cache.Get(GlobalKey); ok {
		return v, nil
	}
	return "", domain.ErrNoCredential
}

// ResolveEmailForUser returns the user's stored email service key. Email
// credentials have no cache or global fallback.
func (r *Resolver) ResolveEmailForUser(ctx context.Context, userID int64) (string, error) {
	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load user credential: %w", err)
	}
	if strings.TrimSpace(user.EmailAPIKey) == "" {
		return "", domain.ErrNoCredential
	}
	return user.EmailAPIKey, nil
}

// Store caches a credential under the given key and, for user keys, persists
// it so it survives cache expiry.
func (r *Resolver) Store(ctx context.Context, key, value string) error {
	r.cache.Set(key, value)

	if userID, ok := parseUserKey(key); ok {
		user, err := r.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrUserNotFound
			}
			return fmt.Errorf("load user: %w", err)
		}
		if err := r.users.UpdateAPIKeys(ctx, userID, value, user.EmailAPIKey); err != nil {
			return fmt.Errorf("persist user credential: %w", err)
		}
	}

	r.log().Info("stored credential", zap.String("key", key))
	return nil
}

// Drop removes a credential from the cache and, for user keys, clears the
// persisted copy.
func (r *Resolver) Drop(ctx context.Context, key string) error {
	r.cache.Clear(key)

	if userID, ok := parseUserKey(key); ok {
		user, err := r.users.GetByID(ctx, userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if err := r.users.UpdateAPIKeys(ctx, userID, "", user.EmailAPIKey); err != nil {
			return fmt.Errorf("clear user credential: %w", err)
		}
	}

	r.log().Info("cleared credential", zap.String("key", key))
	return nil
}

// Status reports what the given key currently resolves to.
func (r *Resolver) Status(key string) Status {
	return r.cache.StatusFor(key)
}

func (r *Resolver) log() *zap.Logger {
	if r != nil && r.logger != nil {
		return r.logger
	}
	return zap.L()
}

func parseUserKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, UserKeyPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, UserKeyPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
