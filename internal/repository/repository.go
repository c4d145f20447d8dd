package repository

import (
	"context"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
)

// Repositories abstract the relational store. Implementations must be safe
// for concurrent use; a miss is reported as pgx.ErrNoRows regardless of
// backing store so services can branch with errors.Is.

// UserRepository stores end users and their upstream API credentials.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdateAPIKeys(ctx context.Context, userID int64, quendooKey, emailKey string) error
}

// ClientRepository stores dynamically registered OAuth clients.
type ClientRepository interface {
	Create(ctx context.Context, client domain.OAuthClient) error
	GetByID(ctx context.Context, clientID string) (domain.OAuthClient, error)
}

// CodeRepository stores authorization codes.
type CodeRepository interface {
	Create(ctx context.Context, code domain.AuthorizationCode) error
	Get(ctx context.Context, code string) (domain.AuthorizationCode, error)
	// Consume atomically flips Used from false to true and reports whether
	// this call performed the transition. Exactly one of any number of
	// concurrent calls for the same code observes true.
	Consume(ctx context.Context, code string) (bool, error)
}

// TokenRepository stores access token side records keyed by JTI.
type TokenRepository interface {
	Create(ctx context.Context, token domain.AccessToken) error
	GetByID(ctx context.Context, tokenID string) (domain.AccessToken, error)
	// Revoke marks the record revoked. Revoking an already revoked or
	// unknown token is a no-op.
	Revoke(ctx context.Context, tokenID string) error
}

// KeyRepository stores token signing keys.
type KeyRepository interface {
	GetActiveKey(ctx context.Context) (domain.SigningKey, error)
	CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}
