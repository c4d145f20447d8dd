package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository   = (*PostgresUserRepo)(nil)
	_ ClientRepository = (*PostgresClientRepo)(nil)
	_ CodeRepository   = (*PostgresCodeRepo)(nil)
	_ TokenRepository  = (*PostgresTokenRepo)(nil)
	_ KeyRepository    = (*PostgresKeyRepo)(nil)
)

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserByEmailSQL = `SELECT id, email, password_hash, name, quendoo_api_key, email_api_key, created_at, updated_at
FROM users WHERE email = $1`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRow(ctx, selectUserByEmailSQL, email)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.QuendooAPIKey, &u.EmailAPIKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

const selectUserByIDSQL = `SELECT id, email, password_hash, name, quendoo_api_key, email_api_key, created_at, updated_at
FROM users WHERE id = $1`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	var u domain.User
	row := r.db.QueryRow(ctx, selectUserByIDSQL, userID)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.QuendooAPIKey, &u.EmailAPIKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

const insertUserSQL = `INSERT INTO users (email, password_hash, name, quendoo_api_key, email_api_key)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, email, password_hash, name, quendoo_api_key, email_api_key, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	var created domain.User
	row := r.db.QueryRow(ctx, insertUserSQL, user.Email, user.PasswordHash, user.Name, user.QuendooAPIKey, user.EmailAPIKey)
	if err := row.Scan(&created.ID, &created.Email, &created.PasswordHash, &created.Name, &created.QuendooAPIKey, &created.EmailAPIKey, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

const updateUserKeysSQL = `UPDATE users SET quendoo_api_key = $2, email_api_key = $3, updated_at = now() WHERE id = $1`

func (r *PostgresUserRepo) UpdateAPIKeys(ctx context.Context, userID int64, quendooKey, emailKey string) error {
	if _, err := r.db.Exec(ctx, updateUserKeysSQL, userID, quendooKey, emailKey); err != nil {
		return fmt.Errorf("update user api keys: %w", err)
	}
	return nil
}

// PostgresClientRepo implements ClientRepository.
type PostgresClientRepo struct {
	db *pgxpool.Pool
}

func NewPostgresClientRepo(pool *pgxpool.Pool) *PostgresClientRepo {
	return &PostgresClientRepo{db: pool}
}

const insertClientSQL = `INSERT INTO oauth_clients (id, secret, name, redirect_uris, grant_types, response_types, scope, token_endpoint_auth_method, public)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (r *PostgresClientRepo) Create(ctx context.Context, client domain.OAuthClient) error {
	_, err := r.db.Exec(ctx, insertClientSQL,
		client.ID,
		client.Secret,
		client.Name,
		client.RedirectURIs,
		client.GrantTypes,
		client.ResponseTypes,
		client.Scope,
		client.TokenEndpointAuthMethod,
		client.Public,
	)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

const selectClientSQL = `SELECT id, secret, name, redirect_uris, grant_types, response_types, scope, token_endpoint_auth_method, public, created_at
FROM oauth_clients WHERE id = $1`

func (r *PostgresClientRepo) GetByID(ctx context.Context, clientID string) (domain.OAuthClient, error) {
	var c domain.OAuthClient
	row := r.db.QueryRow(ctx, selectClientSQL, clientID)
	if err := row.Scan(&c.ID, &c.Secret, &c.Name, &c.RedirectURIs, &c.GrantTypes, &c.ResponseTypes, &c.Scope, &c.TokenEndpointAuthMethod, &c.Public, &c.CreatedAt); err != nil {
		return domain.OAuthClient{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// PostgresCodeRepo implements CodeRepository.
type PostgresCodeRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCodeRepo(pool *pgxpool.Pool) *PostgresCodeRepo {
	return &PostgresCodeRepo{db: pool}
}

const insertCodeSQL = `INSERT INTO authorization_codes (code, client_id, user_id, redirect_uri, scope, code_challenge, code_challenge_method, expires_at, used)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`

func (r *PostgresCodeRepo) Create(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := r.db.Exec(ctx, insertCodeSQL,
		code.Code,
		code.ClientID,
		code.UserID,
		code.RedirectURI,
		code.Scope,
		code.CodeChallenge,
		code.CodeChallengeMethod,
		code.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

const selectCodeSQL = `SELECT code, client_id, user_id, redirect_uri, scope, code_challenge, code_challenge_method, expires_at, used, created_at
FROM authorization_codes WHERE code = $1`

func (r *PostgresCodeRepo) Get(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	var c domain.AuthorizationCode
	row := r.db.QueryRow(ctx, selectCodeSQL, code)
	if err := row.Scan(&c.Code, &c.ClientID, &c.UserID, &c.RedirectURI, &c.Scope, &c.CodeChallenge, &c.CodeChallengeMethod, &c.ExpiresAt, &c.Used, &c.CreatedAt); err != nil {
		return domain.AuthorizationCode{}, fmt.Errorf("get code: %w", err)
	}
	return c, nil
}

// consumeCodeSQL only matches unused codes, so the row-level atomicity of a
// single UPDATE gives the compare-and-set required for single-use exchange.
const consumeCodeSQL = `UPDATE authorization_codes SET used = TRUE WHERE code = $1 AND used = FALSE`

func (r *PostgresCodeRepo) Consume(ctx context.Context, code string) (bool, error) {
	tag, err := r.db.Exec(ctx, consumeCodeSQL, code)
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PostgresTokenRepo implements TokenRepository.
type PostgresTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTokenRepo(pool *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: pool}
}

const insertTokenSQL = `INSERT INTO access_tokens (id, user_id, client_id, scope, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, FALSE)`

func (r *PostgresTokenRepo) Create(ctx context.Context, token domain.AccessToken) error {
	_, err := r.db.Exec(ctx, insertTokenSQL, token.ID, token.UserID, token.ClientID, token.Scope, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

const selectTokenSQL = `SELECT id, user_id, client_id, scope, expires_at, revoked, created_at
FROM access_tokens WHERE id = $1`

func (r *PostgresTokenRepo) GetByID(ctx context.Context, tokenID string) (domain.AccessToken, error) {
	var t domain.AccessToken
	row := r.db.QueryRow(ctx, selectTokenSQL, tokenID)
	if err := row.Scan(&t.ID, &t.UserID, &t.ClientID, &t.Scope, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		return domain.AccessToken{}, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

const revokeTokenSQL = `UPDATE access_tokens SET revoked = TRUE WHERE id = $1`

func (r *PostgresTokenRepo) Revoke(ctx context.Context, tokenID string) error {
	if _, err := r.db.Exec(ctx, revokeTokenSQL, tokenID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// PostgresKeyRepo implements KeyRepository.
type PostgresKeyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresKeyRepo(pool *pgxpool.Pool) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: pool}
}

const selectActiveKeySQL = `SELECT id, kid, secret, algorithm, active, created_at
FROM signing_keys WHERE active = TRUE ORDER BY created_at DESC LIMIT 1`

func (r *PostgresKeyRepo) GetActiveKey(ctx context.Context) (domain.SigningKey, error) {
	var k domain.SigningKey
	row := r.db.QueryRow(ctx, selectActiveKeySQL)
	if err := row.Scan(&k.ID, &k.KID, &k.Secret, &k.Algorithm, &k.Active, &k.CreatedAt); err != nil {
		return domain.SigningKey{}, fmt.Errorf("get signing key: %w", err)
	}
	return k, nil
}

const insertKeySQL = `INSERT INTO signing_keys (kid, secret, algorithm, active)
VALUES ($1, $2, $3, TRUE)
RETURNING id, kid, secret, algorithm, active, created_at`

func (r *PostgresKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	var created domain.SigningKey
	row := r.db.QueryRow(ctx, insertKeySQL, key.KID, key.Secret, key.Algorithm)
	if err := row.Scan(&created.ID, &created.KID, &created.Secret, &created.Algorithm, &created.Active, &created.CreatedAt); err != nil {
		return domain.SigningKey{}, fmt.Errorf("insert signing key: %w", err)
	}
	return created, nil
}
