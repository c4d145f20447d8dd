package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
)

// In-memory implementations backing local runs without DATABASE_URL and unit
// tests. Misses return pgx.ErrNoRows so callers branch identically against
// either backend.

var (
	_ UserRepository   = (*MemoryUserRepo)(nil)
	_ ClientRepository = (*MemoryClientRepo)(nil)
	_ CodeRepository   = (*MemoryCodeRepo)(nil)
	_ TokenRepository  = (*MemoryTokenRepo)(nil)
	_ KeyRepository    = (*MemoryKeyRepo)(nil)
)

// MemoryUserRepo implements UserRepository in process memory.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]domain.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{nextID: 1, users: make(map[int64]domain.User)}
}

func (r *MemoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("get user by email: %w", pgx.ErrNoRows)
}

func (r *MemoryUserRepo) GetByID(_ context.Context, userID int64) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.User{}, fmt.Errorf("get user by id: %w", pgx.ErrNoRows)
	}
	return u, nil
}

func (r *MemoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.nextID
	r.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepo) UpdateAPIKeys(_ context.Context, userID int64, quendooKey, emailKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("update user api keys: %w", pgx.ErrNoRows)
	}
	u.QuendooAPIKey = quendooKey
	u.EmailAPIKey = emailKey
	u.UpdatedAt = time.Now()
	r.users[userID] = u
	return nil
}

// MemoryClientRepo implements ClientRepository in process memory.
type MemoryClientRepo struct {
	mu      sync.RWMutex
	clients map[string]domain.OAuthClient
}

func NewMemoryClientRepo() *MemoryClientRepo {
	return &MemoryClientRepo{clients: make(map[string]domain.OAuthClient)}
}

func (r *MemoryClientRepo) Create(_ context.Context, client domain.OAuthClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	r.clients[client.ID] = client
	return nil
}

func (r *MemoryClientRepo) GetByID(_ context.Context, clientID string) (domain.OAuthClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return domain.OAuthClient{}, fmt.Errorf("get client: %w", pgx.ErrNoRows)
	}
	return c, nil
}

// MemoryCodeRepo implements CodeRepository in process memory.
type MemoryCodeRepo struct {
	mu    sync.Mutex
	codes map[string]domain.AuthorizationCode
}

func NewMemoryCodeRepo() *MemoryCodeRepo {
	return &MemoryCodeRepo{codes: make(map[string]domain.AuthorizationCode)}
}

func (r *MemoryCodeRepo) Create(_ context.Context, code domain.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	r.codes[code.Code] = code
	return nil
}

func (r *MemoryCodeRepo) Get(_ context.Context, code string) (domain.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return domain.AuthorizationCode{}, fmt.Errorf("get code: %w", pgx.ErrNoRows)
	}
	return c, nil
}

func (r *MemoryCodeRepo) Consume(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	r.codes[code] = c
	return true, nil
}

// MemoryTokenRepo implements TokenRepository in process memory.
type MemoryTokenRepo struct {
	mu     sync.RWMutex
	tokens map[string]domain.AccessToken
}

func NewMemoryTokenRepo() *MemoryTokenRepo {
	return &MemoryTokenRepo{tokens: make(map[string]domain.AccessToken)}
}

func (r *MemoryTokenRepo) Create(_ context.Context, token domain.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.tokens[token.ID] = token
	return nil
}

func (r *MemoryTokenRepo) GetByID(_ context.Context, tokenID string) (domain.AccessToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return domain.AccessToken{}, fmt.Errorf("get token: %w", pgx.ErrNoRows)
	}
	return t, nil
}

func (r *MemoryTokenRepo) Revoke(_ context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return nil
	}
	t.Revoked = true
	r.tokens[tokenID] = t
	return nil
}

// MemoryKeyRepo implements KeyRepository in process memory.
type MemoryKeyRepo struct {
	mu     sync.Mutex
	nextID int64
	keys   []domain.SigningKey
}

func NewMemoryKeyRepo() *MemoryKeyRepo {
	return &MemoryKeyRepo{nextID: 1}
}

func (r *MemoryKeyRepo) GetActiveKey(_ context.Context) (domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.keys) - 1; i >= 0; i-- {
		if r.keys[i].Active {
			return r.keys[i], nil
		}
	}
	return domain.SigningKey{}, fmt.Errorf("get signing key: %w", pgx.ErrNoRows)
}

func (r *MemoryKeyRepo) CreateKey(_ context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.ID = r.nextID
	r.nextID++
	key.Active = true
	key.CreatedAt = time.Now()
	r.keys = append(r.keys, key)
	return key, nil
}
