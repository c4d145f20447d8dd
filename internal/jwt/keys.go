package jwt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/repository"
)

const signingSecretBytes = 64

// KeyManager loads the active signing key on first use and creates one when
// the store has none. The key is cached for the process lifetime; rotation
// means restarting with a new active row.
type KeyManager struct {
	repo repository.KeyRepository

	mu  sync.Mutex
	key *domain.SigningKey
}

func NewKeyManager(repo repository.KeyRepository) *KeyManager {
	return &KeyManager{repo: repo}
}

// ActiveKey returns the cached signing key, loading or provisioning it on
// first call.
func (m *KeyManager) ActiveKey(ctx context.Context) (domain.SigningKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.key != nil {
		return *m.key, nil
	}

	key, err := m.repo.GetActiveKey(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		key, err = m.provision(ctx)
	}
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("load signing key: %w", err)
	}

	m.key = &key
	return key, nil
}

func (m *KeyManager) provision(ctx context.Context) (domain.SigningKey, error) {
	secret := make([]byte, signingSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return domain.SigningKey{}, fmt.Errorf("generate signing secret: %w", err)
	}

	key, err := m.repo.CreateKey(ctx, domain.SigningKey{
		KID:       uuid.NewString(),
		Secret:    secret,
		Algorithm: "HS256",
	})
	if err != nil {
		return domain.SigningKey{}, err
	}

	zap.L().Info("provisioned new token signing key", zap.String("kid", key.KID))
	return key, nil
}
