package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories"
)

// KeyService handles admin key resolution, quota enforcement and the
// operator-facing key lifecycle.
type KeyService struct {
	repo repositories.KeyRepository
	now  func() time.Time
}

// NewKeyService creates a new key service
func NewKeyService(repo repositories.KeyRepository) *KeyService {
	return &KeyService{repo: repo, now: time.Now}
}

// NewKeyServiceWithClock creates a key service with a fixed clock (for testing)
func NewKeyServiceWithClock(repo repositories.KeyRepository, now func() time.Time) *KeyService {
	return &KeyService{repo: repo, now: now}
}

// Resolve looks up the presented key by exact string match and checks its
// status. Expiry is judged against the clock regardless of the stored
// status, so a key whose sweep is overdue is still rejected. Resolve has
// no side effects.
func (ks *KeyService) Resolve(ctx context.Context, keyValue string) (*models.AdminKey, error) {
	key, err := ks.repo.GetByValue(ctx, keyValue)
	if err != nil {
		if errors.Is(err, repositories.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to resolve key: %w", err)
	}

	if key.IsRevoked() {
		return nil, ErrKeyRevoked
	}
	if key.IsExpiredAt(ks.now()) {
		return nil, ErrKeyExpired
	}

	return key, nil
}

// Reserve claims one unit of creation quota on the key. The repository
// performs the guard and increment as a single atomic operation, so
// concurrent reservations on the same key serialize there.
func (ks *KeyService) Reserve(ctx context.Context, keyID uuid.UUID) error {
	reserved, err := ks.repo.ReserveQuota(ctx, keyID)
	if err != nil {
		return fmt.Errorf("failed to reserve quota: %w", err)
	}
	if !reserved {
		return ErrQuotaExhausted
	}
	return nil
}

// Release returns a reserved unit after a failed creation. Quota must never
// be silently lost, so callers invoke this on any post-reservation failure.
func (ks *KeyService) Release(ctx context.Context, keyID uuid.UUID) error {
	if err := ks.repo.ReleaseQuota(ctx, keyID); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

// generateKeyValue generates a random key with the "ak_" prefix
func generateKeyValue() (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return "ak_" + hex.EncodeToString(keyBytes), nil
}

// CreateKey mints a new active admin key with the given quota and expiry
func (ks *KeyService) CreateKey(ctx context.Context, limit int, description string, expiresAt time.Time) (*models.AdminKey, error) {
	if limit < 0 {
		return nil, &ValidationError{Field: "user_creation_limit", Reason: "must not be negative"}
	}

	keyValue, err := generateKeyValue()
	if err != nil {
		return nil, err
	}

	now := ks.now()
	key := &models.AdminKey{
		ID:                uuid.New(),
		KeyValue:          keyValue,
		UserCreationLimit: limit,
		UsersCreated:      0,
		Description:       description,
		Status:            models.KeyStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         expiresAt,
	}

	if err := ks.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create admin key: %w", err)
	}

	return key, nil
}

// ListKeys returns all admin keys
func (ks *KeyService) ListKeys(ctx context.Context) ([]*models.AdminKey, error) {
	return ks.repo.List(ctx)
}

// RevokeKey transitions a key to revoked. Revocation is idempotent from the
// caller's perspective; a revoked key stays revoked.
func (ks *KeyService) RevokeKey(ctx context.Context, keyID uuid.UUID) error {
	if err := ks.repo.UpdateStatus(ctx, keyID, models.KeyStatusRevoked); err != nil {
		if errors.Is(err, repositories.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	return nil
}

// ExtendKey raises a key's creation limit and pushes its expiry instant.
// Revoked keys cannot be extended; re-activation of an auto-expired key is
// handled by the repository.
func (ks *KeyService) ExtendKey(ctx context.Context, keyID uuid.UUID, limit int, expiresAt time.Time) (*models.AdminKey, error) {
	key, err := ks.repo.GetByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repositories.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to load key: %w", err)
	}
	if key.IsRevoked() {
		return nil, ErrKeyRevoked
	}
	if limit < key.UsersCreated {
		return nil, &ValidationError{Field: "user_creation_limit", Reason: "must not be below users already created"}
	}

	if err := ks.repo.Extend(ctx, keyID, limit, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to extend key: %w", err)
	}

	return ks.repo.GetByID(ctx, keyID)
}
