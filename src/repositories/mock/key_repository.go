package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories"
)

// KeyRepository is an in-memory implementation of repositories.KeyRepository.
// Quota operations hold a mutex for the full check-and-increment, giving the
// same atomicity as the conditional UPDATE in the Postgres implementation.
// Function stubs can override individual methods in tests.
type KeyRepository struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*models.AdminKey

	GetByValueFunc   func(ctx context.Context, keyValue string) (*models.AdminKey, error)
	ReserveQuotaFunc func(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseQuotaFunc func(ctx context.Context, id uuid.UUID) error

	// Call tracking
	Calls map[string]int
}

// NewKeyRepository creates an empty in-memory key repository
func NewKeyRepository() *KeyRepository {
	return &KeyRepository{
		keys:  make(map[uuid.UUID]*models.AdminKey),
		Calls: make(map[string]int),
	}
}

// Add seeds a key into the repository
func (m *KeyRepository) Add(key *models.AdminKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
}

// Snapshot returns a copy of the stored key for assertions
func (m *KeyRepository) Snapshot(id uuid.UUID) *models.AdminKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.keys[id]; ok {
		cp := *key
		return &cp
	}
	return nil
}

func (m *KeyRepository) track(name string) {
	m.Calls[name]++
}

func (m *KeyRepository) GetByValue(ctx context.Context, keyValue string) (*models.AdminKey, error) {
	if m.GetByValueFunc != nil {
		return m.GetByValueFunc(ctx, keyValue)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetByValue")
	for _, key := range m.keys {
		if key.KeyValue == keyValue {
			cp := *key
			return &cp, nil
		}
	}
	return nil, repositories.ErrKeyNotFound
}

func (m *KeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetByID")
	if key, ok := m.keys[id]; ok {
		cp := *key
		return &cp, nil
	}
	return nil, repositories.ErrKeyNotFound
}

func (m *KeyRepository) ReserveQuota(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.ReserveQuotaFunc != nil {
		return m.ReserveQuotaFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("ReserveQuota")
	key, ok := m.keys[id]
	if !ok {
		return false, nil
	}
	if key.Status != models.KeyStatusActive || key.UsersCreated >= key.UserCreationLimit {
		return false, nil
	}
	key.UsersCreated++
	key.UpdatedAt = time.Now()
	return true, nil
}

func (m *KeyRepository) ReleaseQuota(ctx context.Context, id uuid.UUID) error {
	if m.ReleaseQuotaFunc != nil {
		return m.ReleaseQuotaFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("ReleaseQuota")
	if key, ok := m.keys[id]; ok && key.UsersCreated > 0 {
		key.UsersCreated--
		key.UpdatedAt = time.Now()
	}
	return nil
}

func (m *KeyRepository) Create(ctx context.Context, key *models.AdminKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Create")
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *KeyRepository) List(ctx context.Context) ([]*models.AdminKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("List")
	keys := make([]*models.AdminKey, 0, len(m.keys))
	for _, key := range m.keys {
		cp := *key
		keys = append(keys, &cp)
	}
	return keys, nil
}

func (m *KeyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.KeyStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("UpdateStatus")
	key, ok := m.keys[id]
	if !ok {
		return repositories.ErrKeyNotFound
	}
	key.Status = status
	key.UpdatedAt = time.Now()
	return nil
}

func (m *KeyRepository) Extend(ctx context.Context, id uuid.UUID, limit int, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("Extend")
	key, ok := m.keys[id]
	if !ok {
		return repositories.ErrKeyNotFound
	}
	key.UserCreationLimit = limit
	key.ExpiresAt = expiresAt
	if key.Status == models.KeyStatusExpired {
		key.Status = models.KeyStatusActive
	}
	key.UpdatedAt = time.Now()
	return nil
}

func (m *KeyRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("MarkExpired")
	var n int64
	for _, key := range m.keys {
		if key.Status == models.KeyStatusActive && !key.ExpiresAt.After(now) {
			key.Status = models.KeyStatusExpired
			key.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// Ensure KeyRepository implements the interface
var _ repositories.KeyRepository = (*KeyRepository)(nil)
