package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/usergate/usergate/src/models"
)

// KeyRepository defines data access for admin keys
type KeyRepository interface {
	// Lookup
	GetByValue(ctx context.Context, keyValue string) (*models.AdminKey, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdminKey, error)

	// Quota. ReserveQuota atomically increments users_created when the key
	// is active and below its limit; it returns false (and no error) when
	// the quota is exhausted. ReleaseQuota is the compensating decrement
	// and never takes the counter below zero.
	ReserveQuota(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseQuota(ctx context.Context, id uuid.UUID) error

	// Operator lifecycle
	Create(ctx context.Context, key *models.AdminKey) error
	List(ctx context.Context) ([]*models.AdminKey, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.KeyStatus) error
	Extend(ctx context.Context, id uuid.UUID, limit int, expiresAt time.Time) error
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository defines data access for externally created users
type UserRepository interface {
	Create(ctx context.Context, user *models.ExternalUser) error
	GetByEmail(ctx context.Context, email string) (*models.ExternalUser, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*models.ExternalUser, error)
}

// AdminRepository defines data access for operator accounts
type AdminRepository interface {
	Create(ctx context.Context, admin *models.AdminUser) error
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	UpdateLastLogin(ctx context.Context, adminID uuid.UUID) error
	Count(ctx context.Context) (int, error)
}
