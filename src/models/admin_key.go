package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminKey represents a credential that authorizes external user creation
// with a bounded quota. Keys are never deleted, only status-transitioned.
type AdminKey struct {
	ID                uuid.UUID `json:"id"`
	KeyValue          string    `json:"key_value"`
	UserCreationLimit int       `json:"user_creation_limit"`
	UsersCreated      int       `json:"users_created"`
	Description       string    `json:"description"`
	Status            KeyStatus `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// IsRevoked returns true if an operator disabled the key
func (k *AdminKey) IsRevoked() bool {
	return k.Status == KeyStatusRevoked
}

// IsExpiredAt reports whether the key is expired at the given instant.
// The boundary instant itself counts as expired, and the check is
// independent of the stored status field.
func (k *AdminKey) IsExpiredAt(now time.Time) bool {
	if k.Status == KeyStatusExpired {
		return true
	}
	return !now.Before(k.ExpiresAt)
}

// Remaining returns the unused portion of the creation quota
func (k *AdminKey) Remaining() int {
	if r := k.UserCreationLimit - k.UsersCreated; r > 0 {
		return r
	}
	return 0
}
