package models

import (
	"time"

	"github.com/google/uuid"
)

// ExternalUser represents a user account created through the key-gated path
type ExternalUser struct {
	ID             uuid.UUID  `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"` // never expose
	Role           string     `json:"role"`
	Status         UserStatus `json:"status"`
	CreatedByKeyID uuid.UUID  `json:"created_by_key_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
