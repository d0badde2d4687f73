package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/usergate/usergate/src/logging"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories"
)

// CreateUserRequest is the candidate payload for the gated creation path
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Validate checks required fields before any key lookup happens
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return &ValidationError{Field: "first_name", Reason: "is required"}
	}
	if strings.TrimSpace(r.LastName) == "" {
		return &ValidationError{Field: "last_name", Reason: "is required"}
	}
	if strings.TrimSpace(r.Email) == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	if r.Password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	if r.Status != "" &&
		r.Status != string(models.UserStatusActive) &&
		r.Status != string(models.UserStatusInactive) {
		return &ValidationError{Field: "status", Reason: "must be active or inactive"}
	}
	return nil
}

// ProvisionService orchestrates the admin-key-gated external user creation
// flow: payload validation, key resolution, email uniqueness, quota
// reservation and user persistence, in that order.
type ProvisionService struct {
	keys  *KeyService
	users repositories.UserRepository
	log   zerolog.Logger
}

// NewProvisionService creates a new provision service
func NewProvisionService(keys *KeyService, users repositories.UserRepository) *ProvisionService {
	return &ProvisionService{
		keys:  keys,
		users: users,
		log:   logging.NewLogger("provision"),
	}
}

// CreateExternalUser runs the full gated creation sequence. Side effects are
// strictly ordered: nothing is written before the key resolves, and no user
// row exists without a successful quota reservation. Any failure after the
// reservation releases the unit again.
func (ps *ProvisionService) CreateExternalUser(ctx context.Context, keyValue string, req CreateUserRequest) (*models.ExternalUser, error) {
	// Step 1: payload shape. Fails before any key lookup.
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Step 2: resolve the presented key
	key, err := ps.keys.Resolve(ctx, keyValue)
	if err != nil {
		return nil, err
	}

	// Step 3: email uniqueness. A concurrent insert can still slip past
	// this check; the unique constraint catches it below.
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := ps.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	// Step 4: reserve one unit of quota
	if err := ps.keys.Reserve(ctx, key.ID); err != nil {
		return nil, err
	}

	// Step 5: persist. Everything from here on must compensate on failure.
	user, err := ps.buildUser(key.ID, req, email)
	if err != nil {
		ps.release(ctx, key.ID)
		return nil, err
	}

	if err := ps.users.Create(ctx, user); err != nil {
		ps.release(ctx, key.ID)
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to persist user: %w", err)
	}

	ps.log.Info().
		Str("user_id", user.ID.String()).
		Str("key_id", key.ID.String()).
		Msg("external user created")

	return user, nil
}

// buildUser assembles the user record with a derived credential hash and
// defaults for unspecified role/status
func (ps *ProvisionService) buildUser(keyID uuid.UUID, req CreateUserRequest, email string) (*models.ExternalUser, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = models.DefaultUserRole
	}
	status := models.UserStatus(req.Status)
	if req.Status == "" {
		status = models.DefaultUserStatus
	}

	now := time.Now()
	return &models.ExternalUser{
		ID:             uuid.New(),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		Status:         status,
		CreatedByKeyID: keyID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// release performs the compensating decrement. A failed release is logged
// loudly: it means a quota unit leaked and needs operator attention.
func (ps *ProvisionService) release(ctx context.Context, keyID uuid.UUID) {
	if err := ps.keys.Release(ctx, keyID); err != nil {
		ps.log.Error().
			Err(err).
			Str("key_id", keyID.String()).
			Msg("failed to release reserved quota")
	}
}

// ListUsers returns all externally created users for the operator surface
func (ps *ProvisionService) ListUsers(ctx context.Context) ([]*models.ExternalUser, error) {
	return ps.users.List(ctx)
}
