package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/usergate/usergate/src/models"
)

// PostgresAdminRepository implements AdminRepository over a pgx pool
type PostgresAdminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository creates a Postgres-backed admin repository
func NewAdminRepository(pool *pgxpool.Pool) *PostgresAdminRepository {
	return &PostgresAdminRepository{pool: pool}
}

// Create inserts a new operator account
func (r *PostgresAdminRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_users (id, username, password_hash, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5)
	`, admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt, admin.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	return nil
}

// GetByUsername retrieves an operator account by username
func (r *PostgresAdminRepository) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at, last_login, is_active
		FROM admin_users WHERE username = $1
	`, username).Scan(
		&admin.ID,
		&admin.Username,
		&admin.PasswordHash,
		&admin.CreatedAt,
		&admin.LastLogin,
		&admin.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}
	return &admin, nil
}

// UpdateLastLogin stamps the operator's last successful login
func (r *PostgresAdminRepository) UpdateLastLogin(ctx context.Context, adminID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE admin_users SET last_login = NOW() WHERE id = $1`,
		adminID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// Count returns the number of operator accounts
func (r *PostgresAdminRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admin users: %w", err)
	}
	return count, nil
}

// Ensure the implementation satisfies the interface
var _ AdminRepository = (*PostgresAdminRepository)(nil)
