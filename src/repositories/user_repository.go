package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/usergate/usergate/src/models"
)

// PostgresUserRepository implements UserRepository over a pgx pool
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a Postgres-backed user repository
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const externalUserColumns = `id, first_name, last_name, email, password_hash, role, status, created_by_key_id, created_at, updated_at`

// Create inserts a new external user. A unique-constraint violation on the
// email column maps to ErrDuplicateEmail so the caller can compensate.
func (r *PostgresUserRepository) Create(ctx context.Context, user *models.ExternalUser) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO external_users (id, first_name, last_name, email, password_hash, role, status, created_by_key_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Role,
		string(user.Status),
		user.CreatedByKeyID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create external user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.ExternalUser, error) {
	var user models.ExternalUser
	var status string

	err := r.pool.QueryRow(ctx,
		`SELECT `+externalUserColumns+` FROM external_users WHERE email = $1`,
		email,
	).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&status,
		&user.CreatedByKeyID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	user.Status = models.UserStatus(status)
	return &user, nil
}

// EmailExists reports whether any user already holds the email
func (r *PostgresUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM external_users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// List returns all externally created users, newest first
func (r *PostgresUserRepository) List(ctx context.Context) ([]*models.ExternalUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+externalUserColumns+` FROM external_users ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.ExternalUser
	for rows.Next() {
		var user models.ExternalUser
		var status string
		if err := rows.Scan(
			&user.ID,
			&user.FirstName,
			&user.LastName,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&status,
			&user.CreatedByKeyID,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Status = models.UserStatus(status)
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Ensure the implementation satisfies the interface
var _ UserRepository = (*PostgresUserRepository)(nil)
