package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/usergate/usergate/src/models"
)

// PostgresKeyRepository implements KeyRepository over a pgx pool
type PostgresKeyRepository struct {
	pool *pgxpool.Pool
}

// NewKeyRepository creates a Postgres-backed key repository
func NewKeyRepository(pool *pgxpool.Pool) *PostgresKeyRepository {
	return &PostgresKeyRepository{pool: pool}
}

const adminKeyColumns = `id, key_value, user_creation_limit, users_created, description, status, created_at, updated_at, expires_at`

// GetByValue retrieves an admin key by its exact key string
func (r *PostgresKeyRepository) GetByValue(ctx context.Context, keyValue string) (*models.AdminKey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+adminKeyColumns+` FROM admin_keys WHERE key_value = $1`,
		keyValue,
	)
	return scanAdminKey(row)
}

// GetByID retrieves an admin key by its ID
func (r *PostgresKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AdminKey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+adminKeyColumns+` FROM admin_keys WHERE id = $1`,
		id,
	)
	return scanAdminKey(row)
}

// ReserveQuota atomically claims one unit of creation quota. The guard and
// the increment happen in a single conditional UPDATE, so two concurrent
// reservations against a key with one remaining unit can never both succeed.
func (r *PostgresKeyRepository) ReserveQuota(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE admin_keys
		SET users_created = users_created + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND users_created < user_creation_limit
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to reserve quota: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ReleaseQuota returns a previously reserved unit. The counter never goes
// below zero, so a stray release on a fresh key is a no-op.
func (r *PostgresKeyRepository) ReleaseQuota(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE admin_keys
		SET users_created = users_created - 1, updated_at = NOW()
		WHERE id = $1 AND users_created > 0
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

// Create inserts a new admin key
func (r *PostgresKeyRepository) Create(ctx context.Context, key *models.AdminKey) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_keys (id, key_value, user_creation_limit, users_created, description, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		key.ID,
		key.KeyValue,
		key.UserCreationLimit,
		key.UsersCreated,
		key.Description,
		string(key.Status),
		key.CreatedAt,
		key.UpdatedAt,
		key.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin key: %w", err)
	}
	return nil
}

// List returns all admin keys, newest first
func (r *PostgresKeyRepository) List(ctx context.Context) ([]*models.AdminKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+adminKeyColumns+` FROM admin_keys ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.AdminKey
	for rows.Next() {
		key, err := scanAdminKeyFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admin keys: %w", err)
	}

	return keys, nil
}

// UpdateStatus transitions a key to a new status
func (r *PostgresKeyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.KeyStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE admin_keys SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update key status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Extend raises the creation limit and pushes the expiry instant. An
// extended key that was auto-expired becomes active again.
func (r *PostgresKeyRepository) Extend(ctx context.Context, id uuid.UUID, limit int, expiresAt time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE admin_keys
		SET user_creation_limit = $2,
		    expires_at = $3,
		    status = CASE WHEN status = 'expired' THEN 'active' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, limit, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to extend key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// MarkExpired flips active keys past their expiry instant to expired and
// returns how many were transitioned. Validation does not depend on this;
// it only reconciles the stored status for operator listings.
func (r *PostgresKeyRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE admin_keys
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expired keys: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanAdminKey(row pgx.Row) (*models.AdminKey, error) {
	var key models.AdminKey
	var status string

	err := row.Scan(
		&key.ID,
		&key.KeyValue,
		&key.UserCreationLimit,
		&key.UsersCreated,
		&key.Description,
		&status,
		&key.CreatedAt,
		&key.UpdatedAt,
		&key.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan admin key: %w", err)
	}

	key.Status = models.KeyStatus(status)
	return &key, nil
}

func scanAdminKeyFromRows(rows pgx.Rows) (*models.AdminKey, error) {
	var key models.AdminKey
	var status string

	err := rows.Scan(
		&key.ID,
		&key.KeyValue,
		&key.UserCreationLimit,
		&key.UsersCreated,
		&key.Description,
		&status,
		&key.CreatedAt,
		&key.UpdatedAt,
		&key.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	key.Status = models.KeyStatus(status)
	return &key, nil
}

// Ensure the implementation satisfies the interface
var _ KeyRepository = (*PostgresKeyRepository)(nil)
