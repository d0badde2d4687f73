package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/usergate/usergate/src/logging"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories"
	"gopkg.in/yaml.v3"
)

// SeedKey is one admin key declaration from the operator seed file
type SeedKey struct {
	Key               string `yaml:"key"`
	UserCreationLimit int    `yaml:"user_creation_limit"`
	Description       string `yaml:"description"`
	ExpiresInDays     int    `yaml:"expires_in_days"`
}

// SeedFile is the top-level structure of the seed file
type SeedFile struct {
	Keys []SeedKey `yaml:"keys"`
}

// SeedService ensures declared admin keys exist on startup. It replaces
// one-shot seeding scripts: re-running with the same file is a no-op for
// keys that already exist.
type SeedService struct {
	keys *KeyService
	repo repositories.KeyRepository
}

// NewSeedService creates a new seed service
func NewSeedService(keys *KeyService, repo repositories.KeyRepository) *SeedService {
	return &SeedService{keys: keys, repo: repo}
}

// LoadSeedFile parses a YAML seed file
func LoadSeedFile(path string) (*SeedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeedFile(content)
}

// ParseSeedFile parses seed file content and validates each entry
func ParseSeedFile(content []byte) (*SeedFile, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(content, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, k := range sf.Keys {
		if k.UserCreationLimit < 0 {
			return nil, fmt.Errorf("seed key %d: user_creation_limit must not be negative", i)
		}
		if k.ExpiresInDays <= 0 {
			return nil, fmt.Errorf("seed key %d: expires_in_days must be positive", i)
		}
	}

	return &sf, nil
}

// Apply ensures every declared key exists. Entries with an explicit value
// are inserted verbatim if absent; entries without one get a generated
// value, logged once since it is shown nowhere else.
func (ss *SeedService) Apply(ctx context.Context, sf *SeedFile) error {
	log := logging.NewLogger("seed")

	for _, entry := range sf.Keys {
		expiresAt := time.Now().Add(time.Duration(entry.ExpiresInDays) * 24 * time.Hour)

		if entry.Key == "" {
			key, err := ss.keys.CreateKey(ctx, entry.UserCreationLimit, entry.Description, expiresAt)
			if err != nil {
				return fmt.Errorf("failed to seed key %q: %w", entry.Description, err)
			}
			log.Info().
				Str("key_value", key.KeyValue).
				Str("description", entry.Description).
				Int("limit", entry.UserCreationLimit).
				Msg("seeded generated admin key")
			continue
		}

		_, err := ss.repo.GetByValue(ctx, entry.Key)
		if err == nil {
			continue // already seeded
		}
		if !errors.Is(err, repositories.ErrKeyNotFound) {
			return fmt.Errorf("failed to check seed key: %w", err)
		}

		now := time.Now()
		key := &models.AdminKey{
			ID:                uuid.New(),
			KeyValue:          entry.Key,
			UserCreationLimit: entry.UserCreationLimit,
			Description:       entry.Description,
			Status:            models.KeyStatusActive,
			CreatedAt:         now,
			UpdatedAt:         now,
			ExpiresAt:         expiresAt,
		}
		if err := ss.repo.Create(ctx, key); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Description, err)
		}
		log.Info().
			Str("description", entry.Description).
			Int("limit", entry.UserCreationLimit).
			Msg("seeded declared admin key")
	}

	return nil
}
