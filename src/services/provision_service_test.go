package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories/mock"
)

func validRequest(email string) CreateUserRequest {
	return CreateUserRequest{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     email,
		Password:  "correct-horse-battery",
	}
}

func newProvisionFixture() (*mock.KeyRepository, *mock.UserRepository, *ProvisionService) {
	keyRepo := mock.NewKeyRepository()
	userRepo := mock.NewUserRepository()
	ps := NewProvisionService(NewKeyService(keyRepo), userRepo)
	return keyRepo, userRepo, ps
}

func TestCreateExternalUser_Success(t *testing.T) {
	keyRepo, _, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 5, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	user, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("Jane.Doe@Example.com"))
	require.NoError(t, err)

	assert.Equal(t, "jane.doe@example.com", user.Email)
	assert.Equal(t, models.DefaultUserRole, user.Role)
	assert.Equal(t, models.DefaultUserStatus, user.Status)
	assert.Equal(t, key.ID, user.CreatedByKeyID)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)
	ok, err := VerifyPassword("correct-horse-battery", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, keyRepo.Snapshot(key.ID).UsersCreated)
}

func TestCreateExternalUser_LimitOneLifecycle(t *testing.T) {
	// A key with limit 1 admits exactly one user, then is exhausted
	keyRepo, _, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 1, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("first@example.com"))
	require.NoError(t, err)

	_, err = ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("second@example.com"))
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	assert.Equal(t, 1, keyRepo.Snapshot(key.ID).UsersCreated)
}

func TestCreateExternalUser_InvalidPayloadSkipsKeyLookup(t *testing.T) {
	keyRepo, userRepo, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 5, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	req := validRequest("not-an-email")
	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, req)
	assert.True(t, IsValidationError(err))

	// Validation failures must not touch the key or user stores
	assert.Equal(t, 0, keyRepo.Calls["GetByValue"])
	assert.Equal(t, 0, keyRepo.Calls["ReserveQuota"])
	assert.Equal(t, 0, userRepo.Calls["EmailExists"])
}

func TestCreateExternalUser_MissingFields(t *testing.T) {
	_, _, ps := newProvisionFixture()

	cases := []struct {
		name  string
		mod   func(*CreateUserRequest)
		field string
	}{
		{"missing first name", func(r *CreateUserRequest) { r.FirstName = "  " }, "first_name"},
		{"missing last name", func(r *CreateUserRequest) { r.LastName = "" }, "last_name"},
		{"missing email", func(r *CreateUserRequest) { r.Email = "" }, "email"},
		{"missing password", func(r *CreateUserRequest) { r.Password = "" }, "password"},
		{"bad status", func(r *CreateUserRequest) { r.Status = "suspended" }, "status"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest("user@example.com")
			tc.mod(&req)
			_, err := ps.CreateExternalUser(context.Background(), "ak_whatever", req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateExternalUser_RevokedKeyRejectedDespiteQuota(t *testing.T) {
	keyRepo, userRepo, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusRevoked, 100, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("user@example.com"))
	assert.ErrorIs(t, err, ErrKeyRevoked)

	assert.Equal(t, 0, keyRepo.Snapshot(key.ID).UsersCreated)
	assert.Equal(t, 0, userRepo.Calls["Create"])
}

func TestCreateExternalUser_ExpiredKeyRejected(t *testing.T) {
	keyRepo, _, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 5, 0, time.Now().Add(-time.Second))
	keyRepo.Add(key)

	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("user@example.com"))
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestCreateExternalUser_DuplicateEmailPreCheck(t *testing.T) {
	keyRepo, _, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 5, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("dup@example.com"))
	require.NoError(t, err)

	// Second attempt with a different key: rejected before any reservation
	key2 := newTestKey(models.KeyStatusActive, 5, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key2)

	_, err = ps.CreateExternalUser(context.Background(), key2.KeyValue, validRequest("dup@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 0, keyRepo.Snapshot(key2.ID).UsersCreated)
}

func TestCreateExternalUser_InsertRaceReleasesQuota(t *testing.T) {
	// The pre-check passes but the insert hits the unique constraint, as
	// happens when two requests race. The reserved unit must come back.
	keyRepo, userRepo, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 5, 2, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	userRepo.EmailExistsFunc = func(ctx context.Context, email string) (bool, error) {
		return false, nil
	}

	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("raced@example.com"))
	require.NoError(t, err)

	// Same email again: pre-check is blinded, the store-level duplicate fires
	_, err = ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("raced@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// Counter restored to its pre-attempt value
	assert.Equal(t, 3, keyRepo.Snapshot(key.ID).UsersCreated)
	assert.Equal(t, 1, keyRepo.Calls["ReleaseQuota"])
}

func TestCreateExternalUser_PersistFailureReleasesQuota(t *testing.T) {
	keyRepo, userRepo, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, 5, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	userRepo.CreateFunc = func(ctx context.Context, user *models.ExternalUser) error {
		return fmt.Errorf("connection reset")
	}

	_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, validRequest("user@example.com"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)

	assert.Equal(t, 0, keyRepo.Snapshot(key.ID).UsersCreated)
}

func TestCreateExternalUser_ConcurrentReservations(t *testing.T) {
	// K concurrent attempts against R remaining units: exactly R succeed
	// and the counter lands exactly at the limit.
	const workers = 8
	const remaining = 3

	keyRepo, _, ps := newProvisionFixture()
	key := newTestKey(models.KeyStatusActive, remaining, 0, time.Now().Add(time.Hour))
	keyRepo.Add(key)

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validRequest(fmt.Sprintf("user%d@example.com", i))
			_, err := ps.CreateExternalUser(context.Background(), key.KeyValue, req)
			results[i] = err
		}(i)
	}
	wg.Wait()

	var created, exhausted int
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case assert.ErrorIs(t, err, ErrQuotaExhausted):
			exhausted++
		}
	}

	assert.Equal(t, remaining, created)
	assert.Equal(t, workers-remaining, exhausted)
	assert.Equal(t, remaining, keyRepo.Snapshot(key.ID).UsersCreated)

	users, err := ps.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, remaining)
}
