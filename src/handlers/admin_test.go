package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/usergate/usergate/src/middleware"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories/mock"
	"github.com/usergate/usergate/src/services"
	"golang.org/x/crypto/bcrypt"
)

func newAdminFixture() (*mock.KeyRepository, *mock.AdminRepository, *AdminHandler) {
	keyRepo := mock.NewKeyRepository()
	adminRepo := mock.NewAdminRepository()
	keyService := services.NewKeyService(keyRepo)
	adminService := services.NewAdminService(adminRepo)
	provisionService := services.NewProvisionService(keyService, mock.NewUserRepository())
	handler := NewAdminHandler(keyService, adminService, provisionService, 90*24*time.Hour)
	return keyRepo, adminRepo, handler
}

func postJSON(t *testing.T, handlerFunc gin.HandlerFunc, path string, body interface{}, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params

	handlerFunc(c)
	return w
}

func TestHandleAdminLogin_Success(t *testing.T) {
	originalSecret := middleware.JWTSecret
	if err := middleware.SetJWTSecret("test-secret-for-unit-tests-32ch!"); err != nil {
		t.Fatalf("SetJWTSecret failed: %v", err)
	}
	defer func() { middleware.JWTSecret = originalSecret }()

	_, adminRepo, handler := newAdminFixture()

	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	adminRepo.GetByUsernameFunc = func(ctx context.Context, username string) (*models.AdminUser, error) {
		return &models.AdminUser{ID: uuid.New(), Username: username, PasswordHash: string(hash), IsActive: true}, nil
	}

	w := postJSON(t, handler.HandleAdminLogin, "/admin/login",
		AdminLoginRequest{Username: "operator", Password: "supersecret"}, nil)
	assertStatusCode(t, w, http.StatusOK)

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	token, _ := response["token"].(string)
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := middleware.ValidateAdminToken(token)
	if err != nil {
		t.Fatalf("issued token did not validate: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("expected username operator, got %s", claims.Username)
	}
}

func TestHandleAdminLogin_BadCredentials(t *testing.T) {
	_, _, handler := newAdminFixture()

	w := postJSON(t, handler.HandleAdminLogin, "/admin/login",
		AdminLoginRequest{Username: "nobody", Password: "whatever"}, nil)
	assertStatusCode(t, w, http.StatusUnauthorized)
	assertJSONError(t, w, "invalid username or password")
}

func TestHandleCreateKey_Success(t *testing.T) {
	keyRepo, _, handler := newAdminFixture()

	w := postJSON(t, handler.HandleCreateKey, "/admin/keys",
		CreateKeyRequest{UserCreationLimit: 10, Description: "partner", ExpiresInDays: 30}, nil)
	assertStatusCode(t, w, http.StatusCreated)

	var response struct {
		Key models.AdminKey `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Key.KeyValue == "" {
		t.Error("expected the minted key value in the response")
	}
	if response.Key.UserCreationLimit != 10 {
		t.Errorf("expected limit 10, got %d", response.Key.UserCreationLimit)
	}
	if keyRepo.Calls["Create"] != 1 {
		t.Errorf("expected one Create call, got %d", keyRepo.Calls["Create"])
	}
}

func TestHandleCreateKey_NegativeLimit(t *testing.T) {
	_, _, handler := newAdminFixture()

	w := postJSON(t, handler.HandleCreateKey, "/admin/keys",
		CreateKeyRequest{UserCreationLimit: -5, ExpiresInDays: 30}, nil)
	assertStatusCode(t, w, http.StatusBadRequest)
}

func TestHandleRevokeKey_NotFound(t *testing.T) {
	_, _, handler := newAdminFixture()

	w := postJSON(t, handler.HandleRevokeKey, "/admin/keys/x/revoke", nil,
		gin.Params{{Key: "id", Value: uuid.New().String()}})
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestHandleRevokeKey_InvalidID(t *testing.T) {
	_, _, handler := newAdminFixture()

	w := postJSON(t, handler.HandleRevokeKey, "/admin/keys/x/revoke", nil,
		gin.Params{{Key: "id", Value: "not-a-uuid"}})
	assertStatusCode(t, w, http.StatusBadRequest)
}

func TestHandleExtendKey_Success(t *testing.T) {
	keyRepo, _, handler := newAdminFixture()
	key := &models.AdminKey{
		ID:                uuid.New(),
		KeyValue:          "ak_extend",
		UserCreationLimit: 2,
		UsersCreated:      2,
		Status:            models.KeyStatusExpired,
		ExpiresAt:         time.Now().Add(-time.Hour),
	}
	keyRepo.Add(key)

	w := postJSON(t, handler.HandleExtendKey, "/admin/keys/x/extend",
		ExtendKeyRequest{UserCreationLimit: 10, ExpiresInDays: 30},
		gin.Params{{Key: "id", Value: key.ID.String()}})
	assertStatusCode(t, w, http.StatusOK)

	stored := keyRepo.Snapshot(key.ID)
	if stored.Status != models.KeyStatusActive {
		t.Errorf("expected key reactivated, got %s", stored.Status)
	}
	if stored.UserCreationLimit != 10 {
		t.Errorf("expected limit 10, got %d", stored.UserCreationLimit)
	}
}

func TestHandleExtendKey_RevokedConflict(t *testing.T) {
	keyRepo, _, handler := newAdminFixture()
	key := &models.AdminKey{
		ID:        uuid.New(),
		KeyValue:  "ak_revoked",
		Status:    models.KeyStatusRevoked,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	keyRepo.Add(key)

	w := postJSON(t, handler.HandleExtendKey, "/admin/keys/x/extend",
		ExtendKeyRequest{UserCreationLimit: 10, ExpiresInDays: 30},
		gin.Params{{Key: "id", Value: key.ID.String()}})
	assertStatusCode(t, w, http.StatusConflict)
	assertJSONError(t, w, "key is revoked")
}

func TestHandleExtendKey_RequiresExpiry(t *testing.T) {
	_, _, handler := newAdminFixture()

	w := postJSON(t, handler.HandleExtendKey, "/admin/keys/x/extend",
		ExtendKeyRequest{UserCreationLimit: 10},
		gin.Params{{Key: "id", Value: uuid.New().String()}})
	assertStatusCode(t, w, http.StatusBadRequest)
}
