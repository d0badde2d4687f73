package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/usergate/usergate/src/models"
	"github.com/usergate/usergate/src/repositories/mock"
	"github.com/usergate/usergate/src/services"
)

// Test helpers for handler tests

// provisionFixture wires a provision service over in-memory repositories
type provisionFixture struct {
	keyRepo  *mock.KeyRepository
	userRepo *mock.UserRepository
	handler  *ExternalHandler
}

func newProvisionFixture() *provisionFixture {
	keyRepo := mock.NewKeyRepository()
	userRepo := mock.NewUserRepository()
	ps := services.NewProvisionService(services.NewKeyService(keyRepo), userRepo)
	return &provisionFixture{
		keyRepo:  keyRepo,
		userRepo: userRepo,
		handler:  NewExternalHandler(ps),
	}
}

// addKey seeds an admin key and returns it
func (f *provisionFixture) addKey(status models.KeyStatus, limit, used int, expiresAt time.Time) *models.AdminKey {
	now := time.Now()
	key := &models.AdminKey{
		ID:                uuid.New(),
		KeyValue:          "ak_" + uuid.New().String(),
		UserCreationLimit: limit,
		UsersCreated:      used,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         expiresAt,
	}
	f.keyRepo.Add(key)
	return key
}

// postCreateUser performs a create-user request against the handler
func (f *provisionFixture) postCreateUser(t *testing.T, adminKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/external/users", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		c.Request.Header.Set(AdminKeyHeader, adminKey)
	}

	f.handler.HandleCreateUser(c)
	return w
}

// assertStatusCode checks if response status code matches expected
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expectedCode int) {
	t.Helper()
	if w.Code != expectedCode {
		t.Errorf("expected status %d, got %d: %s", expectedCode, w.Code, w.Body.String())
	}
}

// assertJSONError checks if response contains expected error message
func assertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedError string) {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["error"] != expectedError {
		t.Errorf("expected error '%s', got '%v'", expectedError, response["error"])
	}
}
