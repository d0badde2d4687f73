package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/usergate/usergate/src/middleware"
	"github.com/usergate/usergate/src/services"
)

// AdminHandler handles the operator surface: login and key lifecycle
type AdminHandler struct {
	keyService       *services.KeyService
	adminService     *services.AdminService
	provisionService *services.ProvisionService
	defaultKeyTTL    time.Duration
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(keyService *services.KeyService, adminService *services.AdminService, provisionService *services.ProvisionService, defaultKeyTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		keyService:       keyService,
		adminService:     adminService,
		provisionService: provisionService,
		defaultKeyTTL:    defaultKeyTTL,
	}
}

// AdminLoginRequest represents the request body for operator login
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleAdminLogin authenticates an operator and returns a JWT token
func (ah *AdminHandler) HandleAdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	admin, err := ah.adminService.AuthenticateAdmin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := middleware.GenerateAdminToken(admin.ID, admin.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(24 * time.Hour).Unix(),
	})
}

// CreateKeyRequest represents the request body for key creation
type CreateKeyRequest struct {
	UserCreationLimit int    `json:"user_creation_limit"`
	Description       string `json:"description"`
	ExpiresInDays     int    `json:"expires_in_days"`
}

// HandleCreateKey mints a new admin key. The key value appears only in this
// response; operators are expected to store it on receipt.
func (ah *AdminHandler) HandleCreateKey(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ttl := ah.defaultKeyTTL
	if req.ExpiresInDays > 0 {
		ttl = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	key, err := ah.keyService.CreateKey(c.Request.Context(), req.UserCreationLimit, req.Description, time.Now().Add(ttl))
	if err != nil {
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create key"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": key})
}

// HandleListKeys lists all admin keys
func (ah *AdminHandler) HandleListKeys(c *gin.Context) {
	keys, err := ah.keyService.ListKeys(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list keys"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// HandleRevokeKey revokes an admin key by ID
func (ah *AdminHandler) HandleRevokeKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key ID"})
		return
	}

	if err := ah.keyService.RevokeKey(c.Request.Context(), keyID); err != nil {
		if errors.Is(err, services.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke key"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// ExtendKeyRequest represents the request body for extending a key
type ExtendKeyRequest struct {
	UserCreationLimit int `json:"user_creation_limit"`
	ExpiresInDays     int `json:"expires_in_days"`
}

// HandleExtendKey raises a key's quota and pushes its expiry
func (ah *AdminHandler) HandleExtendKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key ID"})
		return
	}

	var req ExtendKeyRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ExpiresInDays <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expires_in_days must be positive"})
		return
	}

	expiresAt := time.Now().Add(time.Duration(req.ExpiresInDays) * 24 * time.Hour)
	key, err := ah.keyService.ExtendKey(c.Request.Context(), keyID, req.UserCreationLimit, expiresAt)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrKeyNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		case errors.Is(err, services.ErrKeyRevoked):
			c.JSON(http.StatusConflict, gin.H{"error": "key is revoked"})
		case services.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to extend key"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key})
}

// HandleListUsers lists externally created users with their authorizing key
func (ah *AdminHandler) HandleListUsers(c *gin.Context) {
	users, err := ah.provisionService.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}
