package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/usergate/usergate/src/services"
)

// AdminKeyHeader carries the presented admin key on the external path
const AdminKeyHeader = "X-Admin-Key"

// ExternalHandler handles the admin-key-gated user creation endpoint
type ExternalHandler struct {
	provisionService *services.ProvisionService
}

// NewExternalHandler creates a new external handler
func NewExternalHandler(provisionService *services.ProvisionService) *ExternalHandler {
	return &ExternalHandler{provisionService: provisionService}
}

// HandleCreateUser processes POST /api/external/users. Key lookup failures
// collapse to one unauthorized message so callers cannot probe which keys
// exist; quota exhaustion is reported distinctly because the caller holds a
// valid key and needs to know it ran out.
func (eh *ExternalHandler) HandleCreateUser(c *gin.Context) {
	presentedKey := c.GetHeader(AdminKeyHeader)
	if presentedKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing admin key",
		})
		return
	}

	var req services.CreateUserRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	user, err := eh.provisionService.CreateExternalUser(c.Request.Context(), presentedKey, req)
	if err != nil {
		eh.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user": user,
	})
}

// writeError maps service errors onto the response taxonomy
func (eh *ExternalHandler) writeError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": ve.Error(),
			"field": ve.Field,
		})
	case errors.Is(err, services.ErrKeyNotFound),
		errors.Is(err, services.ErrKeyRevoked),
		errors.Is(err, services.ErrKeyExpired):
		// One message for all three; see key enumeration note above
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid admin key",
		})
	case errors.Is(err, services.ErrQuotaExhausted):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "admin key quota exhausted",
		})
	case errors.Is(err, services.ErrDuplicateEmail):
		c.JSON(http.StatusConflict, gin.H{
			"error": "email already in use",
		})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal error",
		})
	}
}
