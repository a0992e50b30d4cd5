package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policygraph/policygraph/internal/services"
	"github.com/policygraph/policygraph/internal/validator"
)

// respondError maps the store's error taxonomy onto HTTP statuses. Validation
// failures are the caller's to fix; busy means retry; corruption is surfaced
// so the administrator can restore from an export.
func respondError(c *gin.Context, err error) {
	var fe *validator.FieldError
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusBadRequest, gin.H{"error": fe.Error(), "field": fe.Field})
	case errors.Is(err, services.ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "policy not found"})
	case errors.Is(err, services.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
	case errors.Is(err, services.ErrBuiltinTemplate):
		c.JSON(http.StatusForbidden, gin.H{"error": "built-in templates cannot be deleted"})
	case errors.Is(err, services.ErrStoreBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store busy, retry"})
	case errors.Is(err, services.ErrStoreCorrupt):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store corrupt, restore from backup"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
