package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/services"
)

// AuditHandler exposes the append-only mutation history to the external
// reporting/administration tool. Read-only by construction; no mutating
// route exists.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{audit: services.NewAuditService(db)}
}

// RegisterRoutes registers audit routes.
func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/audit", h.List)
}

// List retrieves audit entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	var filter services.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.audit.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
