package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/services"
)

// ThreatHandler exposes the threat history kept by the matcher to the
// reporting tool, plus the retention cleanup.
type ThreatHandler struct {
	history *services.ThreatHistoryService
}

// NewThreatHandler creates a new threat history handler.
func NewThreatHandler(db *gorm.DB) *ThreatHandler {
	return &ThreatHandler{history: services.NewThreatHistoryService(db)}
}

// RegisterRoutes registers threat history routes.
func (h *ThreatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/threats", h.List)
	router.POST("/threats/cleanup", h.Cleanup)
}

// List retrieves threat records newest first. ?rule= narrows to one detection
// rule, ?since= (RFC 3339) to a window, ?limit= caps the page.
func (h *ThreatHandler) List(c *gin.Context) {
	if rule := c.Query("rule"); rule != "" {
		records, err := h.history.ByRule(rule)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		since = &parsed
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	records, err := h.history.History(since, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// Cleanup removes records older than ?days= (default retention) and reports
// how many went.
func (h *ThreatHandler) Cleanup(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))

	removed, err := h.history.CleanupOld(days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
