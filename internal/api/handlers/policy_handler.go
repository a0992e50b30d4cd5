package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/api/middleware"
	"github.com/policygraph/policygraph/internal/logger"
	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/services"
)

// PolicyHandler exposes policy CRUD and threat matching to the admin API.
type PolicyHandler struct {
	policies *services.PolicyService
	matcher  *services.MatcherService
	history  *services.ThreatHistoryService
	notifier *services.NotificationService
}

// NewPolicyHandler creates a new policy handler.
func NewPolicyHandler(db *gorm.DB, notifier *services.NotificationService) *PolicyHandler {
	return &PolicyHandler{
		policies: services.NewPolicyService(db),
		matcher:  services.NewMatcherService(db),
		history:  services.NewThreatHistoryService(db),
		notifier: notifier,
	}
}

// RegisterRoutes registers policy routes.
func (h *PolicyHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/policies", h.List)
	router.POST("/policies", h.Create)
	router.GET("/policies/:id", h.Get)
	router.PUT("/policies/:id", h.Update)
	router.DELETE("/policies/:id", h.Delete)
	router.POST("/policies/match", h.Match)
}

// List retrieves policies matching the query filter.
func (h *PolicyHandler) List(c *gin.Context) {
	var filter models.PolicyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policies, err := h.policies.List(filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, policies)
}

// Create stores a new validated policy.
func (h *PolicyHandler) Create(c *gin.Context) {
	var policy models.Policy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if policy.CreatedBy == "" {
		policy.CreatedBy = middleware.Actor(c)
	}

	if _, err := h.policies.Create(&policy); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, policy)
}

// Get retrieves a single policy by id.
func (h *PolicyHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	policy, err := h.policies.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, policy)
}

// Update atomically replaces a policy's content.
func (h *PolicyHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var policy models.Policy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.policies.Update(id, &policy, middleware.Actor(c)); err != nil {
		h.fail(c, err)
		return
	}

	updated, err := h.policies.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a policy. The audit log keeps its history.
func (h *PolicyHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.policies.Delete(id, middleware.Actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Match evaluates threat metadata and returns the winning policy, if any.
func (h *PolicyHandler) Match(c *gin.Context) {
	var threat models.ThreatMetadata
	if err := c.ShouldBindJSON(&threat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy, err := h.matcher.Match(&threat)
	if err != nil {
		h.fail(c, err)
		return
	}
	if policy == nil {
		h.recordThreat(&threat, "no_match", nil)
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}
	h.recordThreat(&threat, string(policy.Action), &policy.ID)
	c.JSON(http.StatusOK, gin.H{"matched": true, "policy": policy})
}

// recordThreat appends the evaluation to threat history best-effort; a
// reporting failure must not turn a successful match into an error.
func (h *PolicyHandler) recordThreat(threat *models.ThreatMetadata, actionTaken string, policyID *uint) {
	if err := h.history.Record(threat, actionTaken, policyID, ""); err != nil {
		logger.Log().WithError(err).Warn("failed to record threat history")
	}
}

// fail responds with the mapped status and pushes a corruption alert when
// the engine reports an integrity failure.
func (h *PolicyHandler) fail(c *gin.Context, err error) {
	if h.notifier != nil && errors.Is(err, services.ErrStoreCorrupt) {
		h.notifier.NotifyCorruption(err)
	}
	respondError(c, err)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy id"})
		return 0, false
	}
	return uint(id), true
}
