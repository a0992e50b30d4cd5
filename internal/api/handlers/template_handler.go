package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/services"
)

// TemplateHandler exposes policy template CRUD, instantiation and
// template-set export/import to the admin API.
type TemplateHandler struct {
	templates *services.TemplateService
	policies  *services.PolicyService
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{
		templates: services.NewTemplateService(db),
		policies:  services.NewPolicyService(db),
	}
}

// RegisterRoutes registers template routes.
func (h *TemplateHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/templates", h.List)
	router.POST("/templates", h.Create)
	router.GET("/templates/export", h.Export)
	router.POST("/templates/import", h.Import)
	router.GET("/templates/:id", h.Get)
	router.PUT("/templates/:id", h.Update)
	router.DELETE("/templates/:id", h.Delete)
	router.POST("/templates/:id/instantiate", h.Instantiate)
}

// List retrieves templates, optionally filtered by ?category=.
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// Create stores a new template.
func (h *TemplateHandler) Create(c *gin.Context) {
	var tmpl models.PolicyTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Built-in status is reserved for seeded templates.
	tmpl.IsBuiltin = false

	if _, err := h.templates.Create(&tmpl); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

// Get retrieves a single template by id.
func (h *TemplateHandler) Get(c *gin.Context) {
	id, ok := parseTemplateID(c)
	if !ok {
		return
	}

	tmpl, err := h.templates.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// Update replaces a template's content.
func (h *TemplateHandler) Update(c *gin.Context) {
	id, ok := parseTemplateID(c)
	if !ok {
		return
	}

	var tmpl models.PolicyTemplate
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.templates.Update(id, &tmpl); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.templates.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a template. Built-in templates are refused.
func (h *TemplateHandler) Delete(c *gin.Context) {
	id, ok := parseTemplateID(c)
	if !ok {
		return
	}

	if err := h.templates.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// instantiateRequest carries the variable substitutions for one template
// instantiation. With persist set the resulting policy is stored immediately.
type instantiateRequest struct {
	Variables map[string]string `json:"variables"`
	Persist   bool              `json:"persist"`
}

// Instantiate builds a policy from the template. The instantiated document
// passes through full policy validation, so hostile variable values come back
// as 400s. By default the policy is returned for review; persist stores it.
func (h *TemplateHandler) Instantiate(c *gin.Context) {
	id, ok := parseTemplateID(c)
	if !ok {
		return
	}

	var req instantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	policy, err := h.templates.Instantiate(id, req.Variables)
	if err != nil {
		respondError(c, err)
		return
	}

	if !req.Persist {
		c.JSON(http.StatusOK, gin.H{"persisted": false, "policy": policy})
		return
	}

	if _, err := h.policies.Create(policy); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"persisted": true, "policy": policy})
}

// Export streams the template set as a downloadable JSON blob.
func (h *TemplateHandler) Export(c *gin.Context) {
	blob, err := h.templates.ExportJSON()
	if err != nil {
		respondError(c, err)
		return
	}

	filename := "policygraph-templates-" + time.Now().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", blob)
}

// Import loads a template export blob, matching records by name.
func (h *TemplateHandler) Import(c *gin.Context) {
	blob, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read import body: " + err.Error()})
		return
	}

	summary, err := h.templates.ImportJSON(blob)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseTemplateID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return 0, false
	}
	return uint(id), true
}
