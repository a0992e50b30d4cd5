package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/services"
)

// maxImportSize bounds the accepted import blob. Policy sets are small;
// anything larger is either corrupt or hostile.
const maxImportSize = 32 << 20

// BackupHandler serves export blobs for backup/templates and accepts them
// back for restore.
type BackupHandler struct {
	exporter *services.ExportService
	notifier *services.NotificationService
}

// NewBackupHandler creates a new backup handler.
func NewBackupHandler(db *gorm.DB, notifier *services.NotificationService) *BackupHandler {
	return &BackupHandler{
		exporter: services.NewExportService(db),
		notifier: notifier,
	}
}

// RegisterRoutes registers export/import routes.
func (h *BackupHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/export", h.Export)
	router.POST("/import", h.Import)
}

// Export streams the full policy set as a downloadable JSON blob. Pass
// ?include_audit=true to embed the mutation history.
func (h *BackupHandler) Export(c *gin.Context) {
	includeAudit := c.Query("include_audit") == "true"

	blob, err := h.exporter.Export(includeAudit)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := "policygraph-export-" + time.Now().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", blob)
}

// Import loads an export blob. Each record is validated independently; the
// summary reports what was rejected and why without aborting the batch.
func (h *BackupHandler) Import(c *gin.Context) {
	blob, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read import body: " + err.Error()})
		return
	}

	summary, err := h.exporter.Import(blob)
	if err != nil {
		// Whole-envelope failures (bad JSON, unknown format version) are
		// caller errors; per-record problems come back in the summary.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyLossyImport(summary)
	}
	c.JSON(http.StatusOK, summary)
}
