package handlers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/models"
)

// openTestDB creates a SQLite in-memory DB unique per test and applies
// a busy timeout and WAL journal mode to reduce SQLITE locking during parallel tests.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsnName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsnName)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Policy{},
		&models.AuditEntry{},
		&models.User{},
		&models.PolicyTemplate{},
		&models.ThreatRecord{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// newTestRouter returns a bare router with handler routes mounted without
// auth, for exercising handler behavior in isolation.
func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)

	router := gin.New()
	group := router.Group("/api/v1")
	NewPolicyHandler(db, nil).RegisterRoutes(group)
	NewAuditHandler(db).RegisterRoutes(group)
	NewBackupHandler(db, nil).RegisterRoutes(group)
	NewTemplateHandler(db).RegisterRoutes(group)
	NewThreatHandler(db).RegisterRoutes(group)
	return router, db
}
