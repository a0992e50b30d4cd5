package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/models"
)

// setupTestDB creates a throwaway in-memory store per test so runs stay
// fully isolated.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Policy{},
		&models.AuditEntry{},
		&models.User{},
		&models.PolicyTemplate{},
		&models.ThreatRecord{},
	)
	require.NoError(t, err)

	return db
}

// blockPolicy returns a well-formed policy candidate for tests to mutate.
func blockPolicy(ruleName string) *models.Policy {
	return &models.Policy{
		RuleName:   ruleName,
		URLPattern: "https://evil.example/%",
		FileHash:   "deadbeefcafe0123",
		MIMEType:   "application/x-msdownload",
		Action:     models.ActionBlock,
		CreatedBy:  "user-decision",
	}
}
