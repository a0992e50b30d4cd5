package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policygraph/policygraph/internal/models"
)

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "policygraph.db")

	db, err := Open(dbPath)
	require.NoError(t, err)

	_, err = Migrate(db)
	require.NoError(t, err)

	assert.FileExists(t, dbPath)
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "policygraph.db")
	db, err := Open(dbPath)
	require.NoError(t, err)

	v1, err := Migrate(db)
	require.NoError(t, err)
	v2, err := Migrate(db)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Greater(t, v1, 0)

	var count int64
	require.NoError(t, db.Model(&models.SchemaMigration{}).Count(&count).Error)
	assert.Equal(t, int64(len(migrations)), count)
}

func TestMigrate_PreservesExistingData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "policygraph.db")
	db, err := Open(dbPath)
	require.NoError(t, err)

	_, err = Migrate(db)
	require.NoError(t, err)

	policy := models.Policy{
		UUID:      "keep-me",
		RuleName:  "survives migration",
		Action:    models.ActionBlock,
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(&policy).Error)

	// Reopen and migrate again, as a restart would.
	db2, err := Open(dbPath)
	require.NoError(t, err)
	_, err = Migrate(db2)
	require.NoError(t, err)

	var got models.Policy
	require.NoError(t, db2.Where("uuid = ?", "keep-me").First(&got).Error)
	assert.Equal(t, "survives migration", got.RuleName)
}
