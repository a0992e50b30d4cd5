package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/logger"
	"github.com/policygraph/policygraph/internal/models"
)

// busyTimeout bounds how long a writer waits for the database lock before
// the engine reports SQLITE_BUSY. Callers see that as ErrStoreBusy and are
// expected to retry with backoff.
const busyTimeout = 5000 * time.Millisecond

// Open bootstraps a SQLite database at the provided filesystem path. WAL
// journaling gives the single-writer/multiple-reader discipline the store
// relies on: readers proceed against the last committed snapshot while one
// writer holds the log.
func Open(dbPath string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		dbPath, busyTimeout.Milliseconds())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	// SQLite serializes writers itself; a small pool just avoids goroutines
	// queueing on a single Go-side connection.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// migration is one forward-only schema step. Steps are never edited once
// shipped; new changes append a new version.
type migration struct {
	version int
	apply   func(db *gorm.DB) error
}

var migrations = []migration{
	{
		version: 1,
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&models.Policy{},
				&models.AuditEntry{},
				&models.User{},
			)
		},
	},
	{
		// Policy templates, threat history and per-policy hit counters.
		version: 2,
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&models.Policy{},
				&models.PolicyTemplate{},
				&models.ThreatRecord{},
			)
		},
	},
}

// Migrate brings the schema up to the current version and returns it. It is
// idempotent and safe to call on every startup; already-applied versions are
// skipped. Existing policy and audit rows are never dropped.
func Migrate(db *gorm.DB) (int, error) {
	if err := db.AutoMigrate(&models.SchemaMigration{}); err != nil {
		return 0, fmt.Errorf("migrate schema_migrations: %w", err)
	}

	current := 0
	var last models.SchemaMigration
	if err := db.Order("version desc").First(&last).Error; err == nil {
		current = last.Version
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&models.SchemaMigration{
				Version:   m.version,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return current, fmt.Errorf("apply schema version %d: %w", m.version, err)
		}
		current = m.version
		logger.WithFields(map[string]interface{}{"version": m.version}).Info("applied schema migration")
	}

	return current, nil
}
