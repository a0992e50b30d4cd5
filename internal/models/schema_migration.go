package models

import (
	"time"
)

// SchemaMigration records an applied schema version so migrations stay
// forward-only and idempotent across restarts.
type SchemaMigration struct {
	Version   int       `json:"version" gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time `json:"applied_at"`
}
