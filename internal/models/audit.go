package models

import (
	"time"
)

// Audit actions recorded for policy mutations.
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionImport = "import"
	AuditActionSweep  = "sweep"
)

// AuditEntry records one policy mutation: who changed what, when, and the
// record content before and after. Entries are append-only; history survives
// deletion of the policy itself.
type AuditEntry struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UUID     string `json:"uuid" gorm:"uniqueIndex"`
	PolicyID uint   `json:"policy_id" gorm:"index"`
	Actor    string `json:"actor"`
	Action   string `json:"action" gorm:"index"`
	// OldValue and NewValue hold the JSON-serialized policy before and
	// after the mutation; empty for the side that does not exist.
	OldValue  string    `json:"old_value,omitempty" gorm:"type:text"`
	NewValue  string    `json:"new_value,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
