package models

import (
	"time"
)

// ThreatRecord is one detected threat event kept for reporting: the metadata
// the detector observed plus the action that was taken and the policy (if
// any) that decided it. Records are append-only and aged out by the
// housekeeping cleanup, independent of policy lifecycle.
type ThreatRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	DetectedAt time.Time `json:"detected_at" gorm:"index"`
	URL        string    `json:"url,omitempty" gorm:"type:text"`
	Filename   string    `json:"filename,omitempty"`
	FileHash   string    `json:"file_hash,omitempty"`
	MIMEType   string    `json:"mime_type,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	RuleName   string    `json:"rule_name,omitempty" gorm:"index"`
	Severity   string    `json:"severity,omitempty"`
	// ActionTaken is the outcome applied to the event: a policy verdict or
	// "no_match" when nothing applied.
	ActionTaken string `json:"action_taken"`
	PolicyID    *uint  `json:"policy_id,omitempty" gorm:"index"`
	AlertJSON   string `json:"alert_json,omitempty" gorm:"type:text"`
}
