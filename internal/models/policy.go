package models

import (
	"time"
)

// Action is the verdict a policy applies when it matches. It is a closed
// enum so collaborating subsystems cannot smuggle unvalidated verdict
// strings into storage.
type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
)

// Valid reports whether the action is one of the known verdicts.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionBlock:
		return true
	}
	return false
}

// Field size limits enforced by the validator before any row is written.
const (
	MaxRuleNameLen   = 256
	MaxURLPatternLen = 2048
	MaxMIMETypeLen   = 256
	MaxTextFieldLen  = 256
)

// Policy stores a single trust/block decision so that later downloads,
// submissions and navigations can be matched against it. URL patterns use
// SQL LIKE semantics with '*' as an alias for '%'; literal '%' and '_' are
// escaped with '\'.
type Policy struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	UUID        string `json:"uuid" gorm:"uniqueIndex"`
	RuleName    string `json:"rule_name" gorm:"index;not null"`
	URLPattern  string `json:"url_pattern,omitempty" gorm:"index;type:text"`
	FileHash    string `json:"file_hash,omitempty" gorm:"index"` // lowercase hex
	MIMEType    string `json:"mime_type,omitempty"`
	Action      Action `json:"action"`
	Enforcement string `json:"enforcement_action,omitempty"`
	CreatedBy   string `json:"created_by"` // user decision, automated rule, import

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" gorm:"index"`
	HitCount  int64      `json:"hit_count" gorm:"not null;default:0"`
	LastHit   *time.Time `json:"last_hit,omitempty"`
}

// Expired reports whether the policy is past its expiry at the given instant.
// Policies with no expiry never expire.
func (p *Policy) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

// PolicyFilter narrows ListPolicies results. Zero values mean "no constraint".
type PolicyFilter struct {
	Action         Action `json:"action,omitempty" form:"action"`
	CreatedBy      string `json:"created_by,omitempty" form:"created_by"`
	RuleNameLike   string `json:"rule_name_like,omitempty" form:"rule_name_like"`
	IncludeExpired bool   `json:"include_expired,omitempty" form:"include_expired"`
	Limit          int    `json:"limit,omitempty" form:"limit"`
	Offset         int    `json:"offset,omitempty" form:"offset"`
}
