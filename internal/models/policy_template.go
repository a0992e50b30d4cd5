package models

import (
	"time"
)

// PolicyTemplate is a reusable, named recipe for a policy. The template body
// is a JSON policy document whose values may contain {variable} placeholders
// substituted at instantiation time. Built-in templates are seeded on startup
// and protected from deletion.
type PolicyTemplate struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"uniqueIndex;not null"`
	Description  string     `json:"description"`
	Category     string     `json:"category" gorm:"index"`
	TemplateJSON string     `json:"template_json" gorm:"type:text"`
	IsBuiltin    bool       `json:"is_builtin"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
