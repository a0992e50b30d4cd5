package services

import (
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/models"
)

// AuditService is the read-side surface over the append-only audit log,
// consumed by external reporting/administration tooling. Nothing here
// mutates or deletes entries.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService returns an AuditService using the provided DB.
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditFilter narrows List results. Zero values mean "no constraint".
type AuditFilter struct {
	PolicyID uint   `json:"policy_id,omitempty" form:"policy_id"`
	Action   string `json:"action,omitempty" form:"action"`
	Limit    int    `json:"limit,omitempty" form:"limit"`
	Offset   int    `json:"offset,omitempty" form:"offset"`
}

// List returns audit entries, newest first.
func (s *AuditService) List(filter AuditFilter) ([]models.AuditEntry, error) {
	q := s.db.Order("created_at desc, id desc")

	if filter.PolicyID != 0 {
		q = q.Where("policy_id = ?", filter.PolicyID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var res []models.AuditEntry
	if err := q.Find(&res).Error; err != nil {
		return nil, classifyStorageError(err)
	}
	return res, nil
}
