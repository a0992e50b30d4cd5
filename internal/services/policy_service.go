package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/metrics"
	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/validator"
)

// PolicyService owns durable CRUD over validated policies. Every mutation
// runs inside one transaction that also appends the matching audit entry, so
// a failure at any step leaves both tables untouched.
type PolicyService struct {
	db *gorm.DB
}

// NewPolicyService returns a PolicyService using the provided DB.
func NewPolicyService(db *gorm.DB) *PolicyService {
	return &PolicyService{db: db}
}

// Create validates and persists a new policy, returning the assigned id.
// The policy's CreatedBy field doubles as the audit actor.
func (s *PolicyService) Create(p *models.Policy) (uint, error) {
	return s.createAudited(p, p.CreatedBy, models.AuditActionCreate)
}

// createAudited is shared by Create and the importer, which records a
// different audit action and actor.
func (s *PolicyService) createAudited(p *models.Policy, actor, auditAction string) (uint, error) {
	if err := validator.ValidatePolicy(p); err != nil {
		metrics.IncPolicyRejected()
		return 0, err
	}

	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	// Hashes compare byte-for-byte in the matcher; canonicalize case once
	// at the boundary rather than on every lookup.
	p.FileHash = strings.ToLower(p.FileHash)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return appendAudit(tx, p.ID, actor, auditAction, nil, p)
	})
	if err != nil {
		return 0, classifyStorageError(err)
	}

	metrics.IncPolicyCreated()
	return p.ID, nil
}

// Get retrieves a policy by id. Expired policies are still retrievable
// until swept; only the matcher filters them.
func (s *PolicyService) Get(id uint) (*models.Policy, error) {
	var p models.Policy
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPolicyNotFound
		}
		return nil, classifyStorageError(err)
	}
	return &p, nil
}

// Update validates newContent and atomically replaces the stored record's
// content. Identity fields (id, uuid, created_at, created_by) and hit
// statistics are preserved from the stored record. On validation failure the
// stored record is left completely untouched.
func (s *PolicyService) Update(id uint, newContent *models.Policy, actor string) error {
	if err := validator.ValidatePolicy(newContent); err != nil {
		metrics.IncPolicyRejected()
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Policy
		if err := tx.First(&existing, id).Error; err != nil {
			return err
		}

		updated := existing
		updated.RuleName = newContent.RuleName
		updated.URLPattern = newContent.URLPattern
		updated.FileHash = strings.ToLower(newContent.FileHash)
		updated.MIMEType = newContent.MIMEType
		updated.Action = newContent.Action
		updated.Enforcement = newContent.Enforcement
		updated.ExpiresAt = newContent.ExpiresAt

		if err := tx.Save(&updated).Error; err != nil {
			return err
		}
		return appendAudit(tx, id, actor, models.AuditActionUpdate, &existing, &updated)
	})
	return classifyStorageError(err)
}

// Delete removes a policy. The audit trail keeps the deleted content.
func (s *PolicyService) Delete(id uint, actor string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Policy
		if err := tx.First(&existing, id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Policy{}, id).Error; err != nil {
			return err
		}
		return appendAudit(tx, id, actor, models.AuditActionDelete, &existing, nil)
	})
	return classifyStorageError(err)
}

// List returns policies matching the filter, newest first. Ties on
// created_at break by id so pagination is deterministic.
func (s *PolicyService) List(filter models.PolicyFilter) ([]models.Policy, error) {
	q := s.db.Order("created_at desc, id desc")

	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.RuleNameLike != "" {
		// The fragment is bound, and its wildcards are escaped so callers
		// get substring search rather than raw LIKE patterns.
		q = q.Where("rule_name LIKE ? ESCAPE '\\'", "%"+EscapeLike(filter.RuleNameLike)+"%")
	}
	if !filter.IncludeExpired {
		q = q.Where("expires_at IS NULL OR expires_at > ?", time.Now())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var res []models.Policy
	if err := q.Find(&res).Error; err != nil {
		return nil, classifyStorageError(err)
	}
	return res, nil
}

// appendAudit writes one audit row inside the caller's transaction. Old and
// new sides are serialized as JSON; nil means that side does not exist.
func appendAudit(tx *gorm.DB, policyID uint, actor, action string, oldValue, newValue *models.Policy) error {
	entry := models.AuditEntry{
		UUID:      uuid.NewString(),
		PolicyID:  policyID,
		Actor:     actor,
		Action:    action,
		CreatedAt: time.Now(),
	}

	if oldValue != nil {
		b, err := json.Marshal(oldValue)
		if err != nil {
			return fmt.Errorf("serialize audit old value: %w", err)
		}
		entry.OldValue = string(b)
	}
	if newValue != nil {
		b, err := json.Marshal(newValue)
		if err != nil {
			return fmt.Errorf("serialize audit new value: %w", err)
		}
		entry.NewValue = string(b)
	}

	return tx.Create(&entry).Error
}
