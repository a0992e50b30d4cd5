package services

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/metrics"
	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/validator"
)

// defaultThreatRetentionDays bounds how long threat records are kept before
// the housekeeping cleanup removes them.
const defaultThreatRetentionDays = 30

// ThreatHistoryService keeps an append-only record of detected threat events
// for reporting. History is independent of policy lifecycle: records survive
// deletion of the policy that decided them.
type ThreatHistoryService struct {
	db *gorm.DB
}

// NewThreatHistoryService returns a ThreatHistoryService using the provided DB.
func NewThreatHistoryService(db *gorm.DB) *ThreatHistoryService {
	return &ThreatHistoryService{db: db}
}

// Record appends one threat event with the action that was taken and the
// policy (if any) that decided it.
func (s *ThreatHistoryService) Record(m *models.ThreatMetadata, actionTaken string, policyID *uint, alertJSON string) error {
	if err := validator.ValidateThreat(m); err != nil {
		return err
	}

	record := models.ThreatRecord{
		DetectedAt:  time.Now(),
		URL:         m.URL,
		Filename:    m.Filename,
		FileHash:    strings.ToLower(m.FileHash),
		MIMEType:    m.MIMEType,
		FileSize:    m.FileSize,
		RuleName:    m.RuleName,
		Severity:    m.Severity,
		ActionTaken: actionTaken,
		PolicyID:    policyID,
		AlertJSON:   alertJSON,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return classifyStorageError(err)
	}

	metrics.IncThreatRecorded()
	return nil
}

// History returns threat records newest first. A nil since returns the full
// history; otherwise only records detected at or after the instant.
func (s *ThreatHistoryService) History(since *time.Time, limit int) ([]models.ThreatRecord, error) {
	q := s.db.Order("detected_at desc, id desc")
	if since != nil {
		q = q.Where("detected_at >= ?", *since)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var res []models.ThreatRecord
	if err := q.Find(&res).Error; err != nil {
		return nil, classifyStorageError(err)
	}
	return res, nil
}

// ByRule returns the records a given detection rule produced, newest first.
func (s *ThreatHistoryService) ByRule(ruleName string) ([]models.ThreatRecord, error) {
	var res []models.ThreatRecord
	err := s.db.Where("rule_name = ?", ruleName).
		Order("detected_at desc, id desc").
		Find(&res).Error
	if err != nil {
		return nil, classifyStorageError(err)
	}
	return res, nil
}

// CleanupOld deletes records older than daysToKeep days and reports how many
// went. Non-positive daysToKeep falls back to the default retention.
func (s *ThreatHistoryService) CleanupOld(daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = defaultThreatRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -daysToKeep)

	res := s.db.Where("detected_at < ?", cutoff).Delete(&models.ThreatRecord{})
	if res.Error != nil {
		return 0, classifyStorageError(res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of retained threat records.
func (s *ThreatHistoryService) Count() (int64, error) {
	var n int64
	if err := s.db.Model(&models.ThreatRecord{}).Count(&n).Error; err != nil {
		return 0, classifyStorageError(err)
	}
	return n, nil
}
