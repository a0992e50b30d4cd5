package services

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/logger"
	"github.com/policygraph/policygraph/internal/metrics"
	"github.com/policygraph/policygraph/internal/models"
)

// sweeperActor is the audit actor recorded for sweeper deletions.
const sweeperActor = "expiration-sweeper"

// SweeperService removes policies whose expiry has passed. Matching never
// depends on it; the matcher filters expired rows itself. Sweeping just
// keeps the table small and the audit trail explicit about removals.
type SweeperService struct {
	db   *gorm.DB
	Cron *cron.Cron
}

// NewSweeperService returns a sweeper scheduled on the given cron spec
// (e.g. "@every 1h"). Call Start to begin background sweeps; Sweep can
// always be invoked directly.
func NewSweeperService(db *gorm.DB, schedule string) (*SweeperService, error) {
	s := &SweeperService{db: db, Cron: cron.New()}

	if _, err := s.Cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(); err != nil {
			logger.Log().WithError(err).Error("scheduled sweep failed")
		}
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins the background schedule.
func (s *SweeperService) Start() {
	s.Cron.Start()
}

// Stop halts the background schedule. Running sweeps finish.
func (s *SweeperService) Stop() {
	s.Cron.Stop()
}

// Sweep deletes every policy with a set expiry in the past and returns the
// count removed. Policies without an expiry, or expiring in the future, are
// never touched. Each removal is audited in the same transaction as the
// delete.
func (s *SweeperService) Sweep() (int, error) {
	now := time.Now()
	removed := 0

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var expired []models.Policy
		if err := tx.Where("expires_at IS NOT NULL AND expires_at < ?", now).
			Find(&expired).Error; err != nil {
			return err
		}

		for i := range expired {
			p := &expired[i]
			if err := tx.Delete(&models.Policy{}, p.ID).Error; err != nil {
				return err
			}
			if err := appendAudit(tx, p.ID, sweeperActor, models.AuditActionSweep, p, nil); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, classifyStorageError(err)
	}

	if removed > 0 {
		metrics.AddPoliciesSwept(removed)
		logger.WithFields(map[string]interface{}{"removed": removed}).Info("swept expired policies")
	}
	return removed, nil
}
