package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/metrics"
	"github.com/policygraph/policygraph/internal/models"
)

// exportFormatVersion identifies the envelope layout. Import refuses
// versions it does not know rather than guessing.
const exportFormatVersion = 1

// importActor is the audit actor recorded for imported policies.
const importActor = "import"

// ExportEnvelope is the portable serialization of the full policy set,
// optionally with audit history, used for backups and templates.
type ExportEnvelope struct {
	FormatVersion int                 `json:"format_version"`
	ExportedAt    time.Time           `json:"exported_at"`
	Policies      []models.Policy     `json:"policies"`
	Audit         []models.AuditEntry `json:"audit,omitempty"`
}

// ImportRecordError reports one rejected record during a batch import.
type ImportRecordError struct {
	RecordIndex int    `json:"record_index"`
	Reason      string `json:"reason"`
}

// ImportSummary reports the outcome of a batch import. Rejected records
// never abort the batch; accepted ones are committed regardless.
type ImportSummary struct {
	Accepted int                 `json:"accepted"`
	Rejected int                 `json:"rejected"`
	Errors   []ImportRecordError `json:"errors,omitempty"`
}

// ExportService serializes the policy set to a portable JSON blob and loads
// such blobs back, validating every record exactly as Create would.
type ExportService struct {
	db       *gorm.DB
	policies *PolicyService
}

// NewExportService returns an ExportService using the provided DB.
func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{db: db, policies: NewPolicyService(db)}
}

// Export serializes all policies, expired ones included so a backup loses
// nothing. With includeAudit the full mutation history rides along.
func (s *ExportService) Export(includeAudit bool) ([]byte, error) {
	env := ExportEnvelope{
		FormatVersion: exportFormatVersion,
		ExportedAt:    time.Now(),
	}

	if err := s.db.Order("created_at desc, id desc").Find(&env.Policies).Error; err != nil {
		return nil, classifyStorageError(err)
	}
	if includeAudit {
		if err := s.db.Order("created_at asc, id asc").Find(&env.Audit).Error; err != nil {
			return nil, classifyStorageError(err)
		}
	}

	return json.MarshalIndent(env, "", "  ")
}

// Import loads an export blob. Each record is validated independently
// through the same gate as Create; a bad record is reported in the summary
// and skipped, never aborting the rest. Imported policies get fresh ids and
// UUIDs but keep their original timestamps.
func (s *ExportService) Import(blob []byte) (*ImportSummary, error) {
	var env ExportEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("parse import blob: %w", err)
	}
	if env.FormatVersion != exportFormatVersion {
		return nil, fmt.Errorf("unsupported export format version %d", env.FormatVersion)
	}

	summary := &ImportSummary{}
	for i := range env.Policies {
		record := env.Policies[i]
		record.ID = 0
		record.UUID = ""
		record.HitCount = 0
		record.LastHit = nil

		if _, err := s.policies.createAudited(&record, importActor, models.AuditActionImport); err != nil {
			summary.Rejected++
			summary.Errors = append(summary.Errors, ImportRecordError{
				RecordIndex: i,
				Reason:      err.Error(),
			})
			metrics.IncImportRejected()
			continue
		}
		summary.Accepted++
		metrics.IncImportAccepted()
	}

	return summary, nil
}
