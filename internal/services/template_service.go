package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/models"
	"github.com/policygraph/policygraph/internal/validator"
)

// templateActor is recorded as created_by on policies built from templates.
const templateActor = "template"

// policyDocument is the policy body embedded in a template's JSON. Values may
// contain {variable} placeholders filled in at instantiation.
type policyDocument struct {
	RuleName    string `json:"rule_name"`
	URLPattern  string `json:"url_pattern,omitempty"`
	FileHash    string `json:"file_hash,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
	Action      string `json:"action"`
	Enforcement string `json:"enforcement_action,omitempty"`
}

// builtinTemplates are seeded on startup. They cover the common
// download-protection decisions so an operator can roll out a policy by
// filling in a domain or hash instead of authoring JSON by hand.
var builtinTemplates = []models.PolicyTemplate{
	{
		Name:        "Block Known Malware Hash",
		Description: "Blocks any download whose content hash matches a known malware sample.",
		Category:    "download_protection",
		TemplateJSON: mustTemplateJSON(policyDocument{
			RuleName:    "Known Malware Hash",
			FileHash:    "{file_hash}",
			Action:      string(models.ActionBlock),
			Enforcement: "block_download",
		}),
		IsBuiltin: true,
	},
	{
		Name:        "Block Distribution Domain",
		Description: "Blocks every download from a domain known to distribute malware.",
		Category:    "download_protection",
		TemplateJSON: mustTemplateJSON(policyDocument{
			RuleName:    "Blocked Distribution Domain",
			URLPattern:  "*://{domain}/*",
			Action:      string(models.ActionBlock),
			Enforcement: "block_download",
		}),
		IsBuiltin: true,
	},
	{
		Name:        "Block Executables From Domain",
		Description: "Blocks executable downloads from a domain while leaving other files alone.",
		Category:    "download_protection",
		TemplateJSON: mustTemplateJSON(policyDocument{
			RuleName:    "Executable Download Block",
			URLPattern:  "*://{domain}/*.exe",
			MIMEType:    "application/x-msdownload",
			Action:      string(models.ActionBlock),
			Enforcement: "block_download",
		}),
		IsBuiltin: true,
	},
	{
		Name:        "Trust Vendor Domain",
		Description: "Allows downloads from a vetted vendor domain without further prompts.",
		Category:    "download_protection",
		TemplateJSON: mustTemplateJSON(policyDocument{
			RuleName:   "Trusted Vendor Domain",
			URLPattern: "https://{domain}/*",
			Action:     string(models.ActionAllow),
		}),
		IsBuiltin: true,
	},
}

func mustTemplateJSON(doc policyDocument) string {
	b, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// TemplateService owns named policy templates: reusable recipes instantiated
// into concrete policies by substituting caller-supplied variables.
type TemplateService struct {
	db *gorm.DB
}

// NewTemplateService returns a TemplateService using the provided DB.
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// Create validates and persists a new template, returning the assigned id.
func (s *TemplateService) Create(t *models.PolicyTemplate) (uint, error) {
	if err := validator.ValidateTemplate(t); err != nil {
		return 0, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if err := s.db.Create(t).Error; err != nil {
		return 0, classifyStorageError(err)
	}
	return t.ID, nil
}

// Get retrieves a template by id.
func (s *TemplateService) Get(id uint) (*models.PolicyTemplate, error) {
	var t models.PolicyTemplate
	if err := s.db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, classifyStorageError(err)
	}
	return &t, nil
}

// GetByName retrieves a template by its unique name.
func (s *TemplateService) GetByName(name string) (*models.PolicyTemplate, error) {
	var t models.PolicyTemplate
	if err := s.db.Where("name = ?", name).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, classifyStorageError(err)
	}
	return &t, nil
}

// List returns templates, optionally narrowed to one category, ordered by name.
func (s *TemplateService) List(category string) ([]models.PolicyTemplate, error) {
	q := s.db.Order("name asc")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var res []models.PolicyTemplate
	if err := q.Find(&res).Error; err != nil {
		return nil, classifyStorageError(err)
	}
	return res, nil
}

// Update validates newContent and replaces the stored template's body.
// Identity (id, name uniqueness aside), built-in status and created_at are
// preserved; updated_at is stamped.
func (s *TemplateService) Update(id uint, newContent *models.PolicyTemplate) error {
	if err := validator.ValidateTemplate(newContent); err != nil {
		return err
	}

	return classifyTemplateError(s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.PolicyTemplate
		if err := tx.First(&existing, id).Error; err != nil {
			return err
		}

		now := time.Now()
		updated := existing
		updated.Name = newContent.Name
		updated.Description = newContent.Description
		updated.Category = newContent.Category
		updated.TemplateJSON = newContent.TemplateJSON
		updated.UpdatedAt = &now

		return tx.Save(&updated).Error
	}))
}

// Delete removes a template. Built-in templates are protected.
func (s *TemplateService) Delete(id uint) error {
	return classifyTemplateError(s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.PolicyTemplate
		if err := tx.First(&existing, id).Error; err != nil {
			return err
		}
		if existing.IsBuiltin {
			return ErrBuiltinTemplate
		}
		return tx.Delete(&models.PolicyTemplate{}, id).Error
	}))
}

// Instantiate builds a policy from the template, substituting every
// {name} placeholder with the caller-supplied variable value. The resulting
// document goes through full policy validation, so hostile variable values
// are refused exactly as hostile direct input would be. The policy is
// returned, not persisted; the caller decides whether to store it.
func (s *TemplateService) Instantiate(id uint, variables map[string]string) (*models.Policy, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	body := t.TemplateJSON
	for name, value := range variables {
		body = strings.ReplaceAll(body, "{"+name+"}", value)
	}

	var doc policyDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("parse instantiated template: %w", err)
	}

	p := &models.Policy{
		RuleName:    doc.RuleName,
		URLPattern:  doc.URLPattern,
		FileHash:    doc.FileHash,
		MIMEType:    doc.MIMEType,
		Action:      models.Action(doc.Action),
		Enforcement: doc.Enforcement,
		CreatedBy:   templateActor,
		CreatedAt:   time.Now(),
	}
	if err := validator.ValidatePolicy(p); err != nil {
		return nil, err
	}
	return p, nil
}

// SeedBuiltins inserts the built-in templates that are not already present.
// Idempotent; operator edits to previously seeded rows are left alone.
func (s *TemplateService) SeedBuiltins() error {
	for i := range builtinTemplates {
		t := builtinTemplates[i]
		t.CreatedAt = time.Now()
		err := s.db.Where("name = ?", t.Name).Attrs(t).FirstOrCreate(&models.PolicyTemplate{}).Error
		if err != nil {
			return classifyStorageError(err)
		}
	}
	return nil
}

// ExportJSON serializes all templates to a portable JSON array.
func (s *TemplateService) ExportJSON() ([]byte, error) {
	templates, err := s.List("")
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(templates, "", "  ")
}

// ImportJSON loads a template export. Records are matched by name: unknown
// names are created, existing ones updated. Invalid records are reported in
// the summary and skipped, never aborting the rest. Imported templates are
// never marked built-in.
func (s *TemplateService) ImportJSON(blob []byte) (*ImportSummary, error) {
	var templates []models.PolicyTemplate
	if err := json.Unmarshal(blob, &templates); err != nil {
		return nil, fmt.Errorf("parse template import blob: %w", err)
	}

	summary := &ImportSummary{}
	for i := range templates {
		record := templates[i]
		record.ID = 0
		record.IsBuiltin = false

		var err error
		if existing, getErr := s.GetByName(record.Name); getErr == nil {
			err = s.Update(existing.ID, &record)
		} else if errors.Is(getErr, ErrTemplateNotFound) {
			_, err = s.Create(&record)
		} else {
			err = getErr
		}

		if err != nil {
			summary.Rejected++
			summary.Errors = append(summary.Errors, ImportRecordError{
				RecordIndex: i,
				Reason:      err.Error(),
			})
			continue
		}
		summary.Accepted++
	}
	return summary, nil
}

// classifyTemplateError is classifyStorageError with the template-flavored
// not-found sentinel.
func classifyTemplateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTemplateNotFound
	}
	if errors.Is(err, ErrBuiltinTemplate) {
		return err
	}
	return classifyStorageError(err)
}
