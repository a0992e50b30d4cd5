package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/policygraph/policygraph/internal/models"
)

// FieldError reports which policy field failed validation and why. The
// offending value is never echoed back; it may be attacker-controlled.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// fieldErr is shorthand for building a *FieldError.
func fieldErr(field, format string, args ...interface{}) *FieldError {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Injection signatures refused outright. Parameterized queries are the
// primary defense; this layer keeps overtly hostile input from ever being
// stored, so downstream consumers (export tooling, reports) can never
// re-interpret it.
var injectionSignatures = []*regexp.Regexp{
	// Quote followed by a boolean tautology: ' OR '1'='1
	regexp.MustCompile(`(?i)['"]\s*(or|and)\s*['"0-9]`),
	// Statement terminator followed by a DDL/DML keyword.
	regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|alter|create|truncate|replace)\b`),
	// UNION-based extraction.
	regexp.MustCompile(`(?i)\bunion\b[\s(]+(all[\s(]+)?\bselect\b`),
	// SQL comment markers used to cut off the rest of a statement.
	regexp.MustCompile(`--\s`),
	regexp.MustCompile(`/\*`),
	// Backslash-escaped quote sequences.
	regexp.MustCompile(`\\'|\\"`),
}

var hexDigits = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// maxURLWildcards caps the number of wildcard characters in a single URL
// pattern so a hostile pattern cannot turn matching into a DoS.
const maxURLWildcards = 10

// ValidatePolicy gates every field of a candidate policy before any storage
// operation is attempted. It is a pure function: it either returns nil,
// meaning the policy is safe to persist as-is, or a *FieldError naming the
// first field that failed. It never mutates, truncates or sanitizes the
// candidate; the caller must resubmit corrected input.
func ValidatePolicy(p *models.Policy) error {
	if err := requireText("rule_name", p.RuleName, models.MaxRuleNameLen); err != nil {
		return err
	}

	if err := validateURLPattern(p.URLPattern); err != nil {
		return err
	}

	if err := validateFileHash(p.FileHash); err != nil {
		return err
	}

	if err := optionalText("mime_type", p.MIMEType, models.MaxMIMETypeLen); err != nil {
		return err
	}
	if err := optionalText("enforcement_action", p.Enforcement, models.MaxTextFieldLen); err != nil {
		return err
	}
	if err := optionalText("created_by", p.CreatedBy, models.MaxTextFieldLen); err != nil {
		return err
	}

	if !p.Action.Valid() {
		return fieldErr("action", "unknown action %q", string(p.Action))
	}

	return nil
}

// ValidateTemplate gates a policy template before storage. The template body
// must be well-formed JSON; its embedded policy document is validated again
// at instantiation time, after variable substitution.
func ValidateTemplate(t *models.PolicyTemplate) error {
	if err := requireText("name", t.Name, models.MaxRuleNameLen); err != nil {
		return err
	}
	if err := optionalText("description", t.Description, models.MaxURLPatternLen); err != nil {
		return err
	}
	if err := optionalText("category", t.Category, models.MaxTextFieldLen); err != nil {
		return err
	}
	if t.TemplateJSON == "" || !json.Valid([]byte(t.TemplateJSON)) {
		return fieldErr("template_json", "not well-formed JSON")
	}
	return nil
}

// ValidateThreat screens caller-supplied threat metadata. Matching only ever
// binds these values as query parameters, but embedded NUL bytes are refused
// so no consumer downstream of the match can be truncation-confused.
func ValidateThreat(m *models.ThreatMetadata) error {
	fields := map[string]string{
		"url":       m.URL,
		"filename":  m.Filename,
		"file_hash": m.FileHash,
		"mime_type": m.MIMEType,
		"rule_name": m.RuleName,
		"severity":  m.Severity,
	}
	for name, value := range fields {
		if strings.ContainsRune(value, 0) {
			return fieldErr(name, "contains NUL byte")
		}
	}
	return nil
}

// requireText checks a mandatory string field.
func requireText(field, value string, max int) error {
	if value == "" {
		return fieldErr(field, "must not be empty")
	}
	return boundedText(field, value, max)
}

// optionalText checks an optional string field.
func optionalText(field, value string, max int) error {
	if value == "" {
		return nil
	}
	return boundedText(field, value, max)
}

func boundedText(field, value string, max int) error {
	if len(value) > max {
		return fieldErr(field, "exceeds %d bytes", max)
	}
	return checkText(field, value)
}

// checkText applies the content rules shared by every free-text field:
// no embedded NUL bytes, no injection signatures.
func checkText(field, value string) error {
	if value == "" {
		return nil
	}
	if strings.ContainsRune(value, 0) {
		return fieldErr(field, "contains NUL byte")
	}
	for _, sig := range injectionSignatures {
		if sig.MatchString(value) {
			return fieldErr(field, "contains SQL injection signature")
		}
	}
	return nil
}

// validateURLPattern enforces a character allowlist instead of the signature
// blocklist used for free-text fields. URL patterns legitimately carry the
// wildcards `*` and `%`, which would trip the comment-marker signature, so
// only alphanumerics and the URL/glob punctuation `/ - _ . * % : \` are
// admitted. The backslash stays in the set because stored patterns may escape
// a literal `%` or `_`. An empty pattern is valid and matches nothing.
func validateURLPattern(pattern string) error {
	if len(pattern) > models.MaxURLPatternLen {
		return fieldErr("url_pattern", "exceeds %d bytes", models.MaxURLPatternLen)
	}
	wildcards := 0
	for _, ch := range pattern {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '/', ch == '-', ch == '_', ch == '.', ch == ':', ch == '\\':
		case ch == '*', ch == '%':
			wildcards++
		default:
			return fieldErr("url_pattern", "contains unsafe character")
		}
	}
	if wildcards > maxURLWildcards {
		return fieldErr("url_pattern", "more than %d wildcards", maxURLWildcards)
	}
	return nil
}

func validateFileHash(hash string) error {
	if hash == "" {
		return nil
	}
	if strings.ContainsRune(hash, 0) {
		return fieldErr("file_hash", "contains NUL byte")
	}
	if len(hash)%2 != 0 {
		return fieldErr("file_hash", "odd-length hex string")
	}
	if !hexDigits.MatchString(hash) {
		return fieldErr("file_hash", "not a hexadecimal string")
	}
	return nil
}
