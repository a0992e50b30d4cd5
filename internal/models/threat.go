package models

// ThreatMetadata describes an observed event (a download, a form submission,
// a navigation) to be evaluated against stored policies. It is caller
// supplied and read-only; every field may carry attacker-controlled bytes
// and must only ever reach the database as a bound query parameter.
type ThreatMetadata struct {
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileHash string `json:"file_hash,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	RuleName string `json:"rule_name,omitempty"`
	Severity string `json:"severity,omitempty"`
}
