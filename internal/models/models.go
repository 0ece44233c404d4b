package models

import "time"

// FileSession represents one stored artifact and its provenance.
// Sessions are created by Upload and Correct, mutated in place only to
// attach a check result, and deleted by Cleanup or the janitor.
type FileSession struct {
	ID           string            `json:"id"`
	OriginalName string            `json:"original_name"`
	StorageKey   string            `json:"storage_key"`
	SizeBytes    int64             `json:"size_bytes"`
	Checksum     string            `json:"checksum"`
	UploadedAt   time.Time         `json:"uploaded_at"`
	IsDerived    bool              `json:"is_derived"`
	ParentID     string            `json:"parent_id,omitempty"`
	CheckResult  *CorrectionReport `json:"check_result,omitempty"`
}

// CorrectionReport is the output of a spelling check over one session.
type CorrectionReport struct {
	SessionID             string                `json:"file_id"`
	TotalErrors           int                   `json:"total_errors"`
	ProcessingTimeSeconds float64               `json:"processing_time"`
	Errors                []CorrectionCandidate `json:"errors"`
}

// CorrectionCandidate is one proposed text substitution found during
// analysis. SlideNumber is 1-based.
type CorrectionCandidate struct {
	SlideNumber       int    `json:"slide_number"`
	Original          string `json:"original"`
	Corrected         string `json:"corrected"`
	Position          string `json:"position"`
	Context           string `json:"context"`
	SelectedByDefault bool   `json:"selected"`
}
