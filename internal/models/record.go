package models

import (
	"time"
)

// RecordStatus is the review state machine for an extracted record.
// approved and rejected are terminal.
type RecordStatus string

const (
	RecordStatusPending     RecordStatus = "pending"
	RecordStatusApproved    RecordStatus = "approved"
	RecordStatusRejected    RecordStatus = "rejected"
	RecordStatusNeedsReview RecordStatus = "needs_review"
)

func (s RecordStatus) String() string { return string(s) }

// IsTerminal reports whether the status admits no further transitions.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusApproved || s == RecordStatusRejected
}

// Record is one structured entity extracted from a document.
// (SchemaType, PrimaryKey) is unique among approved records.
type Record struct {
	ID                string                 `json:"record_id"`
	DocumentID        string                 `json:"document_id,omitempty"`
	Department        Department             `json:"department"`
	SchemaType        string                 `json:"schema_type"`
	PrimaryKey        string                 `json:"primary_key"`
	Data              map[string]interface{} `json:"data"`
	CompletenessScore float64                `json:"completeness_score"`
	Status            RecordStatus           `json:"status"`
	Version           int                    `json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// Validate checks record invariants before persisting.
func (r *Record) Validate() error {
	if r.ID == "" {
		return NewValidation("record_id is required")
	}
	if !r.Department.IsValid() {
		return NewValidation("unknown department: %s", r.Department)
	}
	if r.SchemaType == "" {
		return NewValidation("schema_type is required")
	}
	if r.PrimaryKey == "" {
		return NewValidation("primary_key is required")
	}
	if r.Data == nil {
		return NewValidation("record data is required")
	}
	if r.CompletenessScore < 0 || r.CompletenessScore > 1 {
		return NewValidation("completeness_score out of range: %f", r.CompletenessScore)
	}
	if r.Version < 1 {
		return NewValidation("version must start at 1")
	}
	return nil
}

// Evidence links one extracted field back to the source text.
// ChunkID is a nullable back-reference; it is cleared when the chunk goes away.
type Evidence struct {
	ID          string `json:"evidence_id"`
	RecordID    string `json:"record_id"`
	ChunkID     string `json:"chunk_id,omitempty"`
	FieldPath   string `json:"field_path"`
	Excerpt     string `json:"excerpt"`
	StartOffset *int   `json:"start_offset,omitempty"`
	EndOffset   *int   `json:"end_offset,omitempty"`
}

func (e *Evidence) Validate() error {
	if e.ID == "" {
		return NewValidation("evidence_id is required")
	}
	if e.RecordID == "" {
		return NewValidation("record_id is required")
	}
	if e.FieldPath == "" {
		return NewValidation("field_path is required")
	}
	if len(e.Excerpt) > 1000 {
		return NewValidation("excerpt exceeds 1000 characters")
	}
	return nil
}

// UpdateStatus is the lifecycle of a proposed update: pending then exactly
// one of approved or rejected.
type UpdateStatus string

const (
	UpdateStatusPending  UpdateStatus = "pending"
	UpdateStatusApproved UpdateStatus = "approved"
	UpdateStatusRejected UpdateStatus = "rejected"
)

// ProposedUpdate is a pending change to an existing approved record.
type ProposedUpdate struct {
	ID               string                 `json:"update_id"`
	RecordID         string                 `json:"record_id"`
	SourceDocumentID string                 `json:"source_document_id,omitempty"`
	NewData          map[string]interface{} `json:"new_data"`
	Diff             *DataDiff              `json:"diff"`
	Status           UpdateStatus           `json:"status"`
	CreatedAt        time.Time              `json:"created_at"`
	ReviewedAt       *time.Time             `json:"reviewed_at,omitempty"`
	ReviewedBy       string                 `json:"reviewed_by,omitempty"`
}

func (u *ProposedUpdate) Validate() error {
	if u.ID == "" {
		return NewValidation("update_id is required")
	}
	if u.RecordID == "" {
		return NewValidation("record_id is required")
	}
	if u.NewData == nil {
		return NewValidation("new_data is required")
	}
	if u.Diff == nil {
		return NewValidation("diff is required")
	}
	return nil
}

// FieldChange captures an old/new pair for a changed field.
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// DataDiff is the structured diff between two record data maps.
// Comparisons ignore list order.
type DataDiff struct {
	Added     map[string]interface{} `json:"added"`
	Removed   map[string]interface{} `json:"removed"`
	Changed   map[string]FieldChange `json:"changed"`
	Unchanged map[string]interface{} `json:"unchanged"`
}

// IsEmpty reports whether the diff carries no actual change.
func (d *DataDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// RecordAttachment is a user-added file bound to a record, cascade-deleted
// with it. URL is populated transiently from a presigned blob-store link.
type RecordAttachment struct {
	ID        string    `json:"attachment_id"`
	RecordID  string    `json:"record_id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	BlobPath  string    `json:"blob_path"`
	FileSize  string    `json:"file_size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url,omitempty"`
}

func (a *RecordAttachment) Validate() error {
	if a.ID == "" {
		return NewValidation("attachment_id is required")
	}
	if a.RecordID == "" {
		return NewValidation("record_id is required")
	}
	if a.Filename == "" {
		return NewValidation("filename is required")
	}
	if a.BlobPath == "" {
		return NewValidation("blob_path is required")
	}
	return nil
}
