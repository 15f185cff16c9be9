package models

import (
	"time"
)

// Department is the owning department of a document.
type Department string

const (
	DepartmentSales     Department = "sales"
	DepartmentSupport   Department = "support"
	DepartmentMarketing Department = "marketing"
	DepartmentProduct   Department = "product"
	DepartmentLegal     Department = "legal"
)

// AllDepartments lists the closed set of departments in a stable order.
var AllDepartments = []Department{
	DepartmentSales,
	DepartmentSupport,
	DepartmentMarketing,
	DepartmentProduct,
	DepartmentLegal,
}

// IsValid checks if the department is one of the known values.
func (d Department) IsValid() bool {
	switch d {
	case DepartmentSales, DepartmentSupport, DepartmentMarketing, DepartmentProduct, DepartmentLegal:
		return true
	default:
		return false
	}
}

func (d Department) String() string { return string(d) }

// DocType identifies which knowledge schema a document is ingested against.
type DocType string

const (
	// Sales
	DocTypeTrainingModule DocType = "training_module"
	DocTypeObjection      DocType = "objection"
	DocTypePersona        DocType = "persona"
	DocTypePitchScript    DocType = "pitch_script"
	DocTypeEmailTemplate  DocType = "email_template"
	// Support
	DocTypeFAQ                  DocType = "faq"
	DocTypeTroubleshootingGuide DocType = "troubleshooting_guide"
	DocTypeHowToSteps           DocType = "how_to_steps"
	// Product
	DocTypeProductSpec         DocType = "product_spec"
	DocTypeCompatibilityMatrix DocType = "compatibility_matrix"
	DocTypeSafetyNotes         DocType = "safety_notes"
	// Marketing
	DocTypeMessagingPillars  DocType = "messaging_pillars"
	DocTypeContentGuidelines DocType = "content_guidelines"
	// Legal
	DocTypeComplianceNotes DocType = "compliance_notes"
	DocTypeClaimsDoDont    DocType = "claims_do_dont"
)

func (t DocType) String() string { return string(t) }

// Confidentiality controls document visibility classification.
type Confidentiality string

const (
	ConfidentialityInternal Confidentiality = "internal"
	ConfidentialityPublic   Confidentiality = "public"
)

func (c Confidentiality) IsValid() bool {
	return c == ConfidentialityInternal || c == ConfidentialityPublic
}

// DocumentStatus is the ingestion state machine for a document.
//
//	uploading -> parsing -> extracting -> pending_review (-> completed)
//	                 \-> parse_failed      \-> extraction_failed
//
// pending_review is the pipeline's terminal success state; completed is
// reserved for a moderator-driven close and is never written by the pipeline.
type DocumentStatus string

const (
	DocumentStatusUploading        DocumentStatus = "uploading"
	DocumentStatusParsing          DocumentStatus = "parsing"
	DocumentStatusExtracting       DocumentStatus = "extracting"
	DocumentStatusPendingReview    DocumentStatus = "pending_review"
	DocumentStatusCompleted        DocumentStatus = "completed"
	DocumentStatusParseFailed      DocumentStatus = "parse_failed"
	DocumentStatusExtractionFailed DocumentStatus = "extraction_failed"
)

func (s DocumentStatus) String() string { return string(s) }

// IsTerminalFailure reports whether the status is a failure end state.
func (s DocumentStatus) IsTerminalFailure() bool {
	return s == DocumentStatusParseFailed || s == DocumentStatusExtractionFailed
}

// Document represents one uploaded file and its ingestion state.
type Document struct {
	ID              string          `json:"document_id"`
	Filename        string          `json:"filename"`
	Department      Department      `json:"department"`
	DocType         DocType         `json:"doc_type"`
	VersionDate     time.Time       `json:"version_date"`
	Owner           string          `json:"owner"`
	Confidentiality Confidentiality `json:"confidentiality"`
	Status          DocumentStatus  `json:"status"`
	BlobPath        string          `json:"blob_path,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	UploadedAt      time.Time       `json:"uploaded_at"`
}

// Validate checks invariants that must hold before persisting.
func (d *Document) Validate() error {
	if d.ID == "" {
		return NewValidation("document_id is required")
	}
	if d.Filename == "" {
		return NewValidation("filename is required")
	}
	if !d.Department.IsValid() {
		return NewValidation("unknown department: %s", d.Department)
	}
	if d.DocType == "" {
		return NewValidation("doc_type is required")
	}
	if !d.Confidentiality.IsValid() {
		return NewValidation("unknown confidentiality: %s", d.Confidentiality)
	}
	if d.Owner == "" {
		return NewValidation("owner is required")
	}
	return nil
}

// DocumentDTO is the API shape of a document.
type DocumentDTO struct {
	ID              string `json:"document_id"`
	Filename        string `json:"filename"`
	Department      string `json:"department"`
	DocType         string `json:"doc_type"`
	VersionDate     string `json:"version_date"`
	Owner           string `json:"owner"`
	Confidentiality string `json:"confidentiality"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	UploadedAt      string `json:"uploaded_at"`
}

// ToDTO converts the document to its API representation.
func (d *Document) ToDTO() DocumentDTO {
	return DocumentDTO{
		ID:              d.ID,
		Filename:        d.Filename,
		Department:      string(d.Department),
		DocType:         string(d.DocType),
		VersionDate:     d.VersionDate.UTC().Format(time.RFC3339),
		Owner:           d.Owner,
		Confidentiality: string(d.Confidentiality),
		Status:          string(d.Status),
		ErrorMessage:    d.ErrorMessage,
		UploadedAt:      d.UploadedAt.UTC().Format(time.RFC3339),
	}
}
