package models

import (
	"time"
)

// Audit actions form a closed vocabulary; nothing else is ever written.
const (
	AuditActionUpload           = "upload"
	AuditActionDelete           = "delete"
	AuditActionIngestionDone    = "ingestion_complete"
	AuditActionIngestionFailed  = "ingestion_failed"
	AuditActionRecordsExtracted = "records_extracted"
	AuditActionApprove          = "approve"
	AuditActionReject           = "reject"
	AuditActionEdit             = "edit"
	AuditActionApproveUpdate    = "approve_update"
	AuditActionRejectUpdate     = "reject_update"
)

// AuditLog is an append-only event entry. Entries are never mutated.
type AuditLog struct {
	ID         string                 `json:"audit_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Actor      string                 `json:"actor"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (l *AuditLog) Validate() error {
	if l.ID == "" {
		return NewValidation("audit_id is required")
	}
	if l.Action == "" {
		return NewValidation("action is required")
	}
	if l.EntityType == "" || l.EntityID == "" {
		return NewValidation("entity reference is required")
	}
	if l.Actor == "" {
		return NewValidation("actor is required")
	}
	return nil
}
