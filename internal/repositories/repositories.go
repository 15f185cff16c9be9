// Package repositories defines the persistence contracts of the knowledge
// hub and their Redis implementations. Entities are stored as JSON values
// under typed key prefixes with Redis sets as secondary indexes; multi-key
// writes go through transaction pipelines.
package repositories

import (
	"context"
	"time"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// DocumentFilter narrows document listings. Zero values mean "any".
type DocumentFilter struct {
	Department models.Department
	DocType    models.DocType
	Status     models.DocumentStatus
	Limit      int
	Offset     int
}

// RecordFilter narrows record listings. Zero values mean "any".
type RecordFilter struct {
	Department models.Department
	SchemaType string
	Status     models.RecordStatus
	DocumentID string
	Limit      int
	Offset     int
}

// DocumentRepository persists uploaded documents and their ingestion state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errorMessage string) error
	List(ctx context.Context, filter DocumentFilter) ([]*models.Document, error)
	Delete(ctx context.Context, id string) error
}

// ChunkRepository persists document chunks.
type ChunkRepository interface {
	CreateBatch(ctx context.Context, chunks []*models.Chunk) error
	Get(ctx context.Context, id string) (*models.Chunk, error)
	ListByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) ([]string, error)
}

// RecordRepository persists extracted records. The primary-key index
// enforces (schema_type, primary_key) uniqueness among approved records.
type RecordRepository interface {
	Create(ctx context.Context, record *models.Record) error
	Get(ctx context.Context, id string) (*models.Record, error)
	Update(ctx context.Context, record *models.Record) error
	List(ctx context.Context, filter RecordFilter) ([]*models.Record, error)
	ListByDocument(ctx context.Context, documentID string) ([]*models.Record, error)
	ListApprovedBySchema(ctx context.Context, schemaType string) ([]*models.Record, error)
	// ClaimPrimaryKey reserves (schemaType, primaryKey) for recordID. It
	// reports false when another record already holds the claim.
	ClaimPrimaryKey(ctx context.Context, schemaType, primaryKey, recordID string) (bool, error)
	ReleasePrimaryKey(ctx context.Context, schemaType, primaryKey, recordID string) error
	Delete(ctx context.Context, id string) error
}

// EvidenceRepository persists the field-to-source links of records.
type EvidenceRepository interface {
	CreateBatch(ctx context.Context, evidence []*models.Evidence) error
	ListByRecord(ctx context.Context, recordID string) ([]*models.Evidence, error)
	// NullifyChunks clears the chunk reference on evidence rows pointing at
	// deleted chunks, keeping the rows themselves.
	NullifyChunks(ctx context.Context, chunkIDs []string) error
	DeleteByRecord(ctx context.Context, recordID string) error
}

// UpdateRepository persists proposed updates to approved records.
type UpdateRepository interface {
	Create(ctx context.Context, update *models.ProposedUpdate) error
	Get(ctx context.Context, id string) (*models.ProposedUpdate, error)
	Update(ctx context.Context, update *models.ProposedUpdate) error
	ListByRecord(ctx context.Context, recordID string) ([]*models.ProposedUpdate, error)
	ListPending(ctx context.Context) ([]*models.ProposedUpdate, error)
	DeleteByRecord(ctx context.Context, recordID string) error
}

// AuditRepository is append-only; entries are never mutated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	ListByEntity(ctx context.Context, entityID string) ([]*models.AuditLog, error)
	ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error)
}

// AttachmentRepository persists record attachments.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.RecordAttachment) error
	Get(ctx context.Context, id string) (*models.RecordAttachment, error)
	ListByRecord(ctx context.Context, recordID string) ([]*models.RecordAttachment, error)
	Delete(ctx context.Context, id string) error
}

// JobStatus is the lifecycle of an ingestion job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// IngestionJob is one queued ingestion run for a document.
type IngestionJob struct {
	ID          string     `json:"job_id"`
	DocumentID  string     `json:"document_id"`
	Status      JobStatus  `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate checks if the job is well-formed.
func (j *IngestionJob) Validate() error {
	if j.ID == "" {
		return models.NewValidation("job_id is required")
	}
	if j.DocumentID == "" {
		return models.NewValidation("document_id is required")
	}
	return nil
}

// JobRepository is the FIFO ingestion queue plus job state storage.
type JobRepository interface {
	Enqueue(ctx context.Context, job *IngestionJob) error
	// Dequeue pops the oldest queued job and marks it processing. It returns
	// nil without error when the queue is empty.
	Dequeue(ctx context.Context) (*IngestionJob, error)
	Get(ctx context.Context, id string) (*IngestionJob, error)
	Update(ctx context.Context, job *IngestionJob) error
	QueueLength(ctx context.Context) (int64, error)
}

// storageError wraps a low-level store failure with the failed operation.
func storageError(operation string, err error) error {
	return models.NewInternal("repository operation failed: "+operation, err)
}
