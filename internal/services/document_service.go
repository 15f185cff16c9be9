package services

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/parsers"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
	"github.com/fathmn/jokari-knowledge-hub/internal/storage"
)

const defaultJobMaxRetries = 3

// DocumentService owns the document lifecycle outside the pipeline: upload
// intake, listing, status, and cascade deletion.
type DocumentService struct {
	registry       *schema.Registry
	parsers        *parsers.Registry
	blobs          storage.BlobStore
	docRepo        repositories.DocumentRepository
	chunkRepo      repositories.ChunkRepository
	recordRepo     repositories.RecordRepository
	evRepo         repositories.EvidenceRepository
	updateRepo     repositories.UpdateRepository
	auditRepo      repositories.AuditRepository
	attachmentRepo repositories.AttachmentRepository
	jobRepo        repositories.JobRepository
	logger         *log.Logger
}

func NewDocumentService(
	registry *schema.Registry,
	parserRegistry *parsers.Registry,
	blobs storage.BlobStore,
	docRepo repositories.DocumentRepository,
	chunkRepo repositories.ChunkRepository,
	recordRepo repositories.RecordRepository,
	evRepo repositories.EvidenceRepository,
	updateRepo repositories.UpdateRepository,
	auditRepo repositories.AuditRepository,
	attachmentRepo repositories.AttachmentRepository,
	jobRepo repositories.JobRepository,
	logger *log.Logger,
) *DocumentService {
	return &DocumentService{
		registry:       registry,
		parsers:        parserRegistry,
		blobs:          blobs,
		docRepo:        docRepo,
		chunkRepo:      chunkRepo,
		recordRepo:     recordRepo,
		evRepo:         evRepo,
		updateRepo:     updateRepo,
		auditRepo:      auditRepo,
		attachmentRepo: attachmentRepo,
		jobRepo:        jobRepo,
		logger:         logger,
	}
}

// DocTypeCatalog maps each department to the doc types it may upload.
func (s *DocumentService) DocTypeCatalog() map[string][]string {
	catalog := make(map[string][]string, len(models.AllDepartments))
	for _, dep := range models.AllDepartments {
		types := s.registry.TypesFor(dep)
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		catalog[string(dep)] = names
	}
	return catalog
}

// UploadRequest carries one incoming document upload.
type UploadRequest struct {
	Filename        string
	Content         io.Reader
	Size            int64
	ContentType     string
	Department      string
	DocType         string
	VersionDate     time.Time
	Owner           string
	Confidentiality string
}

// UploadResponse wraps the created document for the API.
type UploadResponse struct {
	Document models.DocumentDTO `json:"document"`
	Message  string             `json:"message"`
}

// Upload validates the request, stores the file, registers the document and
// queues it for ingestion.
func (s *DocumentService) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	department := models.Department(strings.ToLower(req.Department))
	if !department.IsValid() {
		return nil, models.NewValidation("unknown department: %s", req.Department)
	}

	docType := models.DocType(strings.ToLower(req.DocType))
	if _, err := s.registry.SchemaFor(docType); err != nil {
		return nil, err
	}
	if !s.registry.IsPermitted(department, docType) {
		return nil, models.NewValidation("department %s may not upload documents of type %s", department, docType)
	}

	ext := filepath.Ext(req.Filename)
	if !s.parsers.IsSupported(ext) {
		return nil, models.NewValidation("unsupported file type: %s", ext)
	}

	confidentiality := models.Confidentiality(req.Confidentiality)
	if req.Confidentiality == "" {
		confidentiality = models.ConfidentialityInternal
	}

	versionDate := req.VersionDate
	if versionDate.IsZero() {
		versionDate = time.Now()
	}

	documentID := uuid.New().String()
	blobPath := "documents/" + documentID + "/" + req.Filename

	if err := s.blobs.Put(ctx, blobPath, req.Content, req.Size, req.ContentType); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:              documentID,
		Filename:        req.Filename,
		Department:      department,
		DocType:         docType,
		VersionDate:     versionDate,
		Owner:           req.Owner,
		Confidentiality: confidentiality,
		Status:          models.DocumentStatusUploading,
		BlobPath:        blobPath,
		UploadedAt:      time.Now(),
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		// The blob is orphaned on metadata failure; best effort cleanup.
		if delErr := s.blobs.Delete(ctx, blobPath); delErr != nil {
			s.logger.Printf("[DOCUMENT] Failed to clean up blob %s: %v", blobPath, delErr)
		}
		return nil, err
	}

	s.appendAudit(ctx, models.AuditActionUpload, "document", doc.ID, req.Owner, map[string]interface{}{
		"filename":   doc.Filename,
		"department": string(doc.Department),
		"doc_type":   string(doc.DocType),
	})

	job := &repositories.IngestionJob{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		MaxRetries: defaultJobMaxRetries,
	}
	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Printf("[DOCUMENT] Uploaded %s as document %s, queued job %s", doc.Filename, doc.ID, job.ID)
	return &UploadResponse{
		Document: doc.ToDTO(),
		Message:  "document uploaded, ingestion queued",
	}, nil
}

// List returns documents matching the filter, newest first.
func (s *DocumentService) List(ctx context.Context, filter repositories.DocumentFilter) ([]models.DocumentDTO, error) {
	docs, err := s.docRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	dtos := make([]models.DocumentDTO, 0, len(docs))
	for _, doc := range docs {
		dtos = append(dtos, doc.ToDTO())
	}
	return dtos, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.docRepo.Get(ctx, id)
}

// Chunks returns the document's chunks in index order.
func (s *DocumentService) Chunks(ctx context.Context, documentID string) ([]models.ChunkDTO, error) {
	if _, err := s.docRepo.Get(ctx, documentID); err != nil {
		return nil, err
	}

	chunks, err := s.chunkRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	dtos := make([]models.ChunkDTO, 0, len(chunks))
	for _, chunk := range chunks {
		dtos = append(dtos, chunk.ToDTO())
	}
	return dtos, nil
}

// Records returns the records extracted from the document.
func (s *DocumentService) Records(ctx context.Context, documentID string) ([]*models.Record, error) {
	if _, err := s.docRepo.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.recordRepo.ListByDocument(ctx, documentID)
}

// Delete removes the document together with everything extracted from it:
// chunks, records, their evidence, proposed updates and attachments. Approved
// records release their primary-key claim so a re-upload can be approved
// again. The blob is removed last, best effort, once the metadata is gone.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.Get(ctx, documentID)
	if err != nil {
		return err
	}

	records, err := s.recordRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := s.deleteRecord(ctx, record); err != nil {
			return err
		}
	}

	deletedChunks, err := s.chunkRepo.DeleteByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.evRepo.NullifyChunks(ctx, deletedChunks); err != nil {
		return err
	}

	if err := s.docRepo.Delete(ctx, documentID); err != nil {
		return err
	}

	if doc.BlobPath != "" {
		if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil {
			// Metadata is already gone; an orphaned blob is acceptable.
			s.logger.Printf("[DOCUMENT] Failed to delete blob %s: %v", doc.BlobPath, err)
		}
	}

	s.appendAudit(ctx, models.AuditActionDelete, "document", documentID, "", map[string]interface{}{
		"filename":        doc.Filename,
		"chunks_deleted":  len(deletedChunks),
		"records_deleted": len(records),
	})
	s.logger.Printf("[DOCUMENT] Deleted document %s with %d chunks and %d records", documentID, len(deletedChunks), len(records))
	return nil
}

// deleteRecord removes a record and its dependents as part of a document
// cascade.
func (s *DocumentService) deleteRecord(ctx context.Context, record *models.Record) error {
	if err := s.evRepo.DeleteByRecord(ctx, record.ID); err != nil {
		return err
	}
	if err := s.updateRepo.DeleteByRecord(ctx, record.ID); err != nil {
		return err
	}

	attachments, err := s.attachmentRepo.ListByRecord(ctx, record.ID)
	if err != nil {
		return err
	}
	for _, attachment := range attachments {
		if attachment.BlobPath != "" {
			if err := s.blobs.Delete(ctx, attachment.BlobPath); err != nil {
				s.logger.Printf("[DOCUMENT] Failed to delete attachment blob %s: %v", attachment.BlobPath, err)
			}
		}
		if err := s.attachmentRepo.Delete(ctx, attachment.ID); err != nil {
			return err
		}
	}

	if record.Status == models.RecordStatusApproved && record.PrimaryKey != "" {
		if err := s.recordRepo.ReleasePrimaryKey(ctx, record.SchemaType, record.PrimaryKey, record.ID); err != nil {
			return err
		}
	}
	return s.recordRepo.Delete(ctx, record.ID)
}

func (s *DocumentService) appendAudit(ctx context.Context, action, entityType, entityID, actor string, details map[string]interface{}) {
	entry := &models.AuditLog{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Details:    details,
		Timestamp:  time.Now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Printf("[DOCUMENT] Failed to write audit entry %s for %s: %v", action, entityID, err)
	}
}
