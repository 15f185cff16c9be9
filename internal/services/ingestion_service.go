package services

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fathmn/jokari-knowledge-hub/internal/chunking"
	"github.com/fathmn/jokari-knowledge-hub/internal/extractors"
	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/parsers"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
	"github.com/fathmn/jokari-knowledge-hub/internal/storage"
)

const (
	// Extractions below this confidence always land in needs_review.
	reviewConfidenceThreshold = 0.5
	maxEvidenceExcerptLen     = 1000
	systemActor               = "system"
)

// IngestionService runs the pipeline behind one uploaded document: download,
// parse, chunk, embed, extract, merge. Every status transition is persisted
// so a crashed run leaves an inspectable document state.
type IngestionService struct {
	parsers    *parsers.Registry
	chunker    *chunking.Chunker
	embedder   chunking.Embedder
	extractor  extractors.Extractor
	registry   *schema.Registry
	scorer     *schema.Scorer
	merge      *MergeService
	blobs      storage.BlobStore
	docRepo    repositories.DocumentRepository
	chunkRepo  repositories.ChunkRepository
	recordRepo repositories.RecordRepository
	evRepo     repositories.EvidenceRepository
	auditRepo  repositories.AuditRepository
	logger     *log.Logger
}

func NewIngestionService(
	parserRegistry *parsers.Registry,
	chunker *chunking.Chunker,
	embedder chunking.Embedder,
	extractor extractors.Extractor,
	registry *schema.Registry,
	merge *MergeService,
	blobs storage.BlobStore,
	docRepo repositories.DocumentRepository,
	chunkRepo repositories.ChunkRepository,
	recordRepo repositories.RecordRepository,
	evRepo repositories.EvidenceRepository,
	auditRepo repositories.AuditRepository,
	logger *log.Logger,
) *IngestionService {
	return &IngestionService{
		parsers:    parserRegistry,
		chunker:    chunker,
		embedder:   embedder,
		extractor:  extractor,
		registry:   registry,
		scorer:     schema.NewScorer(registry),
		merge:      merge,
		blobs:      blobs,
		docRepo:    docRepo,
		chunkRepo:  chunkRepo,
		recordRepo: recordRepo,
		evRepo:     evRepo,
		auditRepo:  auditRepo,
		logger:     logger,
	}
}

// Ingest runs the full pipeline for the document. Parse failures are
// terminal and reported as nil; an upstream extraction failure is returned
// so the caller can retry.
func (s *IngestionService) Ingest(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.Get(ctx, documentID)
	if err != nil {
		return err
	}

	s.logger.Printf("[INGEST] Starting ingestion of document %s (%s)", doc.ID, doc.Filename)

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, models.DocumentStatusParsing, ""); err != nil {
		return err
	}

	parsed, err := s.parse(ctx, doc)
	if err != nil {
		s.failTerminal(ctx, doc, models.DocumentStatusParseFailed, err)
		return nil
	}

	chunks, err := s.persistChunks(ctx, doc, parsed)
	if err != nil {
		return err
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, models.DocumentStatusExtracting, ""); err != nil {
		return err
	}

	created, updates, err := s.extract(ctx, doc, parsed, chunks)
	if err != nil {
		// Upstream failures bubble up for retry; the job owner marks the
		// document failed once retries are exhausted.
		if models.IsUpstream(err) {
			return err
		}
		s.failTerminal(ctx, doc, models.DocumentStatusExtractionFailed, err)
		return nil
	}

	if err := s.docRepo.UpdateStatus(ctx, doc.ID, models.DocumentStatusPendingReview, ""); err != nil {
		return err
	}

	s.audit(ctx, models.AuditActionRecordsExtracted, "document", doc.ID, map[string]interface{}{
		"records_created":  created,
		"updates_proposed": updates,
		"chunks":           len(chunks),
	})
	s.audit(ctx, models.AuditActionIngestionDone, "document", doc.ID, map[string]interface{}{
		"records_created":  created,
		"updates_proposed": updates,
	})

	s.logger.Printf("[INGEST] Completed document %s: %d records, %d proposed updates", doc.ID, created, updates)
	return nil
}

// MarkExtractionFailed records the terminal failure of a document whose
// ingestion retries are exhausted.
func (s *IngestionService) MarkExtractionFailed(ctx context.Context, documentID string, cause error) {
	doc, err := s.docRepo.Get(ctx, documentID)
	if err != nil {
		s.logger.Printf("[INGEST] Cannot mark document %s failed: %v", documentID, err)
		return
	}
	s.failTerminal(ctx, doc, models.DocumentStatusExtractionFailed, cause)
}

func (s *IngestionService) parse(ctx context.Context, doc *models.Document) (*parsers.ParsedDocument, error) {
	localPath, err := s.blobs.DownloadToTemp(ctx, doc.BlobPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(localPath)

	parser, err := s.parsers.ForFile(doc.Filename)
	if err != nil {
		return nil, err
	}

	parsed, err := parser.Parse(localPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.RawText) == "" {
		warning := "document contains no extractable text"
		if len(parsed.Warnings) > 0 {
			warning = parsed.Warnings[len(parsed.Warnings)-1]
		}
		return nil, models.NewValidation("%s", warning)
	}
	return parsed, nil
}

func (s *IngestionService) persistChunks(ctx context.Context, doc *models.Document, parsed *parsers.ParsedDocument) ([]*models.Chunk, error) {
	textChunks := s.chunker.CreateChunks(parsed)

	chunks := make([]*models.Chunk, 0, len(textChunks))
	for _, tc := range textChunks {
		chunks = append(chunks, &models.Chunk{
			ID:          uuid.New().String(),
			DocumentID:  doc.ID,
			SectionPath: tc.SectionPath,
			Text:        tc.Text,
			Embedding:   s.embedder.Embed(tc.Text),
			Confidence:  tc.Confidence,
			StartOffset: tc.StartOffset,
			EndOffset:   tc.EndOffset,
			ChunkIndex:  tc.ChunkIndex,
		})
	}
	if err := s.chunkRepo.CreateBatch(ctx, chunks); err != nil {
		return nil, err
	}

	s.logger.Printf("[INGEST] Stored %d chunks for document %s", len(chunks), doc.ID)
	return chunks, nil
}

// extract runs the extractor over the parsed text and persists the resulting
// records, evidence and proposed updates. It returns the record and update
// counts.
func (s *IngestionService) extract(ctx context.Context, doc *models.Document, parsed *parsers.ParsedDocument, chunks []*models.Chunk) (int, int, error) {
	descriptor, err := s.registry.SchemaFor(doc.DocType)
	if err != nil {
		return 0, 0, err
	}

	result, err := s.extractor.Extract(ctx, parsed.RawText, descriptor, extractors.Context{
		Department: string(doc.Department),
		DocType:    string(doc.DocType),
		DocumentID: doc.ID,
		Filename:   doc.Filename,
	})
	if err != nil {
		return 0, 0, err
	}

	candidates := result.Records
	if len(candidates) == 0 && len(result.Data) > 0 {
		candidates = []extractors.ExtractedRecord{{
			Data:       result.Data,
			SchemaType: descriptor.Name,
			Evidence:   result.Evidence,
			Confidence: result.Confidence,
		}}
	}
	if len(candidates) == 0 {
		// Finding nothing is not a failure; the document reaches review
		// empty and a moderator decides what to do with it.
		s.logger.Printf("[INGEST] No records extracted from document %s: %s", doc.ID, strings.Join(result.Errors, "; "))
		return 0, 0, nil
	}

	created, updates := 0, 0
	for _, candidate := range candidates {
		wasUpdate, err := s.persistCandidate(ctx, doc, descriptor, candidate, result.NeedsReview, chunks)
		if err != nil {
			return created, updates, err
		}
		if wasUpdate {
			updates++
		} else {
			created++
		}
	}
	return created, updates, nil
}

func (s *IngestionService) persistCandidate(
	ctx context.Context,
	doc *models.Document,
	descriptor *schema.Descriptor,
	candidate extractors.ExtractedRecord,
	forceReview bool,
	chunks []*models.Chunk,
) (bool, error) {
	primaryKey := descriptor.ComputePrimaryKey(candidate.Data)

	existing, err := s.merge.FindExisting(ctx, descriptor.Name, primaryKey)
	if err != nil {
		return false, err
	}
	if existing != nil {
		_, err := s.merge.CreateProposedUpdate(ctx, existing, candidate.Data, doc.ID)
		return true, err
	}

	recordID := uuid.New().String()
	if primaryKey == "" {
		// No primary-key field was extracted; the record id keeps the key
		// unique until a moderator edits the data.
		primaryKey = recordID
	}

	validationErrs := descriptor.Validate(candidate.Data)
	status := models.RecordStatusPending
	if forceReview || candidate.Confidence < reviewConfidenceThreshold || len(validationErrs) > 0 {
		status = models.RecordStatusNeedsReview
	}

	score, err := s.scorer.Score(descriptor.DocType, candidate.Data)
	if err != nil {
		return false, err
	}

	now := time.Now()
	record := &models.Record{
		ID:                recordID,
		DocumentID:        doc.ID,
		Department:        doc.Department,
		SchemaType:        descriptor.Name,
		PrimaryKey:        primaryKey,
		Data:              candidate.Data,
		CompletenessScore: score,
		Status:            status,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.recordRepo.Create(ctx, record); err != nil {
		return false, err
	}

	if err := s.evRepo.CreateBatch(ctx, s.buildEvidence(record.ID, candidate.Evidence, chunks)); err != nil {
		return false, err
	}
	return false, nil
}

// buildEvidence resolves extractor evidence pointers to stored chunks. The
// pointer's chunk index picks the chunk; a stale index falls back to the
// first chunk so evidence never dangles.
func (s *IngestionService) buildEvidence(recordID string, pointers []extractors.EvidencePointer, chunks []*models.Chunk) []*models.Evidence {
	evidence := make([]*models.Evidence, 0, len(pointers))
	for _, p := range pointers {
		chunkID := ""
		if len(chunks) > 0 {
			chunkID = chunks[0].ID
			for _, chunk := range chunks {
				if chunk.ChunkIndex == p.ChunkIndex {
					chunkID = chunk.ID
					break
				}
			}
		}

		excerpt := p.Excerpt
		if len(excerpt) > maxEvidenceExcerptLen {
			excerpt = excerpt[:maxEvidenceExcerptLen]
		}

		evidence = append(evidence, &models.Evidence{
			ID:          uuid.New().String(),
			RecordID:    recordID,
			ChunkID:     chunkID,
			FieldPath:   p.FieldPath,
			Excerpt:     excerpt,
			StartOffset: p.StartOffset,
			EndOffset:   p.EndOffset,
		})
	}
	return evidence
}

func (s *IngestionService) failTerminal(ctx context.Context, doc *models.Document, status models.DocumentStatus, cause error) {
	message := "unknown failure"
	if cause != nil {
		message = cause.Error()
	}

	s.logger.Printf("[INGEST] Document %s failed (%s): %s", doc.ID, status, message)
	if err := s.docRepo.UpdateStatus(ctx, doc.ID, status, message); err != nil {
		s.logger.Printf("[INGEST] Failed to persist failure status for %s: %v", doc.ID, err)
	}
	s.audit(ctx, models.AuditActionIngestionFailed, "document", doc.ID, map[string]interface{}{
		"status": string(status),
		"error":  message,
	})
}

func (s *IngestionService) audit(ctx context.Context, action, entityType, entityID string, details map[string]interface{}) {
	entry := &models.AuditLog{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      systemActor,
		Details:    details,
		Timestamp:  time.Now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Printf("[INGEST] Failed to write audit entry %s for %s: %v", action, entityID, err)
	}
}

// DocumentProgress summarizes where a document is in the pipeline.
type DocumentProgress struct {
	DocumentID   string `json:"document_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	ChunkCount   int    `json:"chunk_count"`
	RecordCount  int    `json:"record_count"`
}

// Progress reports the pipeline state of a document.
func (s *IngestionService) Progress(ctx context.Context, documentID string) (*DocumentProgress, error) {
	doc, err := s.docRepo.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunkRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	records, err := s.recordRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return &DocumentProgress{
		DocumentID:   doc.ID,
		Status:       string(doc.Status),
		ErrorMessage: doc.ErrorMessage,
		ChunkCount:   len(chunks),
		RecordCount:  len(records),
	}, nil
}
