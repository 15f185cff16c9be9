package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fathmn/jokari-knowledge-hub/internal/chunking"
	"github.com/fathmn/jokari-knowledge-hub/internal/extractors"
	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/parsers"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

// scriptedExtractor returns a fixed result or error for every call.
type scriptedExtractor struct {
	result *extractors.Result
	err    error
}

func (e *scriptedExtractor) Extract(_ context.Context, _ string, _ *schema.Descriptor, _ extractors.Context) (*extractors.Result, error) {
	return e.result, e.err
}

type ingestionHarness struct {
	service    *IngestionService
	blobs      *MockBlobStore
	docRepo    *MockDocumentRepository
	chunkRepo  *MockChunkRepository
	recordRepo *MockRecordRepository
	updateRepo *MockUpdateRepository
	evRepo     *MockEvidenceRepository
	auditRepo  *MockAuditRepository
}

func newIngestionHarness(extractor extractors.Extractor) *ingestionHarness {
	h := &ingestionHarness{
		blobs:      new(MockBlobStore),
		docRepo:    new(MockDocumentRepository),
		chunkRepo:  new(MockChunkRepository),
		recordRepo: new(MockRecordRepository),
		updateRepo: new(MockUpdateRepository),
		evRepo:     new(MockEvidenceRepository),
		auditRepo:  new(MockAuditRepository),
	}

	registry := schema.NewRegistry()
	merge := NewMergeService(registry, h.recordRepo, h.updateRepo, testLogger())
	h.service = NewIngestionService(
		parsers.NewRegistry(),
		chunking.NewChunker(chunking.DefaultConfig()),
		chunking.NewHashEmbedder(),
		extractor,
		registry,
		merge,
		h.blobs,
		h.docRepo, h.chunkRepo, h.recordRepo, h.evRepo, h.auditRepo,
		testLogger(),
	)
	return h
}

func faqTestDocument() *models.Document {
	return &models.Document{
		ID:         "doc-1",
		Filename:   "faq.md",
		Department: models.DepartmentSupport,
		DocType:    models.DocTypeFAQ,
		Status:     models.DocumentStatusUploading,
		BlobPath:   "documents/doc-1/faq.md",
	}
}

func writeIngestionFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.md")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// trackStatuses records every document status transition in order.
func trackStatuses(h *ingestionHarness, documentID string) *[]models.DocumentStatus {
	statuses := &[]models.DocumentStatus{}
	h.docRepo.On("UpdateStatus", mock.Anything, documentID, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			*statuses = append(*statuses, args.Get(2).(models.DocumentStatus))
		}).
		Return(nil)
	return statuses
}

// trackAudit records every audit entry appended during the run.
func trackAudit(h *ingestionHarness) *[]*models.AuditLog {
	entries := &[]*models.AuditLog{}
	h.auditRepo.On("Append", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			*entries = append(*entries, args.Get(1).(*models.AuditLog))
		}).
		Return(nil)
	return entries
}

func auditAction(entries []*models.AuditLog, action string) *models.AuditLog {
	for _, e := range entries {
		if e.Action == action {
			return e
		}
	}
	return nil
}

func TestIngest_HappyPathReachesPendingReview(t *testing.T) {
	extractor := &scriptedExtractor{result: &extractors.Result{
		Data:       map[string]interface{}{"question": "Wie wechsle ich das Messer?", "answer": "Verriegelung loesen."},
		Valid:      true,
		Confidence: 0.9,
		Evidence: []extractors.EvidencePointer{
			{FieldPath: "question", ChunkIndex: 0, Excerpt: "Wie wechsle ich das Messer?"},
		},
	}}
	h := newIngestionHarness(extractor)

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "# FAQ\n\nFrage: Wie wechsle ich das Messer?\nAntwort: Verriegelung loesen.\n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	h.recordRepo.On("ListApprovedBySchema", mock.Anything, "FAQ").Return([]*models.Record{}, nil)

	var created *models.Record
	h.recordRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.Record) }).
		Return(nil)
	h.evRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	statuses := trackStatuses(h, doc.ID)
	trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)

	assert.Equal(t, []models.DocumentStatus{
		models.DocumentStatusParsing,
		models.DocumentStatusExtracting,
		models.DocumentStatusPendingReview,
	}, *statuses)

	assert.NotNil(t, created)
	assert.Equal(t, models.RecordStatusPending, created.Status)
	assert.Equal(t, "wie wechsle ich das messer?", created.PrimaryKey)
	assert.Equal(t, 1.0, created.CompletenessScore)
}

func TestIngest_ParseFailureIsTerminal(t *testing.T) {
	h := newIngestionHarness(&scriptedExtractor{})

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "   \n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)

	statuses := trackStatuses(h, doc.ID)
	entries := trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)

	assert.Equal(t, models.DocumentStatusParseFailed, (*statuses)[len(*statuses)-1])

	failure := auditAction(*entries, models.AuditActionIngestionFailed)
	assert.NotNil(t, failure)
	assert.Equal(t, string(models.DocumentStatusParseFailed), failure.Details["status"])

	h.chunkRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestIngest_NoRecordsStillReachesReview(t *testing.T) {
	extractor := &scriptedExtractor{result: &extractors.Result{
		Errors:      []string{"question: field is required", "answer: field is required"},
		Confidence:  0.3,
		NeedsReview: true,
	}}
	h := newIngestionHarness(extractor)

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "Allgemeine Hinweise ohne verwertbare Fragen.\n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	statuses := trackStatuses(h, doc.ID)
	trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)

	assert.Equal(t, models.DocumentStatusPendingReview, (*statuses)[len(*statuses)-1])
	h.recordRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIngest_UpstreamExtractionErrorBubblesUp(t *testing.T) {
	upstream := models.NewUpstream("claude extraction request failed", errors.New("connection refused"))
	h := newIngestionHarness(&scriptedExtractor{err: upstream})

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "Frage: Wie?\nAntwort: So.\n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	statuses := trackStatuses(h, doc.ID)
	trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.Error(t, err)
	assert.True(t, models.IsUpstream(err))

	// The document stays retryable; no terminal failure is written.
	assert.NotContains(t, *statuses, models.DocumentStatusExtractionFailed)
}

func TestIngest_ExtractorFailureIsTerminal(t *testing.T) {
	h := newIngestionHarness(&scriptedExtractor{err: models.NewInternal("extractor broke", nil)})

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "Frage: Wie?\nAntwort: So.\n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	statuses := trackStatuses(h, doc.ID)
	entries := trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)

	assert.Equal(t, models.DocumentStatusExtractionFailed, (*statuses)[len(*statuses)-1])
	assert.NotNil(t, auditAction(*entries, models.AuditActionIngestionFailed))
}

func TestIngest_EvidenceFallsBackToFirstChunk(t *testing.T) {
	extractor := &scriptedExtractor{result: &extractors.Result{
		Data:       map[string]interface{}{"question": "Frage?", "answer": "Antwort."},
		Valid:      true,
		Confidence: 0.9,
		Evidence: []extractors.EvidencePointer{
			{FieldPath: "question", ChunkIndex: 99, Excerpt: "Frage?"},
		},
	}}
	h := newIngestionHarness(extractor)

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "Frage: Frage?\nAntwort: Antwort.\n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.recordRepo.On("ListApprovedBySchema", mock.Anything, "FAQ").Return([]*models.Record{}, nil)
	h.recordRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var chunks []*models.Chunk
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { chunks = args.Get(1).([]*models.Chunk) }).
		Return(nil)

	var evidence []*models.Evidence
	h.evRepo.On("CreateBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { evidence = args.Get(1).([]*models.Evidence) }).
		Return(nil)

	statuses := trackStatuses(h, doc.ID)
	trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPendingReview, (*statuses)[len(*statuses)-1])

	assert.NotEmpty(t, chunks)
	assert.Len(t, evidence, 1)
	assert.Equal(t, chunks[0].ID, evidence[0].ChunkID)
}

func TestIngest_CompletionAuditCarriesCounts(t *testing.T) {
	extractor := &scriptedExtractor{result: &extractors.Result{
		Data:       map[string]interface{}{"question": "Frage?", "answer": "Antwort."},
		Valid:      true,
		Confidence: 0.9,
	}}
	h := newIngestionHarness(extractor)

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "Frage: Frage?\nAntwort: Antwort.\n")

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	h.recordRepo.On("ListApprovedBySchema", mock.Anything, "FAQ").Return([]*models.Record{}, nil)
	h.recordRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	h.evRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	trackStatuses(h, doc.ID)
	entries := trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)

	done := auditAction(*entries, models.AuditActionIngestionDone)
	assert.NotNil(t, done)
	assert.Equal(t, 1, done.Details["records_created"])
	assert.Equal(t, 0, done.Details["updates_proposed"])
}

func TestIngest_ExistingApprovedRecordGetsProposedUpdate(t *testing.T) {
	extractor := &scriptedExtractor{result: &extractors.Result{
		Data:       map[string]interface{}{"question": "Frage?", "answer": "Neue Antwort."},
		Valid:      true,
		Confidence: 0.9,
	}}
	h := newIngestionHarness(extractor)

	doc := faqTestDocument()
	path := writeIngestionFixture(t, "Frage: Frage?\nAntwort: Neue Antwort.\n")

	existing := &models.Record{
		ID:         "rec-1",
		SchemaType: "FAQ",
		PrimaryKey: "frage?",
		Status:     models.RecordStatusApproved,
		Data:       map[string]interface{}{"question": "Frage?", "answer": "Alte Antwort."},
	}

	h.docRepo.On("Get", mock.Anything, doc.ID).Return(doc, nil)
	h.blobs.On("DownloadToTemp", mock.Anything, doc.BlobPath).Return(path, nil)
	h.chunkRepo.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	h.recordRepo.On("ListApprovedBySchema", mock.Anything, "FAQ").Return([]*models.Record{existing}, nil)

	var update *models.ProposedUpdate
	h.updateRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { update = args.Get(1).(*models.ProposedUpdate) }).
		Return(nil)

	trackStatuses(h, doc.ID)
	entries := trackAudit(h)

	err := h.service.Ingest(context.Background(), doc.ID)
	assert.NoError(t, err)

	assert.NotNil(t, update)
	assert.Equal(t, "rec-1", update.RecordID)
	h.recordRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	done := auditAction(*entries, models.AuditActionIngestionDone)
	assert.NotNil(t, done)
	assert.Equal(t, 0, done.Details["records_created"])
	assert.Equal(t, 1, done.Details["updates_proposed"])
}
