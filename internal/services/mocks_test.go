package services

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
)

func testLogger() *log.Logger {
	return log.New(os.Stdout, "[TEST] ", 0)
}

// ============================================================================
// Mock Repositories
// ============================================================================

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func (m *MockDocumentRepository) List(ctx context.Context, filter repositories.DocumentFilter) ([]*models.Document, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Document), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Create(ctx context.Context, record *models.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Record), args.Error(1)
}

func (m *MockRecordRepository) Update(ctx context.Context, record *models.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) List(ctx context.Context, filter repositories.RecordFilter) ([]*models.Record, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Record), args.Error(1)
}

func (m *MockRecordRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.Record, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Record), args.Error(1)
}

func (m *MockRecordRepository) ListApprovedBySchema(ctx context.Context, schemaType string) ([]*models.Record, error) {
	args := m.Called(ctx, schemaType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Record), args.Error(1)
}

func (m *MockRecordRepository) ClaimPrimaryKey(ctx context.Context, schemaType, primaryKey, recordID string) (bool, error) {
	args := m.Called(ctx, schemaType, primaryKey, recordID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRecordRepository) ReleasePrimaryKey(ctx context.Context, schemaType, primaryKey, recordID string) error {
	args := m.Called(ctx, schemaType, primaryKey, recordID)
	return args.Error(0)
}

func (m *MockRecordRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockUpdateRepository struct {
	mock.Mock
}

func (m *MockUpdateRepository) Create(ctx context.Context, update *models.ProposedUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockUpdateRepository) Get(ctx context.Context, id string) (*models.ProposedUpdate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProposedUpdate), args.Error(1)
}

func (m *MockUpdateRepository) Update(ctx context.Context, update *models.ProposedUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockUpdateRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.ProposedUpdate, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProposedUpdate), args.Error(1)
}

func (m *MockUpdateRepository) ListPending(ctx context.Context) ([]*models.ProposedUpdate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProposedUpdate), args.Error(1)
}

func (m *MockUpdateRepository) DeleteByRecord(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) CreateBatch(ctx context.Context, chunks []*models.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) Get(ctx context.Context, id string) (*models.Chunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chunk), args.Error(1)
}

func (m *MockChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Chunk), args.Error(1)
}

func (m *MockChunkRepository) DeleteByDocument(ctx context.Context, documentID string) ([]string, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockEvidenceRepository struct {
	mock.Mock
}

func (m *MockEvidenceRepository) CreateBatch(ctx context.Context, evidence []*models.Evidence) error {
	args := m.Called(ctx, evidence)
	return args.Error(0)
}

func (m *MockEvidenceRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.Evidence, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Evidence), args.Error(1)
}

func (m *MockEvidenceRepository) NullifyChunks(ctx context.Context, chunkIDs []string) error {
	args := m.Called(ctx, chunkIDs)
	return args.Error(0)
}

func (m *MockEvidenceRepository) DeleteByRecord(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

type MockAttachmentRepository struct {
	mock.Mock
}

func (m *MockAttachmentRepository) Create(ctx context.Context, attachment *models.RecordAttachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

func (m *MockAttachmentRepository) Get(ctx context.Context, id string) (*models.RecordAttachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecordAttachment), args.Error(1)
}

func (m *MockAttachmentRepository) ListByRecord(ctx context.Context, recordID string) ([]*models.RecordAttachment, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecordAttachment), args.Error(1)
}

func (m *MockAttachmentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, objectPath, reader, size, contentType)
	return args.Error(0)
}

func (m *MockBlobStore) Get(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockBlobStore) DownloadToTemp(ctx context.Context, objectPath string) (string, error) {
	args := m.Called(ctx, objectPath)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, objectPath string) error {
	args := m.Called(ctx, objectPath)
	return args.Error(0)
}

func (m *MockBlobStore) PresignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectPath, expiry)
	return args.String(0), args.Error(1)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditLog, error) {
	args := m.Called(ctx, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *MockAuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}
