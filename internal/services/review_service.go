package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
	"github.com/fathmn/jokari-knowledge-hub/internal/storage"
)

const attachmentURLExpiry = time.Hour

// ReviewService drives the moderator workflow: the review queue, record
// decisions, proposed updates, and record attachments. Audit entries are
// written only after a state change actually happened; a rejected conflict
// leaves no trace.
type ReviewService struct {
	registry       *schema.Registry
	scorer         *schema.Scorer
	merge          *MergeService
	blobs          storage.BlobStore
	docRepo        repositories.DocumentRepository
	recordRepo     repositories.RecordRepository
	evRepo         repositories.EvidenceRepository
	updateRepo     repositories.UpdateRepository
	auditRepo      repositories.AuditRepository
	attachmentRepo repositories.AttachmentRepository
	logger         *log.Logger
}

func NewReviewService(
	registry *schema.Registry,
	merge *MergeService,
	blobs storage.BlobStore,
	docRepo repositories.DocumentRepository,
	recordRepo repositories.RecordRepository,
	evRepo repositories.EvidenceRepository,
	updateRepo repositories.UpdateRepository,
	auditRepo repositories.AuditRepository,
	attachmentRepo repositories.AttachmentRepository,
	logger *log.Logger,
) *ReviewService {
	return &ReviewService{
		registry:       registry,
		scorer:         schema.NewScorer(registry),
		merge:          merge,
		blobs:          blobs,
		docRepo:        docRepo,
		recordRepo:     recordRepo,
		evRepo:         evRepo,
		updateRepo:     updateRepo,
		auditRepo:      auditRepo,
		attachmentRepo: attachmentRepo,
		logger:         logger,
	}
}

// QueueFilter narrows and orders the review queue. SortBy is one of
// "completeness", "created" or "updated"; the default surfaces the least
// complete records first.
type QueueFilter struct {
	Department models.Department
	SchemaType string
	Status     models.RecordStatus
	SortBy     string
	Limit      int
	Offset     int
}

// Queue returns records awaiting review. Without an explicit status filter it
// covers both pending and needs_review records.
func (s *ReviewService) Queue(ctx context.Context, filter QueueFilter) ([]*models.Record, error) {
	statuses := []models.RecordStatus{models.RecordStatusPending, models.RecordStatusNeedsReview}
	if filter.Status != "" {
		statuses = []models.RecordStatus{filter.Status}
	}

	var queue []*models.Record
	for _, status := range statuses {
		records, err := s.recordRepo.List(ctx, repositories.RecordFilter{
			Department: filter.Department,
			SchemaType: filter.SchemaType,
			Status:     status,
		})
		if err != nil {
			return nil, err
		}
		queue = append(queue, records...)
	}

	sortQueue(queue, filter.SortBy)
	return paginateRecords(queue, filter.Offset, filter.Limit), nil
}

func sortQueue(records []*models.Record, sortBy string) {
	sort.SliceStable(records, func(i, j int) bool {
		switch sortBy {
		case "created":
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		case "updated":
			return records[i].UpdatedAt.Before(records[j].UpdatedAt)
		default:
			if records[i].CompletenessScore != records[j].CompletenessScore {
				return records[i].CompletenessScore < records[j].CompletenessScore
			}
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
	})
}

// RecordDetail bundles everything a moderator sees for one record.
type RecordDetail struct {
	Record         *models.Record             `json:"record"`
	Evidence       []*models.Evidence         `json:"evidence"`
	PendingUpdates []*models.ProposedUpdate   `json:"pending_updates"`
	Attachments    []*models.RecordAttachment `json:"attachments"`
	AuditTrail     []*models.AuditLog         `json:"audit_trail"`
	MissingFields  []string                   `json:"missing_fields"`
}

// Detail loads the record with its evidence, open updates, attachments and
// audit trail.
func (s *ReviewService) Detail(ctx context.Context, recordID string) (*RecordDetail, error) {
	record, err := s.recordRepo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	evidence, err := s.evRepo.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	updates, err := s.updateRepo.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	pendingUpdates := make([]*models.ProposedUpdate, 0, len(updates))
	for _, u := range updates {
		if u.Status == models.UpdateStatusPending {
			pendingUpdates = append(pendingUpdates, u)
		}
	}

	attachments, err := s.attachmentsWithURLs(ctx, recordID)
	if err != nil {
		return nil, err
	}

	trail, err := s.auditRepo.ListByEntity(ctx, recordID)
	if err != nil {
		return nil, err
	}

	descriptor, err := s.registry.SchemaByName(record.SchemaType)
	if err != nil {
		return nil, err
	}
	missing, err := s.scorer.Missing(descriptor.DocType, record.Data)
	if err != nil {
		return nil, err
	}

	return &RecordDetail{
		Record:         record,
		Evidence:       evidence,
		PendingUpdates: pendingUpdates,
		Attachments:    attachments,
		AuditTrail:     trail,
		MissingFields:  missing,
	}, nil
}

// Approve moves a record under review to approved. The (schema_type,
// primary_key) pair must be free among approved records.
func (s *ReviewService) Approve(ctx context.Context, recordID, reviewer string) (*models.Record, error) {
	record, err := s.recordRepo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return nil, models.NewConflict("record %s already reviewed: %s", recordID, record.Status)
	}

	claimed, err := s.recordRepo.ClaimPrimaryKey(ctx, record.SchemaType, record.PrimaryKey, record.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, models.NewConflict("another approved %s record already holds key %q", record.SchemaType, record.PrimaryKey)
	}

	record.Status = models.RecordStatusApproved
	record.UpdatedAt = time.Now()
	if err := s.recordRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, models.AuditActionApprove, record.ID, reviewer, nil)
	s.logger.Printf("[REVIEW] Record %s approved by %s", record.ID, reviewer)
	s.maybeCompleteDocument(ctx, record.DocumentID)
	return record, nil
}

// maybeCompleteDocument moves a document from pending_review to completed
// once every record extracted from it has been reviewed.
func (s *ReviewService) maybeCompleteDocument(ctx context.Context, documentID string) {
	if documentID == "" {
		return
	}

	records, err := s.recordRepo.ListByDocument(ctx, documentID)
	if err != nil {
		s.logger.Printf("[REVIEW] Failed to list records of document %s: %v", documentID, err)
		return
	}
	for _, r := range records {
		if !r.Status.IsTerminal() {
			return
		}
	}

	doc, err := s.docRepo.Get(ctx, documentID)
	if err != nil || doc.Status != models.DocumentStatusPendingReview {
		return
	}
	if err := s.docRepo.UpdateStatus(ctx, documentID, models.DocumentStatusCompleted, ""); err != nil {
		s.logger.Printf("[REVIEW] Failed to complete document %s: %v", documentID, err)
	}
}

// Reject moves a record under review to rejected. Rejecting an already
// rejected record is a no-op.
func (s *ReviewService) Reject(ctx context.Context, recordID, reviewer, reason string) (*models.Record, error) {
	record, err := s.recordRepo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.RecordStatusRejected {
		return record, nil
	}
	if record.Status == models.RecordStatusApproved {
		return nil, models.NewConflict("record %s already reviewed: %s", recordID, record.Status)
	}

	record.Status = models.RecordStatusRejected
	record.UpdatedAt = time.Now()
	if err := s.recordRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	var details map[string]interface{}
	if reason != "" {
		details = map[string]interface{}{"reason": reason}
	}
	s.appendAudit(ctx, models.AuditActionReject, record.ID, reviewer, details)
	s.logger.Printf("[REVIEW] Record %s rejected by %s", record.ID, reviewer)
	s.maybeCompleteDocument(ctx, record.DocumentID)
	return record, nil
}

// Edit replaces the data of a record still under review. The primary key and
// completeness score are recomputed; the status stays as it is. Approved and
// rejected records are frozen.
func (s *ReviewService) Edit(ctx context.Context, recordID, editor string, newData map[string]interface{}) (*models.Record, error) {
	if len(newData) == 0 {
		return nil, models.NewValidation("edit requires a non-empty data payload")
	}

	record, err := s.recordRepo.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status.IsTerminal() {
		return nil, models.NewConflict("record %s is %s and cannot be edited", recordID, record.Status)
	}

	descriptor, err := s.registry.SchemaByName(record.SchemaType)
	if err != nil {
		return nil, err
	}

	newPK := descriptor.ComputePrimaryKey(newData)
	if newPK == "" {
		newPK = record.ID
	}

	diff := s.merge.ComputeDiff(record.Data, newData)

	score, err := s.scorer.Score(descriptor.DocType, newData)
	if err != nil {
		return nil, err
	}

	record.Data = newData
	record.PrimaryKey = newPK
	record.CompletenessScore = score
	record.UpdatedAt = time.Now()

	if err := s.recordRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, models.AuditActionEdit, record.ID, editor, map[string]interface{}{
		"fields_changed": len(diff.Changed) + len(diff.Added) + len(diff.Removed),
	})
	return record, nil
}

// PendingUpdates returns all open proposed updates.
func (s *ReviewService) PendingUpdates(ctx context.Context) ([]*models.ProposedUpdate, error) {
	return s.updateRepo.ListPending(ctx)
}

// GetUpdate returns one proposed update.
func (s *ReviewService) GetUpdate(ctx context.Context, updateID string) (*models.ProposedUpdate, error) {
	return s.updateRepo.Get(ctx, updateID)
}

// ApproveUpdate applies a proposed update to its record.
func (s *ReviewService) ApproveUpdate(ctx context.Context, updateID, reviewer string) (*models.Record, error) {
	update, err := s.updateRepo.Get(ctx, updateID)
	if err != nil {
		return nil, err
	}

	record, err := s.merge.ApplyUpdate(ctx, update, reviewer)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, models.AuditActionApproveUpdate, record.ID, reviewer, map[string]interface{}{
		"update_id": update.ID,
		"version":   record.Version,
	})
	return record, nil
}

// RejectUpdate discards a proposed update; the record stays as it is.
func (s *ReviewService) RejectUpdate(ctx context.Context, updateID, reviewer string) error {
	update, err := s.updateRepo.Get(ctx, updateID)
	if err != nil {
		return err
	}

	if err := s.merge.RejectUpdate(ctx, update, reviewer); err != nil {
		return err
	}

	s.appendAudit(ctx, models.AuditActionRejectUpdate, update.RecordID, reviewer, map[string]interface{}{
		"update_id": update.ID,
	})
	return nil
}

// AddAttachment stores a file against a record.
func (s *ReviewService) AddAttachment(ctx context.Context, recordID, filename string, content io.Reader, size int64, contentType string) (*models.RecordAttachment, error) {
	if _, err := s.recordRepo.Get(ctx, recordID); err != nil {
		return nil, err
	}

	attachmentID := uuid.New().String()
	blobPath := "attachments/" + recordID + "/" + attachmentID + "_" + filename

	if err := s.blobs.Put(ctx, blobPath, content, size, contentType); err != nil {
		return nil, err
	}

	attachment := &models.RecordAttachment{
		ID:        attachmentID,
		RecordID:  recordID,
		Filename:  filename,
		FileType:  contentType,
		BlobPath:  blobPath,
		FileSize:  fmt.Sprintf("%d", size),
		CreatedAt: time.Now(),
	}
	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		if delErr := s.blobs.Delete(ctx, blobPath); delErr != nil {
			s.logger.Printf("[REVIEW] Failed to clean up attachment blob %s: %v", blobPath, delErr)
		}
		return nil, err
	}
	return attachment, nil
}

// Attachments lists a record's attachments with fresh download URLs.
func (s *ReviewService) Attachments(ctx context.Context, recordID string) ([]*models.RecordAttachment, error) {
	if _, err := s.recordRepo.Get(ctx, recordID); err != nil {
		return nil, err
	}
	return s.attachmentsWithURLs(ctx, recordID)
}

// DeleteAttachment removes an attachment and its blob.
func (s *ReviewService) DeleteAttachment(ctx context.Context, attachmentID string) error {
	attachment, err := s.attachmentRepo.Get(ctx, attachmentID)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, attachment.BlobPath); err != nil {
		s.logger.Printf("[REVIEW] Failed to delete attachment blob %s: %v", attachment.BlobPath, err)
	}
	return s.attachmentRepo.Delete(ctx, attachmentID)
}

func (s *ReviewService) attachmentsWithURLs(ctx context.Context, recordID string) ([]*models.RecordAttachment, error) {
	attachments, err := s.attachmentRepo.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	for _, attachment := range attachments {
		url, err := s.blobs.PresignedURL(ctx, attachment.BlobPath, attachmentURLExpiry)
		if err != nil {
			s.logger.Printf("[REVIEW] Failed to presign attachment %s: %v", attachment.ID, err)
			continue
		}
		attachment.URL = url
	}
	return attachments, nil
}

func (s *ReviewService) appendAudit(ctx context.Context, action, recordID, actor string, details map[string]interface{}) {
	entry := &models.AuditLog{
		ID:         uuid.New().String(),
		Action:     action,
		EntityType: "record",
		EntityID:   recordID,
		Actor:      actor,
		Details:    details,
		Timestamp:  time.Now(),
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Printf("[REVIEW] Failed to write audit entry %s for %s: %v", action, recordID, err)
	}
}

func paginateRecords(records []*models.Record, offset, limit int) []*models.Record {
	if offset > 0 {
		if offset >= len(records) {
			return []*models.Record{}
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
