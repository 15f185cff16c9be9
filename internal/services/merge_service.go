package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

// MergeService deduplicates extracted records against the approved knowledge
// base. New data matching an approved record's primary key becomes a proposed
// update for moderator review instead of a duplicate record.
type MergeService struct {
	registry   *schema.Registry
	scorer     *schema.Scorer
	recordRepo repositories.RecordRepository
	updateRepo repositories.UpdateRepository
	logger     *log.Logger
}

func NewMergeService(
	registry *schema.Registry,
	recordRepo repositories.RecordRepository,
	updateRepo repositories.UpdateRepository,
	logger *log.Logger,
) *MergeService {
	return &MergeService{
		registry:   registry,
		scorer:     schema.NewScorer(registry),
		recordRepo: recordRepo,
		updateRepo: updateRepo,
		logger:     logger,
	}
}

// valueEqual compares two data values treating lists as unordered.
var valueCmpOpts = cmp.Options{
	cmpopts.SortSlices(func(a, b interface{}) bool { return fmt.Sprint(a) < fmt.Sprint(b) }),
	cmpopts.SortSlices(func(a, b string) bool { return a < b }),
	cmpopts.EquateEmpty(),
}

func valueEqual(a, b interface{}) bool {
	return cmp.Equal(a, b, valueCmpOpts...)
}

// ComputeDiff splits the fields of old and new data into added, removed,
// changed and unchanged. List-valued fields compare ignoring element order.
func (s *MergeService) ComputeDiff(oldData, newData map[string]interface{}) *models.DataDiff {
	diff := &models.DataDiff{
		Added:     map[string]interface{}{},
		Removed:   map[string]interface{}{},
		Changed:   map[string]models.FieldChange{},
		Unchanged: map[string]interface{}{},
	}

	for field, newValue := range newData {
		oldValue, ok := oldData[field]
		switch {
		case !ok:
			diff.Added[field] = newValue
		case valueEqual(oldValue, newValue):
			diff.Unchanged[field] = oldValue
		default:
			diff.Changed[field] = models.FieldChange{Old: oldValue, New: newValue}
		}
	}
	for field, oldValue := range oldData {
		if _, ok := newData[field]; !ok {
			diff.Removed[field] = oldValue
		}
	}
	return diff
}

// FindExisting looks for an approved record holding (schemaType, primaryKey).
// Only approved records participate in matching; it returns nil when none.
func (s *MergeService) FindExisting(ctx context.Context, schemaType, primaryKey string) (*models.Record, error) {
	approved, err := s.recordRepo.ListApprovedBySchema(ctx, schemaType)
	if err != nil {
		return nil, err
	}
	for _, record := range approved {
		if record.PrimaryKey == primaryKey {
			return record, nil
		}
	}
	return nil, nil
}

// CreateProposedUpdate stores the new data as a pending update on the
// existing record. An empty diff is a pure duplicate and yields no update.
func (s *MergeService) CreateProposedUpdate(ctx context.Context, existing *models.Record, newData map[string]interface{}, sourceDocumentID string) (*models.ProposedUpdate, error) {
	diff := s.ComputeDiff(existing.Data, newData)
	if diff.IsEmpty() {
		s.logger.Printf("[MERGE] Duplicate of record %s, no update proposed", existing.ID)
		return nil, nil
	}

	update := &models.ProposedUpdate{
		ID:               uuid.New().String(),
		RecordID:         existing.ID,
		SourceDocumentID: sourceDocumentID,
		NewData:          newData,
		Diff:             diff,
		Status:           models.UpdateStatusPending,
		CreatedAt:        time.Now(),
	}
	if err := s.updateRepo.Create(ctx, update); err != nil {
		return nil, err
	}

	s.logger.Printf("[MERGE] Proposed update %s for record %s (%d changed, %d added, %d removed)",
		update.ID, existing.ID, len(diff.Changed), len(diff.Added), len(diff.Removed))
	return update, nil
}

// ApplyUpdate applies an approved proposed update to its record. Fields the
// diff recorded as unchanged must still match the record's current data;
// otherwise the record moved since the diff was computed and the apply is
// rejected as a conflict.
func (s *MergeService) ApplyUpdate(ctx context.Context, update *models.ProposedUpdate, reviewer string) (*models.Record, error) {
	if update.Status != models.UpdateStatusPending {
		return nil, models.NewConflict("update %s already reviewed: %s", update.ID, update.Status)
	}

	record, err := s.recordRepo.Get(ctx, update.RecordID)
	if err != nil {
		return nil, err
	}

	for field, value := range update.Diff.Unchanged {
		if !valueEqual(record.Data[field], value) {
			return nil, models.NewConflict("record %s changed since the update was proposed: field %s", record.ID, field)
		}
	}

	descriptor, err := s.registry.SchemaByName(record.SchemaType)
	if err != nil {
		return nil, err
	}

	newPK := descriptor.ComputePrimaryKey(update.NewData)
	if newPK != record.PrimaryKey {
		claimed, err := s.recordRepo.ClaimPrimaryKey(ctx, record.SchemaType, newPK, record.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, models.NewConflict("another approved record already holds key %q", newPK)
		}
		if err := s.recordRepo.ReleasePrimaryKey(ctx, record.SchemaType, record.PrimaryKey, record.ID); err != nil {
			return nil, err
		}
	}

	score, err := s.scorer.Score(descriptor.DocType, update.NewData)
	if err != nil {
		return nil, err
	}

	record.Data = update.NewData
	record.PrimaryKey = newPK
	record.CompletenessScore = score
	record.Version++
	record.UpdatedAt = time.Now()
	if err := s.recordRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	now := time.Now()
	update.Status = models.UpdateStatusApproved
	update.ReviewedAt = &now
	update.ReviewedBy = reviewer
	if err := s.updateRepo.Update(ctx, update); err != nil {
		return nil, err
	}

	s.logger.Printf("[MERGE] Applied update %s to record %s, now version %d", update.ID, record.ID, record.Version)
	return record, nil
}

// RejectUpdate marks a pending update rejected. The record stays untouched.
func (s *MergeService) RejectUpdate(ctx context.Context, update *models.ProposedUpdate, reviewer string) error {
	if update.Status != models.UpdateStatusPending {
		return models.NewConflict("update %s already reviewed: %s", update.ID, update.Status)
	}

	now := time.Now()
	update.Status = models.UpdateStatusRejected
	update.ReviewedAt = &now
	update.ReviewedBy = reviewer
	return s.updateRepo.Update(ctx, update)
}
