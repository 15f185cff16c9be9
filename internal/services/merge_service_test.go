package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

func newMergeService(recordRepo *MockRecordRepository, updateRepo *MockUpdateRepository) *MergeService {
	return NewMergeService(schema.NewRegistry(), recordRepo, updateRepo, testLogger())
}

func TestComputeDiff_Added(t *testing.T) {
	s := newMergeService(nil, nil)

	diff := s.ComputeDiff(
		map[string]interface{}{"question": "Frage?"},
		map[string]interface{}{"question": "Frage?", "category": "Wartung"},
	)
	assert.Equal(t, map[string]interface{}{"category": "Wartung"}, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.Changed)
	assert.Equal(t, map[string]interface{}{"question": "Frage?"}, diff.Unchanged)
	assert.False(t, diff.IsEmpty())
}

func TestComputeDiff_RemovedAndChanged(t *testing.T) {
	s := newMergeService(nil, nil)

	diff := s.ComputeDiff(
		map[string]interface{}{"answer": "alt", "category": "Wartung"},
		map[string]interface{}{"answer": "neu"},
	)
	assert.Equal(t, map[string]interface{}{"category": "Wartung"}, diff.Removed)
	assert.Equal(t, models.FieldChange{Old: "alt", New: "neu"}, diff.Changed["answer"])
}

func TestComputeDiff_ListOrderIgnored(t *testing.T) {
	s := newMergeService(nil, nil)

	diff := s.ComputeDiff(
		map[string]interface{}{"warnings": []interface{}{"A", "B"}},
		map[string]interface{}{"warnings": []interface{}{"B", "A"}},
	)
	assert.True(t, diff.IsEmpty())
	assert.Contains(t, diff.Unchanged, "warnings")
}

func TestComputeDiff_IdenticalDataIsEmpty(t *testing.T) {
	s := newMergeService(nil, nil)

	data := map[string]interface{}{"question": "Frage?", "answer": "Antwort."}
	diff := s.ComputeDiff(data, data)
	assert.True(t, diff.IsEmpty())
	assert.Len(t, diff.Unchanged, 2)
}

func TestFindExisting_MatchesApprovedOnly(t *testing.T) {
	recordRepo := new(MockRecordRepository)
	s := newMergeService(recordRepo, nil)

	approved := &models.Record{ID: "r1", SchemaType: "FAQ", PrimaryKey: "frage?", Status: models.RecordStatusApproved}
	recordRepo.On("ListApprovedBySchema", mock.Anything, "FAQ").Return([]*models.Record{approved}, nil)

	found, err := s.FindExisting(context.Background(), "FAQ", "frage?")
	assert.NoError(t, err)
	assert.Equal(t, "r1", found.ID)

	found, err = s.FindExisting(context.Background(), "FAQ", "andere frage?")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreateProposedUpdate_DuplicateYieldsNothing(t *testing.T) {
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(nil, updateRepo)

	existing := &models.Record{
		ID:   "r1",
		Data: map[string]interface{}{"question": "Frage?", "answer": "Antwort."},
	}

	update, err := s.CreateProposedUpdate(context.Background(), existing, map[string]interface{}{
		"question": "Frage?",
		"answer":   "Antwort.",
	}, "doc1")
	assert.NoError(t, err)
	assert.Nil(t, update)
	updateRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateProposedUpdate_StoresPendingUpdate(t *testing.T) {
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(nil, updateRepo)

	existing := &models.Record{
		ID:   "r1",
		Data: map[string]interface{}{"question": "Frage?", "answer": "alt"},
	}
	updateRepo.On("Create", mock.Anything, mock.Anything).Return(nil)

	update, err := s.CreateProposedUpdate(context.Background(), existing, map[string]interface{}{
		"question": "Frage?",
		"answer":   "neu",
	}, "doc1")
	assert.NoError(t, err)
	assert.NotNil(t, update)
	assert.Equal(t, "r1", update.RecordID)
	assert.Equal(t, "doc1", update.SourceDocumentID)
	assert.Equal(t, models.UpdateStatusPending, update.Status)
	assert.Contains(t, update.Diff.Changed, "answer")
	updateRepo.AssertExpectations(t)
}

func TestApplyUpdate_Success(t *testing.T) {
	recordRepo := new(MockRecordRepository)
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(recordRepo, updateRepo)

	record := &models.Record{
		ID:         "r1",
		SchemaType: "FAQ",
		PrimaryKey: "frage?",
		Data:       map[string]interface{}{"question": "Frage?", "answer": "alt"},
		Status:     models.RecordStatusApproved,
		Version:    1,
	}
	update := &models.ProposedUpdate{
		ID:       "u1",
		RecordID: "r1",
		NewData:  map[string]interface{}{"question": "Frage?", "answer": "neu"},
		Diff: &models.DataDiff{
			Changed:   map[string]models.FieldChange{"answer": {Old: "alt", New: "neu"}},
			Unchanged: map[string]interface{}{"question": "Frage?"},
		},
		Status: models.UpdateStatusPending,
	}

	recordRepo.On("Get", mock.Anything, "r1").Return(record, nil)
	recordRepo.On("Update", mock.Anything, record).Return(nil)
	updateRepo.On("Update", mock.Anything, update).Return(nil)

	applied, err := s.ApplyUpdate(context.Background(), update, "moderator")
	assert.NoError(t, err)
	assert.Equal(t, "neu", applied.Data["answer"])
	assert.Equal(t, 2, applied.Version)
	assert.Equal(t, models.UpdateStatusApproved, update.Status)
	assert.Equal(t, "moderator", update.ReviewedBy)
	assert.NotNil(t, update.ReviewedAt)
}

func TestApplyUpdate_ConflictWhenRecordMoved(t *testing.T) {
	recordRepo := new(MockRecordRepository)
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(recordRepo, updateRepo)

	// The record's answer changed after the diff was computed.
	record := &models.Record{
		ID:         "r1",
		SchemaType: "FAQ",
		PrimaryKey: "frage?",
		Data:       map[string]interface{}{"question": "Frage?", "answer": "inzwischen anders"},
		Status:     models.RecordStatusApproved,
		Version:    2,
	}
	update := &models.ProposedUpdate{
		ID:       "u1",
		RecordID: "r1",
		NewData:  map[string]interface{}{"question": "Frage?", "answer": "neu", "category": "Wartung"},
		Diff: &models.DataDiff{
			Added:     map[string]interface{}{"category": "Wartung"},
			Unchanged: map[string]interface{}{"answer": "alt"},
		},
		Status: models.UpdateStatusPending,
	}

	recordRepo.On("Get", mock.Anything, "r1").Return(record, nil)

	_, err := s.ApplyUpdate(context.Background(), update, "moderator")
	assert.Error(t, err)
	assert.True(t, models.IsConflict(err))
	recordRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	updateRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestApplyUpdate_PrimaryKeyChangeReclaims(t *testing.T) {
	recordRepo := new(MockRecordRepository)
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(recordRepo, updateRepo)

	record := &models.Record{
		ID:         "r1",
		SchemaType: "FAQ",
		PrimaryKey: "alte frage?",
		Data:       map[string]interface{}{"question": "Alte Frage?", "answer": "Antwort."},
		Status:     models.RecordStatusApproved,
		Version:    1,
	}
	update := &models.ProposedUpdate{
		ID:       "u1",
		RecordID: "r1",
		NewData:  map[string]interface{}{"question": "Neue Frage?", "answer": "Antwort."},
		Diff: &models.DataDiff{
			Changed:   map[string]models.FieldChange{"question": {Old: "Alte Frage?", New: "Neue Frage?"}},
			Unchanged: map[string]interface{}{"answer": "Antwort."},
		},
		Status: models.UpdateStatusPending,
	}

	recordRepo.On("Get", mock.Anything, "r1").Return(record, nil)
	recordRepo.On("ClaimPrimaryKey", mock.Anything, "FAQ", "neue frage?", "r1").Return(true, nil)
	recordRepo.On("ReleasePrimaryKey", mock.Anything, "FAQ", "alte frage?", "r1").Return(nil)
	recordRepo.On("Update", mock.Anything, record).Return(nil)
	updateRepo.On("Update", mock.Anything, update).Return(nil)

	applied, err := s.ApplyUpdate(context.Background(), update, "moderator")
	assert.NoError(t, err)
	assert.Equal(t, "neue frage?", applied.PrimaryKey)
	recordRepo.AssertExpectations(t)
}

func TestApplyUpdate_PrimaryKeyCollision(t *testing.T) {
	recordRepo := new(MockRecordRepository)
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(recordRepo, updateRepo)

	record := &models.Record{
		ID:         "r1",
		SchemaType: "FAQ",
		PrimaryKey: "alte frage?",
		Data:       map[string]interface{}{"question": "Alte Frage?", "answer": "Antwort."},
		Status:     models.RecordStatusApproved,
	}
	update := &models.ProposedUpdate{
		ID:       "u1",
		RecordID: "r1",
		NewData:  map[string]interface{}{"question": "Besetzte Frage?", "answer": "Antwort."},
		Diff: &models.DataDiff{
			Changed: map[string]models.FieldChange{"question": {Old: "Alte Frage?", New: "Besetzte Frage?"}},
		},
		Status: models.UpdateStatusPending,
	}

	recordRepo.On("Get", mock.Anything, "r1").Return(record, nil)
	recordRepo.On("ClaimPrimaryKey", mock.Anything, "FAQ", "besetzte frage?", "r1").Return(false, nil)

	_, err := s.ApplyUpdate(context.Background(), update, "moderator")
	assert.Error(t, err)
	assert.True(t, models.IsConflict(err))
}

func TestApplyUpdate_AlreadyReviewed(t *testing.T) {
	s := newMergeService(nil, nil)

	now := time.Now()
	update := &models.ProposedUpdate{
		ID:         "u1",
		RecordID:   "r1",
		Status:     models.UpdateStatusApproved,
		ReviewedAt: &now,
	}

	_, err := s.ApplyUpdate(context.Background(), update, "moderator")
	assert.Error(t, err)
	assert.True(t, models.IsConflict(err))
}

func TestRejectUpdate(t *testing.T) {
	updateRepo := new(MockUpdateRepository)
	s := newMergeService(nil, updateRepo)

	update := &models.ProposedUpdate{ID: "u1", RecordID: "r1", Status: models.UpdateStatusPending}
	updateRepo.On("Update", mock.Anything, update).Return(nil)

	err := s.RejectUpdate(context.Background(), update, "moderator")
	assert.NoError(t, err)
	assert.Equal(t, models.UpdateStatusRejected, update.Status)
	assert.Equal(t, "moderator", update.ReviewedBy)

	// A second decision on the same update is a conflict.
	err = s.RejectUpdate(context.Background(), update, "moderator")
	assert.Error(t, err)
	assert.True(t, models.IsConflict(err))
}
