package services

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

// Approved records untouched for this long count as stale on the dashboard.
const staleRecordAge = 180 * 24 * time.Hour

// DashboardService aggregates the moderator dashboard numbers and exposes
// the schema catalog.
type DashboardService struct {
	registry   *schema.Registry
	docRepo    repositories.DocumentRepository
	recordRepo repositories.RecordRepository
	updateRepo repositories.UpdateRepository
	auditRepo  repositories.AuditRepository
	jobRepo    repositories.JobRepository
	logger     *log.Logger
}

func NewDashboardService(
	registry *schema.Registry,
	docRepo repositories.DocumentRepository,
	recordRepo repositories.RecordRepository,
	updateRepo repositories.UpdateRepository,
	auditRepo repositories.AuditRepository,
	jobRepo repositories.JobRepository,
	logger *log.Logger,
) *DashboardService {
	return &DashboardService{
		registry:   registry,
		docRepo:    docRepo,
		recordRepo: recordRepo,
		updateRepo: updateRepo,
		auditRepo:  auditRepo,
		jobRepo:    jobRepo,
		logger:     logger,
	}
}

// MissingFieldCount is one entry of the top-missing-fields board.
type MissingFieldCount struct {
	Field string `json:"field"`
	Count int    `json:"count"`
}

// DashboardStats is the moderator landing-page summary.
type DashboardStats struct {
	DocumentsByStatus   map[string]int      `json:"documents_by_status"`
	RecordsByStatus     map[string]int      `json:"records_by_status"`
	RecordsByDepartment map[string]int      `json:"records_by_department"`
	PendingReviewCount  int                 `json:"pending_review_count"`
	PendingUpdateCount  int                 `json:"pending_update_count"`
	AvgCompleteness     float64             `json:"avg_completeness"`
	StaleRecordCount    int                 `json:"stale_record_count"`
	TopMissingFields    []MissingFieldCount `json:"top_missing_fields"`
	QueueLength         int64               `json:"ingestion_queue_length"`
}

// Stats computes the dashboard summary from the live stores.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	docs, err := s.docRepo.List(ctx, repositories.DocumentFilter{})
	if err != nil {
		return nil, err
	}
	records, err := s.recordRepo.List(ctx, repositories.RecordFilter{})
	if err != nil {
		return nil, err
	}
	pendingUpdates, err := s.updateRepo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	queueLength, err := s.jobRepo.QueueLength(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		DocumentsByStatus:   map[string]int{},
		RecordsByStatus:     map[string]int{},
		RecordsByDepartment: map[string]int{},
		PendingUpdateCount:  len(pendingUpdates),
		TopMissingFields:    []MissingFieldCount{},
		QueueLength:         queueLength,
	}

	for _, doc := range docs {
		stats.DocumentsByStatus[string(doc.Status)]++
	}

	scorer := schema.NewScorer(s.registry)
	missingCounts := map[string]int{}
	totalCompleteness := 0.0
	staleCutoff := time.Now().Add(-staleRecordAge)

	for _, record := range records {
		stats.RecordsByStatus[string(record.Status)]++
		stats.RecordsByDepartment[string(record.Department)]++
		totalCompleteness += record.CompletenessScore

		switch record.Status {
		case models.RecordStatusPending, models.RecordStatusNeedsReview:
			stats.PendingReviewCount++
		case models.RecordStatusApproved:
			if record.UpdatedAt.Before(staleCutoff) {
				stats.StaleRecordCount++
			}
		}

		if descriptor, err := s.registry.SchemaByName(record.SchemaType); err == nil {
			if missing, err := scorer.Missing(descriptor.DocType, record.Data); err == nil {
				for _, field := range missing {
					missingCounts[record.SchemaType+"."+field]++
				}
			}
		}
	}

	if len(records) > 0 {
		stats.AvgCompleteness = totalCompleteness / float64(len(records))
	}

	for field, count := range missingCounts {
		stats.TopMissingFields = append(stats.TopMissingFields, MissingFieldCount{Field: field, Count: count})
	}
	sort.Slice(stats.TopMissingFields, func(i, j int) bool {
		if stats.TopMissingFields[i].Count != stats.TopMissingFields[j].Count {
			return stats.TopMissingFields[i].Count > stats.TopMissingFields[j].Count
		}
		return stats.TopMissingFields[i].Field < stats.TopMissingFields[j].Field
	})
	if len(stats.TopMissingFields) > 10 {
		stats.TopMissingFields = stats.TopMissingFields[:10]
	}

	return stats, nil
}

// KnowledgeStats breaks the record base down by status, department and schema.
type KnowledgeStats struct {
	TotalRecords        int            `json:"total_records"`
	RecordsByStatus     map[string]int `json:"records_by_status"`
	RecordsByDepartment map[string]int `json:"records_by_department"`
	RecordsBySchema     map[string]int `json:"records_by_schema"`
}

// KnowledgeCounts aggregates record counts for the knowledge base view.
func (s *DashboardService) KnowledgeCounts(ctx context.Context) (*KnowledgeStats, error) {
	records, err := s.recordRepo.List(ctx, repositories.RecordFilter{})
	if err != nil {
		return nil, err
	}

	stats := &KnowledgeStats{
		TotalRecords:        len(records),
		RecordsByStatus:     map[string]int{},
		RecordsByDepartment: map[string]int{},
		RecordsBySchema:     map[string]int{},
	}
	for _, record := range records {
		stats.RecordsByStatus[string(record.Status)]++
		stats.RecordsByDepartment[string(record.Department)]++
		stats.RecordsBySchema[record.SchemaType]++
	}
	return stats, nil
}

// Activity returns the newest audit entries across the system.
func (s *DashboardService) Activity(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.auditRepo.ListRecent(ctx, limit)
}

// SchemaInfo is the catalog entry of one record class.
type SchemaInfo struct {
	Name            string   `json:"name"`
	DocType         string   `json:"doc_type"`
	Description     string   `json:"description"`
	RequiredFields  []string `json:"required_fields"`
	PrimaryKeyLoad  []string `json:"primary_key_fields"`
	FieldCount      int      `json:"field_count"`
	ApprovedRecords int      `json:"approved_records"`
}

// Schemas returns the full schema catalog with approved-record counts.
func (s *DashboardService) Schemas(ctx context.Context) ([]SchemaInfo, error) {
	infos := make([]SchemaInfo, 0, len(s.registry.All()))
	for name, descriptor := range s.registry.All() {
		approved, err := s.recordRepo.ListApprovedBySchema(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, SchemaInfo{
			Name:            descriptor.Name,
			DocType:         string(descriptor.DocType),
			Description:     descriptor.Description,
			RequiredFields:  descriptor.RequiredFields,
			PrimaryKeyLoad:  descriptor.PrimaryKeyFields(),
			FieldCount:      len(descriptor.Fields),
			ApprovedRecords: len(approved),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DepartmentCatalog lists the doc types a department may upload.
type DepartmentCatalog struct {
	Department string   `json:"department"`
	DocTypes   []string `json:"doc_types"`
}

// Departments returns the upload permission matrix.
func (s *DashboardService) Departments() []DepartmentCatalog {
	catalogs := make([]DepartmentCatalog, 0, len(models.AllDepartments))
	for _, dep := range models.AllDepartments {
		types := s.registry.TypesFor(dep)
		names := make([]string, 0, len(types))
		for _, t := range types {
			names = append(names, string(t))
		}
		catalogs = append(catalogs, DepartmentCatalog{
			Department: string(dep),
			DocTypes:   names,
		})
	}
	return catalogs
}
