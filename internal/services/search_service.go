package services

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/repositories"
)

const (
	defaultSearchLimit = 20

	primaryKeyHitScore    = 2.0
	occurrenceScore       = 0.5
	maxOccurrenceScore    = 3.0
	completenessScoreBase = 0.5
)

// SearchService answers keyword queries over the approved knowledge base.
// Only approved records are searchable; records under review are invisible.
type SearchService struct {
	recordRepo repositories.RecordRepository
	logger     *log.Logger
}

func NewSearchService(recordRepo repositories.RecordRepository, logger *log.Logger) *SearchService {
	return &SearchService{recordRepo: recordRepo, logger: logger}
}

// SearchRequest is one keyword query.
type SearchRequest struct {
	Query      string
	Department models.Department
	SchemaType string
	Limit      int
}

// SearchResult pairs a record with its relevance score.
type SearchResult struct {
	Record *models.Record `json:"record"`
	Score  float64        `json:"score"`
}

// Search scores every approved record against the query. A primary-key hit
// weighs heaviest, data occurrences add capped weight, and the total scales
// with record completeness. Zero-score records are dropped.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	query := strings.ToLower(strings.TrimSpace(req.Query))
	if query == "" {
		return nil, models.NewValidation("search query is required")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	records, err := s.recordRepo.List(ctx, repositories.RecordFilter{
		Department: req.Department,
		SchemaType: req.SchemaType,
		Status:     models.RecordStatusApproved,
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(records))
	for _, record := range records {
		score := scoreRecord(record, query)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{Record: record, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func scoreRecord(record *models.Record, query string) float64 {
	score := 0.0

	if strings.Contains(strings.ToLower(record.PrimaryKey), query) {
		score += primaryKeyHitScore
	}

	occurrences := strings.Count(dataText(record.Data), query)
	occScore := occurrenceScore * float64(occurrences)
	if occScore > maxOccurrenceScore {
		occScore = maxOccurrenceScore
	}
	score += occScore

	if score == 0 {
		return 0
	}
	return score * (completenessScoreBase + completenessScoreBase*record.CompletenessScore)
}

// dataText flattens the record data into one lowercased haystack.
func dataText(data map[string]interface{}) string {
	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(raw))
}
