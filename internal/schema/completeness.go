package schema

import (
	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// Scorer computes how much of a record's required payload is present.
type Scorer struct {
	registry *Registry
}

// NewScorer creates a completeness scorer backed by the registry.
func NewScorer(registry *Registry) *Scorer {
	return &Scorer{registry: registry}
}

// CompletenessDetails is the full breakdown behind a score.
type CompletenessDetails struct {
	Score          float64  `json:"score"`
	TotalRequired  int      `json:"total_required"`
	FilledRequired int      `json:"filled_required"`
	MissingFields  []string `json:"missing_fields"`
	OptionalFilled int      `json:"optional_filled"`
	TotalOptional  int      `json:"total_optional"`
}

// Score returns filled_required / total_required in [0, 1]; 1.0 when the
// schema requires nothing.
func (s *Scorer) Score(docType models.DocType, data map[string]interface{}) (float64, error) {
	details, err := s.Details(docType, data)
	if err != nil {
		return 0, err
	}
	return details.Score, nil
}

// Missing returns the ordered list of required fields that are unfilled.
func (s *Scorer) Missing(docType models.DocType, data map[string]interface{}) ([]string, error) {
	details, err := s.Details(docType, data)
	if err != nil {
		return nil, err
	}
	return details.MissingFields, nil
}

// Details computes the score together with the per-field breakdown.
func (s *Scorer) Details(docType models.DocType, data map[string]interface{}) (*CompletenessDetails, error) {
	descriptor, err := s.registry.SchemaFor(docType)
	if err != nil {
		return nil, err
	}

	details := &CompletenessDetails{
		TotalRequired: len(descriptor.RequiredFields),
		MissingFields: []string{},
	}

	for _, name := range descriptor.RequiredFields {
		if isEmptyValue(data[name]) {
			details.MissingFields = append(details.MissingFields, name)
		} else {
			details.FilledRequired++
		}
	}

	for _, f := range descriptor.Fields {
		if f.Required {
			continue
		}
		details.TotalOptional++
		if !isEmptyValue(data[f.Name]) {
			details.OptionalFilled++
		}
	}

	if details.TotalRequired == 0 {
		details.Score = 1.0
	} else {
		details.Score = float64(details.FilledRequired) / float64(details.TotalRequired)
	}

	return details, nil
}
