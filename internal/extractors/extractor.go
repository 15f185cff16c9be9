// Package extractors turns document text into candidate structured records
// for a target schema. Two implementations share the Extractor contract: a
// rule-based extractor for development and stereotyped documents, and a
// Claude-backed extractor for production. Selection happens once at startup
// by provider name.
package extractors

import (
	"context"
	"fmt"
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

// EvidencePointer links one extracted field to the source text behind it.
type EvidencePointer struct {
	FieldPath   string
	Excerpt     string
	ChunkIndex  int
	StartOffset *int
	EndOffset   *int
}

// Context carries document metadata into an extraction call.
type Context struct {
	Department string
	DocType    string
	DocumentID string
	Filename   string
	ChunkIndex int
}

// ExtractedRecord is one candidate record found in the text.
type ExtractedRecord struct {
	Data          map[string]interface{}
	SchemaType    string
	Evidence      []EvidencePointer
	Confidence    float64
	SourceSection string
}

// Result is the outcome of one extraction. Either Records carries multiple
// candidates (multi-record mode) or Data carries the single legacy-shaped
// one; both may be empty when nothing was found.
type Result struct {
	Data        map[string]interface{}
	Records     []ExtractedRecord
	Valid       bool
	Errors      []string
	Evidence    []EvidencePointer
	Confidence  float64
	NeedsReview bool
	RawResponse string
}

// Extractor is the single extraction contract shared by all implementations.
type Extractor interface {
	Extract(ctx context.Context, text string, descriptor *schema.Descriptor, ec Context) (*Result, error)
}

// Provider names accepted by New.
const (
	ProviderStub   = "stub"
	ProviderClaude = "claude"
)

// New builds the extractor selected by provider name.
func New(provider, apiKey, model string) (Extractor, error) {
	switch provider {
	case ProviderStub, "":
		return NewStubExtractor(), nil
	case ProviderClaude:
		return NewClaudeExtractor(apiKey, model)
	default:
		return nil, models.NewValidation("unknown extractor provider: %s", provider)
	}
}

// describeSchema renders the descriptor's field table for prompt building.
func describeSchema(d *schema.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema: %s\n", d.Name)
	fmt.Fprintf(&b, "Description: %s\n", d.Description)
	b.WriteString("\nFields:\n")
	for _, f := range d.Fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "  - %s (%s, %s): %s\n", f.Name, f.Kind, req, f.Description)
	}
	return b.String()
}

// jsonSchemaFor renders a minimal JSON schema for the descriptor.
func jsonSchemaFor(d *schema.Descriptor) map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Fields))
	for _, f := range d.Fields {
		var t interface{}
		switch f.Kind {
		case schema.KindInt:
			t = "integer"
		case schema.KindFloat:
			t = "number"
		case schema.KindStringList:
			t = map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
		case schema.KindObjectList:
			t = map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}}
		case schema.KindMap:
			t = "object"
		default:
			t = "string"
		}
		if s, ok := t.(string); ok {
			properties[f.Name] = map[string]interface{}{"type": s, "description": f.Description}
		} else {
			properties[f.Name] = t
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"title":      d.Name,
		"properties": properties,
		"required":   d.RequiredFields,
	}
}
