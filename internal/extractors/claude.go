package extractors

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

const (
	defaultClaudeModel = "claude-sonnet-4-20250514"
	claudeMaxRetries   = 2
	claudeMaxTokens    = 4096
)

// contentGenerator is the slice of the langchaingo model interface the
// extractor needs. Tests substitute a scripted fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// ClaudeExtractor extracts records by prompting Claude with the schema and
// validating the returned JSON. Invalid responses are retried with the
// validation errors fed back; after the retry budget is exhausted the result
// is flagged for review instead of failing the pipeline.
type ClaudeExtractor struct {
	llm   contentGenerator
	model string
}

func NewClaudeExtractor(apiKey, model string) (*ClaudeExtractor, error) {
	if apiKey == "" {
		return nil, models.NewValidation("claude extractor requires an API key")
	}
	if model == "" {
		model = defaultClaudeModel
	}
	llm, err := anthropic.New(anthropic.WithToken(apiKey), anthropic.WithModel(model))
	if err != nil {
		return nil, models.NewUpstream("failed to initialize anthropic client", err)
	}
	return &ClaudeExtractor{llm: llm, model: model}, nil
}

func (e *ClaudeExtractor) Extract(ctx context.Context, text string, descriptor *schema.Descriptor, ec Context) (*Result, error) {
	systemPrompt := e.buildSystemPrompt(descriptor, ec)

	var (
		attemptErrors []string
		lastResponse  string
		lastData      map[string]interface{}
		transportErr  error
	)

	for attempt := 1; attempt <= claudeMaxRetries+1; attempt++ {
		prompt := e.buildUserPrompt(text, attemptErrors, lastResponse)

		resp, err := e.llm.GenerateContent(ctx,
			[]llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
				llms.TextParts(llms.ChatMessageTypeHuman, prompt),
			},
			llms.WithTemperature(0),
			llms.WithMaxTokens(claudeMaxTokens),
		)
		// Transport and API failures spend a retry like invalid responses do;
		// only an exhausted budget surfaces them as upstream errors.
		if err != nil {
			transportErr = err
			attemptErrors = append(attemptErrors, fmt.Sprintf("attempt %d: request failed: %v", attempt, err))
			continue
		}
		if len(resp.Choices) == 0 {
			transportErr = fmt.Errorf("empty response")
			attemptErrors = append(attemptErrors, fmt.Sprintf("attempt %d: empty response", attempt))
			continue
		}
		transportErr = nil
		lastResponse = resp.Choices[0].Content

		data, err := parseModelJSON(lastResponse)
		if err != nil {
			attemptErrors = append(attemptErrors, fmt.Sprintf("attempt %d: %v", attempt, err))
			continue
		}
		lastData = data

		if errs := descriptor.Validate(data); len(errs) > 0 {
			attemptErrors = append(attemptErrors, fmt.Sprintf("attempt %d: validation failed: %s", attempt, strings.Join(errs, "; ")))
			continue
		}

		return &Result{
			Data:        data,
			Valid:       true,
			Evidence:    AnchorEvidence(data, text, ec.ChunkIndex),
			Confidence:  0.9,
			RawResponse: lastResponse,
		}, nil
	}

	if transportErr != nil {
		return nil, models.NewUpstream("claude extraction request failed: "+strings.Join(attemptErrors, "; "), transportErr)
	}

	result := &Result{
		Data:        lastData,
		Errors:      attemptErrors,
		Confidence:  0.3,
		NeedsReview: true,
		RawResponse: lastResponse,
	}
	if lastData != nil {
		result.Evidence = AnchorEvidence(lastData, text, ec.ChunkIndex)
	}
	return result, nil
}

func (e *ClaudeExtractor) buildSystemPrompt(descriptor *schema.Descriptor, ec Context) string {
	jsonSchema, _ := json.MarshalIndent(jsonSchemaFor(descriptor), "", "  ")

	var b strings.Builder
	b.WriteString("Du bist ein Extraktionsassistent fuer interne Wissensdokumente der JOKARI-Krampe GmbH.\n")
	b.WriteString("Extrahiere strukturierte Daten aus dem Dokumenttext und gib sie als JSON-Objekt zurueck.\n\n")
	b.WriteString(describeSchema(descriptor))
	b.WriteString("\nJSON Schema:\n")
	b.Write(jsonSchema)
	b.WriteString("\n\nKontext:\n")
	fmt.Fprintf(&b, "  Abteilung: %s\n", ec.Department)
	fmt.Fprintf(&b, "  Dokumenttyp: %s\n", ec.DocType)
	fmt.Fprintf(&b, "  Dateiname: %s\n", ec.Filename)
	b.WriteString("\nRegeln:\n")
	b.WriteString("  - Antworte NUR mit dem JSON-Objekt, ohne weiteren Text.\n")
	b.WriteString("  - Erfinde keine Werte. Lasse Felder weg, die nicht im Text stehen.\n")
	b.WriteString("  - Uebernimm Werte woertlich aus dem Dokument.\n")
	return b.String()
}

func (e *ClaudeExtractor) buildUserPrompt(text string, previousErrors []string, previousResponse string) string {
	if len(previousErrors) == 0 {
		return "Dokumenttext:\n\n" + text
	}

	var b strings.Builder
	b.WriteString("Deine vorherige Antwort war ungueltig.\n\nFehler:\n")
	for _, e := range previousErrors {
		b.WriteString("  - " + e + "\n")
	}
	b.WriteString("\nVorherige Antwort:\n")
	b.WriteString(previousResponse)
	b.WriteString("\n\nKorrigiere die Fehler und antworte erneut nur mit dem JSON-Objekt.\n\nDokumenttext:\n\n")
	b.WriteString(text)
	return b.String()
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseModelJSON recovers a JSON object from a model response. It tries the
// whole body first, then a fenced code block, then the outermost brace pair.
// A single wrapping "data" key is unwrapped.
func parseModelJSON(response string) (map[string]interface{}, error) {
	candidates := []string{strings.TrimSpace(response)}

	if m := fencedJSONPattern.FindStringSubmatch(response); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start >= 0 && end > start {
		candidates = append(candidates, response[start:end+1])
	}

	for _, candidate := range candidates {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(candidate), &data); err != nil {
			continue
		}
		if len(data) == 1 {
			if inner, ok := data["data"].(map[string]interface{}); ok {
				return inner, nil
			}
		}
		return data, nil
	}
	return nil, fmt.Errorf("response contains no parseable JSON object")
}
