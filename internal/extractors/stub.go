package extractors

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/schema"
)

// fieldLabels maps schema field names to the document labels they are
// announced with. Source documents are mostly German with occasional English
// labels, so both are listed.
var fieldLabels = map[string][]string{
	"title":                 {"titel", "title"},
	"version":               {"version"},
	"content":               {"inhalt", "content"},
	"objectives":            {"lernziele", "ziele", "objectives"},
	"target_audience":       {"zielgruppe", "target audience"},
	"id":                    {"id", "einwand-id"},
	"objection_text":        {"einwand", "objection"},
	"response":              {"antwort", "response", "empfohlene antwort"},
	"category":              {"kategorie", "category"},
	"effectiveness_score":   {"wirksamkeit", "effectiveness"},
	"name":                  {"name", "produktname"},
	"role":                  {"rolle", "position", "role"},
	"pain_points":           {"schmerzpunkte", "pain points"},
	"goals":                 {"ziele", "goals"},
	"triggers":              {"kaufausloeser", "ausloeser", "triggers"},
	"scenario":              {"szenario", "scenario", "anwendungsszenario"},
	"script_text":           {"script", "pitch", "skript"},
	"key_points":            {"kernpunkte", "key points"},
	"subject":               {"betreff", "subject"},
	"body":                  {"text", "body"},
	"use_case":              {"anwendungsfall", "use case"},
	"variables":             {"variablen", "platzhalter", "variables"},
	"question":              {"frage", "question"},
	"answer":                {"antwort", "answer"},
	"related_products":      {"produkte", "betroffene produkte", "related products"},
	"problem":               {"problem", "problembeschreibung"},
	"solution":              {"loesung", "lösung", "solution", "ergebnis"},
	"artnr":                 {"artikelnummer", "artnr", "art.-nr"},
	"description":           {"beschreibung", "description"},
	"compatibility":         {"kompatibilitaet", "kompatibel mit", "compatibility"},
	"product_id":            {"produkt-id", "artikelnummer", "product id"},
	"compatible_with":       {"kompatibel mit", "compatible with"},
	"incompatible_with":     {"nicht kompatibel mit", "inkompatibel mit", "incompatible with"},
	"notes":                 {"hinweise", "notes"},
	"warnings":              {"warnungen", "sicherheitshinweise", "warnings"},
	"certifications":        {"zertifizierungen", "certifications"},
	"handling_instructions": {"handhabung", "handling"},
	"pillar_name":           {"pfeiler", "pillar"},
	"key_messages":          {"kernbotschaften", "key messages"},
	"tone":                  {"tonalitaet", "tonalität", "tone"},
	"audience":              {"zielgruppe", "audience"},
	"topic":                 {"thema", "topic"},
	"dos":                   {"dos", "do's", "erlaubt"},
	"donts":                 {"donts", "don'ts", "vermeiden"},
	"examples":              {"beispiele", "examples"},
	"requirements":          {"anforderungen", "requirements"},
	"effective_date":        {"gueltig ab", "gültig ab", "effective date"},
	"region":                {"region", "land"},
	"claim_type":            {"aussagetyp", "claim type", "art der aussage"},
	"allowed":               {"erlaubt", "allowed"},
	"prohibited":            {"verboten", "prohibited"},
}

var (
	titleMarkerPattern  = regexp.MustCompile(`(?i)titel\s*:`)
	headingSplitPattern = regexp.MustCompile(`(?m)^#{1,3}\s+(.+)$`)
	anyHeadingPattern   = regexp.MustCompile(`(?m)^#{1,6}\s`)
	numberedStepPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+)$`)
	bulletPattern       = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+)$`)
	artnrPattern        = regexp.MustCompile(`\b(\d{5})\b`)
	crossSectionPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:-|bis)\s*\d+(?:[.,]\d+)?\s*mm²`)
	mediaFilePattern    = regexp.MustCompile(`(?i)\b[\w-]+\.(?:jpe?g|png|gif|mp4|pdf)\b`)
	intPattern          = regexp.MustCompile(`\d+`)
	floatPattern        = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

const (
	minRecordSectionLen  = 200
	minHeadingSectionLen = 100
	maxStubTitleLen      = 100
)

// StubExtractor extracts records with label matching and a handful of
// product-catalog heuristics. It exists so the full pipeline can run without
// an LLM; confidence stays low enough that every record lands in review.
type StubExtractor struct {
	labelPatterns   map[string]*regexp.Regexp
	headingPatterns map[string]*regexp.Regexp
}

func NewStubExtractor() *StubExtractor {
	patterns := make(map[string]*regexp.Regexp, len(fieldLabels))
	headings := make(map[string]*regexp.Regexp, len(fieldLabels))
	for field, labels := range fieldLabels {
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = regexp.QuoteMeta(l)
		}
		alternatives := strings.Join(quoted, "|")
		patterns[field] = regexp.MustCompile(`(?im)^\s*(?:` + alternatives + `)\s*:\s*(.+)$`)
		headings[field] = regexp.MustCompile(`(?im)^#{1,6}\s*(?:` + alternatives + `)\s*$`)
	}
	return &StubExtractor{labelPatterns: patterns, headingPatterns: headings}
}

// Extract runs in multi-record mode when the text announces two or more
// records with a "Titel:" label, falling back to markdown headings, and
// finally to treating the whole text as a single record.
func (e *StubExtractor) Extract(_ context.Context, text string, descriptor *schema.Descriptor, ec Context) (*Result, error) {
	sections := splitRecordSections(text)

	if len(sections) > 1 {
		return e.extractMulti(text, sections, descriptor, ec), nil
	}
	return e.extractSingle(text, descriptor, ec), nil
}

type recordSection struct {
	title string
	body  string
}

// splitRecordSections finds per-record slices of the text. Two or more
// "Titel:" markers split the document at each marker; a slice only counts
// when it is long enough and carries a "Beschreibung:" label. Otherwise
// markdown headings split it, keeping slices with enough content.
func splitRecordSections(text string) []recordSection {
	markers := titleMarkerPattern.FindAllStringIndex(text, -1)
	if len(markers) >= 2 {
		var sections []recordSection
		for i, m := range markers {
			end := len(text)
			if i+1 < len(markers) {
				end = markers[i+1][0]
			}
			slice := text[m[0]:end]
			if len(slice) <= minRecordSectionLen || !strings.Contains(strings.ToLower(slice), "beschreibung:") {
				continue
			}
			sections = append(sections, recordSection{title: titleFromSlice(slice), body: slice})
		}
		if len(sections) > 1 {
			return sections
		}
	}

	headings := headingSplitPattern.FindAllStringSubmatchIndex(text, -1)
	if len(headings) >= 2 {
		var sections []recordSection
		for i, h := range headings {
			end := len(text)
			if i+1 < len(headings) {
				end = headings[i+1][0]
			}
			body := text[h[1]:end]
			if len(strings.TrimSpace(body)) <= minHeadingSectionLen {
				continue
			}
			sections = append(sections, recordSection{
				title: clip(strings.TrimSpace(text[h[2]:h[3]]), maxStubTitleLen),
				body:  body,
			})
		}
		if len(sections) > 1 {
			return sections
		}
	}

	return []recordSection{{body: text}}
}

// titleFromSlice takes the text between "Titel:" and "Beschreibung:", keeps
// the first line and clips it.
func titleFromSlice(slice string) string {
	lower := strings.ToLower(slice)
	start := strings.Index(lower, "titel:")
	if start < 0 {
		return ""
	}
	start += len("titel:")
	end := strings.Index(lower, "beschreibung:")
	if end < 0 || end < start {
		end = len(slice)
	}
	title := strings.TrimSpace(slice[start:end])
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	return clip(title, maxStubTitleLen)
}

func (e *StubExtractor) extractMulti(text string, sections []recordSection, descriptor *schema.Descriptor, ec Context) *Result {
	result := &Result{}

	for _, section := range sections {
		data := e.extractFields(section.body, descriptor)
		if section.title != "" {
			if _, ok := descriptor.Field("title"); ok {
				data["title"] = section.title
			} else if _, ok := descriptor.Field("name"); ok && data["name"] == nil {
				data["name"] = section.title
			}
		}
		if len(data) == 0 {
			continue
		}

		errs := descriptor.Validate(data)
		confidence := 0.6
		if len(errs) > 0 {
			confidence = 0.4
			result.Errors = append(result.Errors, errs...)
		}

		result.Records = append(result.Records, ExtractedRecord{
			Data:          data,
			SchemaType:    descriptor.Name,
			Evidence:      AnchorEvidence(data, text, ec.ChunkIndex),
			Confidence:    confidence,
			SourceSection: section.title,
		})
	}

	if len(result.Records) == 0 {
		result.Confidence = 0.3
		result.NeedsReview = true
		result.Errors = append(result.Errors, "no records could be extracted from any section")
		return result
	}

	result.Valid = true
	result.Confidence = 0.7
	return result
}

func (e *StubExtractor) extractSingle(text string, descriptor *schema.Descriptor, ec Context) *Result {
	data := e.extractFields(text, descriptor)

	// Seed a missing title with the first short line of text.
	if _, ok := descriptor.Field("title"); ok && data["title"] == nil {
		if line := firstLine(text); line != "" && len(line) < minRecordSectionLen {
			data["title"] = clip(line, maxStubTitleLen)
		}
	}

	errs := descriptor.Validate(data)
	valid := len(data) > 0 && len(errs) == 0
	confidence := 0.6
	if !valid {
		confidence = 0.3
	}
	if len(data) == 0 {
		errs = append(errs, "no fields could be extracted")
	}

	return &Result{
		Data:        data,
		Valid:       valid,
		Errors:      errs,
		Evidence:    AnchorEvidence(data, text, ec.ChunkIndex),
		Confidence:  confidence,
		NeedsReview: !valid,
	}
}

// extractFields applies the label patterns for every descriptor field and
// coerces captured values to the field kind. A value is announced either
// inline ("Frage: ...") or as a markdown heading whose text is the label,
// with the block below it as the value. Product specs additionally get
// catalog heuristics for article numbers, cable cross sections and media
// references.
func (e *StubExtractor) extractFields(text string, descriptor *schema.Descriptor) map[string]interface{} {
	data := make(map[string]interface{})

	for _, field := range descriptor.Fields {
		pattern, ok := e.labelPatterns[field.Name]
		if !ok {
			continue
		}
		raw := ""
		if m := pattern.FindStringSubmatch(text); m != nil {
			raw = strings.TrimSpace(m[1])
		} else {
			raw = e.headingValue(text, field.Name)
		}
		if raw == "" {
			continue
		}
		if v := coerceValue(raw, field.Kind); v != nil {
			data[field.Name] = v
		}
	}

	for _, field := range descriptor.Fields {
		if data[field.Name] != nil {
			continue
		}
		switch {
		case field.Kind == schema.KindObjectList && field.Name == "steps":
			if steps := extractSteps(text); len(steps) > 0 {
				data["steps"] = steps
			}
		case field.Kind == schema.KindStringList:
			// Bulleted lines only stand in for a missing required list.
			if field.Required {
				if items := matchAll(bulletPattern, text); len(items) > 0 {
					data[field.Name] = items
				}
			}
		}
	}

	if descriptor.Name == "ProductSpec" {
		e.applyProductHeuristics(text, data)
	}
	return data
}

// headingValue resolves a field announced as its own markdown heading
// ("## Frage" or "## Question"), returning the text between that heading and
// the next one.
func (e *StubExtractor) headingValue(text, field string) string {
	pattern, ok := e.headingPatterns[field]
	if !ok {
		return ""
	}
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if next := anyHeadingPattern.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return strings.TrimSpace(rest)
}

func (e *StubExtractor) applyProductHeuristics(text string, data map[string]interface{}) {
	if data["artnr"] == nil {
		if m := artnrPattern.FindStringSubmatch(text); m != nil {
			data["artnr"] = m[1]
		}
	}
	if data["name"] == nil {
		if line := firstLine(text); line != "" && len(line) < maxStubTitleLen {
			data["name"] = line
		}
	}

	specs, _ := data["specs"].(map[string]interface{})
	if sections := crossSectionPattern.FindAllString(text, -1); len(sections) > 0 {
		if specs == nil {
			specs = make(map[string]interface{})
		}
		ranges := make([]interface{}, len(sections))
		for i, s := range sections {
			ranges[i] = strings.Join(strings.Fields(s), " ")
		}
		specs["cable_cross_sections"] = ranges
	}
	if media := mediaFilePattern.FindAllString(text, -1); len(media) > 0 {
		if specs == nil {
			specs = make(map[string]interface{})
		}
		files := make([]interface{}, len(media))
		for i, f := range media {
			files[i] = f
		}
		specs["media"] = files
	}
	if specs != nil {
		data["specs"] = specs
	}
}

// coerceValue converts a captured label value to the field kind. Nil means
// the value could not be coerced and the field stays unset.
func coerceValue(raw string, kind schema.FieldKind) interface{} {
	if raw == "" {
		return nil
	}
	switch kind {
	case schema.KindInt:
		m := intPattern.FindString(raw)
		if m == "" {
			return nil
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil
		}
		return n
	case schema.KindFloat:
		m := floatPattern.FindString(raw)
		if m == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
		if err != nil {
			return nil
		}
		return f
	case schema.KindStringList:
		return splitList(raw)
	case schema.KindObjectList:
		items := splitList(raw)
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = item
		}
		return out
	case schema.KindMap:
		return nil
	default:
		return raw
	}
}

func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var items []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

func extractSteps(text string) []interface{} {
	matches := numberedStepPattern.FindAllStringSubmatch(text, -1)
	steps := make([]interface{}, 0, len(matches))
	for i, m := range matches {
		steps = append(steps, map[string]interface{}{
			"step": i + 1,
			"text": strings.TrimSpace(m[1]),
		})
	}
	return steps
}

func matchAll(pattern *regexp.Regexp, text string) []string {
	var items []string
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		items = append(items, strings.TrimSpace(m[1]))
	}
	return items
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
