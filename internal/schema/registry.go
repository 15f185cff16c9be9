// Package schema holds the process-wide registry of knowledge record types:
// which fields each record class carries, which of them are required, which
// form the deduplication primary key, and which doc types each department may
// upload. The registry is immutable after construction and safe for
// concurrent use.
package schema

import (
	"fmt"
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// FieldKind is the coarse type of a schema field, used by the rule-based
// extractor for value coercion and by validation.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindText       FieldKind = "text"
	KindInt        FieldKind = "int"
	KindFloat      FieldKind = "float"
	KindStringList FieldKind = "string_list"
	KindObjectList FieldKind = "object_list"
	KindMap        FieldKind = "map"
)

// Field describes one field of a record class.
type Field struct {
	Name        string
	Kind        FieldKind
	Required    bool
	Description string
}

// Descriptor is the full metadata of one record class.
type Descriptor struct {
	Name           string
	DocType        models.DocType
	Description    string
	Fields         []Field
	RequiredFields []string
	PrimaryKeyLoad []string
}

// PrimaryKeyFields returns the ordered fields the primary key derives from.
func (d *Descriptor) PrimaryKeyFields() []string {
	return d.PrimaryKeyLoad
}

// Field looks up a field descriptor by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ComputePrimaryKey derives the stable deduplication key from data: each
// primary-key field value lower-cased, trimmed, clipped to 100 chars, joined
// with "|", the result clipped to 500 chars. Pure and case-insensitive.
func (d *Descriptor) ComputePrimaryKey(data map[string]interface{}) string {
	parts := make([]string, 0, len(d.PrimaryKeyLoad))
	for _, field := range d.PrimaryKeyLoad {
		var s string
		switch v := data[field].(type) {
		case nil:
			s = ""
		case string:
			s = v
		default:
			s = fmt.Sprintf("%v", v)
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) > 100 {
			s = s[:100]
		}
		parts = append(parts, s)
	}
	key := strings.Join(parts, "|")
	if len(key) > 500 {
		key = key[:500]
	}
	return key
}

// Validate checks data against the descriptor. It returns the list of
// problems; an empty list means the data is valid. Unknown extra fields are
// allowed for flexibility, mirroring the open data shape of records.
func (d *Descriptor) Validate(data map[string]interface{}) []string {
	var errs []string
	for _, name := range d.RequiredFields {
		if isEmptyValue(data[name]) {
			errs = append(errs, fmt.Sprintf("%s: field is required", name))
		}
	}
	for _, f := range d.Fields {
		v, ok := data[f.Name]
		if !ok || v == nil {
			continue
		}
		if msg := checkKind(f, v); msg != "" {
			errs = append(errs, msg)
		}
	}
	return errs
}

func checkKind(f Field, v interface{}) string {
	switch f.Kind {
	case KindString, KindText:
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("%s: expected string, got %T", f.Name, v)
		}
	case KindInt:
		switch v.(type) {
		case int, int64, float64:
		default:
			return fmt.Sprintf("%s: expected integer, got %T", f.Name, v)
		}
	case KindFloat:
		switch v.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Sprintf("%s: expected number, got %T", f.Name, v)
		}
	case KindStringList, KindObjectList:
		switch v.(type) {
		case []interface{}, []string:
		default:
			return fmt.Sprintf("%s: expected list, got %T", f.Name, v)
		}
	case KindMap:
		if _, ok := v.(map[string]interface{}); !ok {
			return fmt.Sprintf("%s: expected object, got %T", f.Name, v)
		}
	}
	return ""
}

// isEmptyValue implements the "filled" test shared with the completeness
// scorer: nil, empty/blank string, empty list, and empty map all count as
// unfilled.
func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

// Registry maps doc types to their descriptors and departments to their
// permitted doc types. Build it once at startup with NewRegistry.
type Registry struct {
	byDocType map[models.DocType]*Descriptor
	byName    map[string]*Descriptor
	permitted map[models.Department][]models.DocType
}

// SchemaFor returns the descriptor registered for a doc type.
func (r *Registry) SchemaFor(docType models.DocType) (*Descriptor, error) {
	d, ok := r.byDocType[docType]
	if !ok {
		return nil, models.NewValidation("no schema registered for doc type: %s", docType)
	}
	return d, nil
}

// SchemaByName returns the descriptor with the given class name, e.g. "FAQ".
func (r *Registry) SchemaByName(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, models.NewValidation("no schema found with name: %s", name)
	}
	return d, nil
}

// TypesFor returns the doc types a department is permitted to upload.
func (r *Registry) TypesFor(department models.Department) []models.DocType {
	return r.permitted[department]
}

// IsPermitted reports whether the department may upload the doc type.
func (r *Registry) IsPermitted(department models.Department, docType models.DocType) bool {
	for _, t := range r.permitted[department] {
		if t == docType {
			return true
		}
	}
	return false
}

// All returns every descriptor keyed by class name.
func (r *Registry) All() map[string]*Descriptor {
	out := make(map[string]*Descriptor, len(r.byName))
	for name, d := range r.byName {
		out[name] = d
	}
	return out
}

// NewRegistry builds the registry of all fifteen record classes and the
// department permission matrix.
func NewRegistry() *Registry {
	descriptors := []*Descriptor{
		// Sales
		{
			Name:        "TrainingModule",
			DocType:     models.DocTypeTrainingModule,
			Description: "Sales training module",
			Fields: []Field{
				{Name: "title", Kind: KindString, Required: true, Description: "Titel des Trainingsmoduls"},
				{Name: "version", Kind: KindString, Required: true, Description: "Versionsnummer (z.B. '1.0', '2.1')"},
				{Name: "content", Kind: KindText, Required: true, Description: "Hauptinhalt des Trainings"},
				{Name: "objectives", Kind: KindStringList, Description: "Lernziele"},
				{Name: "target_audience", Kind: KindString, Description: "Zielgruppe"},
			},
			RequiredFields: []string{"title", "version", "content"},
			PrimaryKeyLoad: []string{"title", "version"},
		},
		{
			Name:        "Objection",
			DocType:     models.DocTypeObjection,
			Description: "Sales objection handling",
			Fields: []Field{
				{Name: "id", Kind: KindString, Required: true, Description: "Eindeutige ID des Einwands"},
				{Name: "objection_text", Kind: KindText, Required: true, Description: "Der Kundeneinwand"},
				{Name: "response", Kind: KindText, Required: true, Description: "Empfohlene Antwort"},
				{Name: "category", Kind: KindString, Description: "Kategorie (z.B. 'Preis', 'Zeit')"},
				{Name: "effectiveness_score", Kind: KindFloat, Description: "Wirksamkeitsbewertung 0-10"},
			},
			RequiredFields: []string{"id", "objection_text", "response"},
			PrimaryKeyLoad: []string{"id"},
		},
		{
			Name:        "Persona",
			DocType:     models.DocTypePersona,
			Description: "Buyer persona",
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true, Description: "Name der Persona"},
				{Name: "role", Kind: KindString, Required: true, Description: "Rolle/Position"},
				{Name: "pain_points", Kind: KindStringList, Description: "Schmerzpunkte"},
				{Name: "goals", Kind: KindStringList, Description: "Ziele"},
				{Name: "triggers", Kind: KindStringList, Description: "Kaufausloeser"},
			},
			RequiredFields: []string{"name", "role"},
			PrimaryKeyLoad: []string{"name"},
		},
		{
			Name:        "PitchScript",
			DocType:     models.DocTypePitchScript,
			Description: "Sales pitch script",
			Fields: []Field{
				{Name: "title", Kind: KindString, Required: true, Description: "Titel des Pitch-Scripts"},
				{Name: "scenario", Kind: KindString, Required: true, Description: "Anwendungsszenario"},
				{Name: "script_text", Kind: KindText, Required: true, Description: "Der Pitch-Text"},
				{Name: "key_points", Kind: KindStringList, Description: "Kernbotschaften"},
			},
			RequiredFields: []string{"title", "scenario", "script_text"},
			PrimaryKeyLoad: []string{"title", "scenario"},
		},
		{
			Name:        "EmailTemplate",
			DocType:     models.DocTypeEmailTemplate,
			Description: "Email template",
			Fields: []Field{
				{Name: "name", Kind: KindString, Required: true, Description: "Name des Templates"},
				{Name: "subject", Kind: KindString, Required: true, Description: "Betreffzeile"},
				{Name: "body", Kind: KindText, Required: true, Description: "E-Mail-Text"},
				{Name: "use_case", Kind: KindString, Description: "Anwendungsfall"},
				{Name: "variables", Kind: KindStringList, Description: "Platzhalter-Variablen"},
			},
			RequiredFields: []string{"name", "subject", "body"},
			PrimaryKeyLoad: []string{"name"},
		},
		// Support
		{
			Name:        "FAQ",
			DocType:     models.DocTypeFAQ,
			Description: "Frequently asked question",
			Fields: []Field{
				{Name: "question", Kind: KindString, Required: true, Description: "Die haeufig gestellte Frage"},
				{Name: "answer", Kind: KindText, Required: true, Description: "Die Antwort"},
				{Name: "category", Kind: KindString, Description: "Kategorie"},
				{Name: "related_products", Kind: KindStringList, Description: "Betroffene Produkte"},
			},
			RequiredFields: []string{"question", "answer"},
			PrimaryKeyLoad: []string{"question"},
		},
		{
			Name:        "TroubleshootingGuide",
			DocType:     models.DocTypeTroubleshootingGuide,
			Description: "Troubleshooting guide",
			Fields: []Field{
				{Name: "title", Kind: KindString, Required: true, Description: "Titel des Guides"},
				{Name: "problem", Kind: KindText, Required: true, Description: "Problembeschreibung"},
				{Name: "steps", Kind: KindObjectList, Description: "Fehlerbehebungsschritte"},
				{Name: "solution", Kind: KindText, Required: true, Description: "Loesung/Ergebnis"},
			},
			RequiredFields: []string{"title", "problem", "solution"},
			PrimaryKeyLoad: []string{"title"},
		},
		{
			Name:        "HowToSteps",
			DocType:     models.DocTypeHowToSteps,
			Description: "How-to guide",
			Fields: []Field{
				{Name: "title", Kind: KindString, Required: true, Description: "Titel der Anleitung"},
				{Name: "steps", Kind: KindObjectList, Required: true, Description: "Anleitungsschritte"},
			},
			RequiredFields: []string{"title", "steps"},
			PrimaryKeyLoad: []string{"title"},
		},
		// Product
		{
			Name:        "ProductSpec",
			DocType:     models.DocTypeProductSpec,
			Description: "Product specification",
			Fields: []Field{
				{Name: "artnr", Kind: KindString, Required: true, Description: "Artikelnummer"},
				{Name: "name", Kind: KindString, Required: true, Description: "Produktname"},
				{Name: "description", Kind: KindText, Description: "Produktbeschreibung"},
				{Name: "specs", Kind: KindMap, Description: "Technische Spezifikationen"},
				{Name: "compatibility", Kind: KindStringList, Description: "Kompatible Produkte/Systeme"},
			},
			RequiredFields: []string{"artnr", "name"},
			PrimaryKeyLoad: []string{"artnr"},
		},
		{
			Name:        "CompatibilityMatrix",
			DocType:     models.DocTypeCompatibilityMatrix,
			Description: "Product compatibility matrix",
			Fields: []Field{
				{Name: "product_id", Kind: KindString, Required: true, Description: "Produkt-ID oder Artikelnummer"},
				{Name: "compatible_with", Kind: KindStringList, Description: "Kompatible Produkte"},
				{Name: "incompatible_with", Kind: KindStringList, Description: "Inkompatible Produkte"},
				{Name: "notes", Kind: KindText, Description: "Zusaetzliche Hinweise"},
			},
			RequiredFields: []string{"product_id"},
			PrimaryKeyLoad: []string{"product_id"},
		},
		{
			Name:        "SafetyNotes",
			DocType:     models.DocTypeSafetyNotes,
			Description: "Product safety notes",
			Fields: []Field{
				{Name: "product_id", Kind: KindString, Required: true, Description: "Produkt-ID oder Artikelnummer"},
				{Name: "warnings", Kind: KindStringList, Required: true, Description: "Sicherheitswarnungen"},
				{Name: "certifications", Kind: KindStringList, Description: "Zertifizierungen"},
				{Name: "handling_instructions", Kind: KindText, Description: "Handhabungshinweise"},
			},
			RequiredFields: []string{"product_id", "warnings"},
			PrimaryKeyLoad: []string{"product_id"},
		},
		// Marketing
		{
			Name:        "MessagingPillars",
			DocType:     models.DocTypeMessagingPillars,
			Description: "Brand messaging pillars",
			Fields: []Field{
				{Name: "pillar_name", Kind: KindString, Required: true, Description: "Name des Messaging-Pfeilers"},
				{Name: "key_messages", Kind: KindStringList, Required: true, Description: "Kernbotschaften"},
				{Name: "tone", Kind: KindString, Description: "Tonalitaet"},
				{Name: "audience", Kind: KindString, Description: "Zielgruppe"},
			},
			RequiredFields: []string{"pillar_name", "key_messages"},
			PrimaryKeyLoad: []string{"pillar_name"},
		},
		{
			Name:        "ContentGuidelines",
			DocType:     models.DocTypeContentGuidelines,
			Description: "Content guidelines",
			Fields: []Field{
				{Name: "topic", Kind: KindString, Required: true, Description: "Thema/Bereich"},
				{Name: "dos", Kind: KindStringList, Required: true, Description: "Was man tun sollte"},
				{Name: "donts", Kind: KindStringList, Required: true, Description: "Was man vermeiden sollte"},
				{Name: "examples", Kind: KindStringList, Description: "Beispiele"},
			},
			RequiredFields: []string{"topic", "dos", "donts"},
			PrimaryKeyLoad: []string{"topic"},
		},
		// Legal
		{
			Name:        "ComplianceNotes",
			DocType:     models.DocTypeComplianceNotes,
			Description: "Compliance notes",
			Fields: []Field{
				{Name: "topic", Kind: KindString, Required: true, Description: "Compliance-Thema"},
				{Name: "requirements", Kind: KindStringList, Required: true, Description: "Anforderungen"},
				{Name: "effective_date", Kind: KindString, Description: "Gueltigkeitsdatum"},
				{Name: "region", Kind: KindString, Description: "Region/Land"},
			},
			RequiredFields: []string{"topic", "requirements"},
			PrimaryKeyLoad: []string{"topic", "region"},
		},
		{
			Name:        "ClaimsDoDont",
			DocType:     models.DocTypeClaimsDoDont,
			Description: "Marketing claims do's and don'ts",
			Fields: []Field{
				{Name: "claim_type", Kind: KindString, Required: true, Description: "Art der Werbeaussage"},
				{Name: "allowed", Kind: KindStringList, Required: true, Description: "Erlaubte Aussagen"},
				{Name: "prohibited", Kind: KindStringList, Required: true, Description: "Verbotene Aussagen"},
				{Name: "examples", Kind: KindStringList, Description: "Beispiele"},
			},
			RequiredFields: []string{"claim_type", "allowed", "prohibited"},
			PrimaryKeyLoad: []string{"claim_type"},
		},
	}

	r := &Registry{
		byDocType: make(map[models.DocType]*Descriptor, len(descriptors)),
		byName:    make(map[string]*Descriptor, len(descriptors)),
		permitted: map[models.Department][]models.DocType{
			models.DepartmentSales: {
				models.DocTypeTrainingModule,
				models.DocTypeObjection,
				models.DocTypePersona,
				models.DocTypePitchScript,
				models.DocTypeEmailTemplate,
			},
			models.DepartmentSupport: {
				models.DocTypeFAQ,
				models.DocTypeTroubleshootingGuide,
				models.DocTypeHowToSteps,
			},
			models.DepartmentProduct: {
				models.DocTypeProductSpec,
				models.DocTypeCompatibilityMatrix,
				models.DocTypeSafetyNotes,
			},
			models.DepartmentMarketing: {
				models.DocTypeMessagingPillars,
				models.DocTypeContentGuidelines,
			},
			models.DepartmentLegal: {
				models.DocTypeComplianceNotes,
				models.DocTypeClaimsDoDont,
			},
		},
	}

	for _, d := range descriptors {
		r.byDocType[d.DocType] = d
		r.byName[d.Name] = d
	}

	return r
}
