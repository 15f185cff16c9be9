package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

func TestNewRegistry_AllSchemasRegistered(t *testing.T) {
	registry := NewRegistry()

	all := registry.All()
	assert.Len(t, all, 15)

	for name, descriptor := range all {
		assert.Equal(t, name, descriptor.Name)
		assert.NotEmpty(t, descriptor.DocType)
		assert.NotEmpty(t, descriptor.Fields)
		assert.NotEmpty(t, descriptor.RequiredFields, "schema %s has no required fields", name)
		assert.NotEmpty(t, descriptor.PrimaryKeyLoad, "schema %s has no primary key fields", name)

		// Every required and primary key field must exist in the field list.
		for _, req := range descriptor.RequiredFields {
			_, ok := descriptor.Field(req)
			assert.True(t, ok, "schema %s requires unknown field %s", name, req)
		}
		for _, pk := range descriptor.PrimaryKeyLoad {
			_, ok := descriptor.Field(pk)
			assert.True(t, ok, "schema %s keys on unknown field %s", name, pk)
		}
	}
}

func TestRegistry_SchemaFor(t *testing.T) {
	registry := NewRegistry()

	descriptor, err := registry.SchemaFor(models.DocTypeFAQ)
	assert.NoError(t, err)
	assert.Equal(t, "FAQ", descriptor.Name)

	_, err = registry.SchemaFor(models.DocType("bogus"))
	assert.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestRegistry_SchemaByName(t *testing.T) {
	registry := NewRegistry()

	descriptor, err := registry.SchemaByName("ProductSpec")
	assert.NoError(t, err)
	assert.Equal(t, models.DocTypeProductSpec, descriptor.DocType)

	_, err = registry.SchemaByName("Unknown")
	assert.Error(t, err)
}

func TestRegistry_PermissionMatrix(t *testing.T) {
	registry := NewRegistry()

	assert.True(t, registry.IsPermitted(models.DepartmentSales, models.DocTypeObjection))
	assert.True(t, registry.IsPermitted(models.DepartmentSupport, models.DocTypeFAQ))
	assert.True(t, registry.IsPermitted(models.DepartmentLegal, models.DocTypeComplianceNotes))

	// FAQ belongs to support, not sales.
	assert.False(t, registry.IsPermitted(models.DepartmentSales, models.DocTypeFAQ))
	assert.False(t, registry.IsPermitted(models.DepartmentMarketing, models.DocTypeProductSpec))

	assert.Len(t, registry.TypesFor(models.DepartmentSales), 5)
	assert.Len(t, registry.TypesFor(models.DepartmentSupport), 3)
	assert.Len(t, registry.TypesFor(models.DepartmentProduct), 3)
	assert.Len(t, registry.TypesFor(models.DepartmentMarketing), 2)
	assert.Len(t, registry.TypesFor(models.DepartmentLegal), 2)
}

func TestComputePrimaryKey(t *testing.T) {
	registry := NewRegistry()
	training, err := registry.SchemaByName("TrainingModule")
	assert.NoError(t, err)

	key := training.ComputePrimaryKey(map[string]interface{}{
		"title":   "  Verkaufstraining Basis  ",
		"version": "1.0",
	})
	assert.Equal(t, "verkaufstraining basis|1.0", key)
}

func TestComputePrimaryKey_CaseInsensitive(t *testing.T) {
	registry := NewRegistry()
	faq, _ := registry.SchemaByName("FAQ")

	a := faq.ComputePrimaryKey(map[string]interface{}{"question": "Wie entferne ich die Isolierung?"})
	b := faq.ComputePrimaryKey(map[string]interface{}{"question": "WIE ENTFERNE ICH DIE ISOLIERUNG?"})
	assert.Equal(t, a, b)
}

func TestComputePrimaryKey_MissingFields(t *testing.T) {
	registry := NewRegistry()
	training, _ := registry.SchemaByName("TrainingModule")

	key := training.ComputePrimaryKey(map[string]interface{}{"title": "Basis"})
	assert.Equal(t, "basis|", key)

	key = training.ComputePrimaryKey(map[string]interface{}{})
	assert.Equal(t, "|", key)
}

func TestComputePrimaryKey_Clipping(t *testing.T) {
	registry := NewRegistry()
	faq, _ := registry.SchemaByName("FAQ")

	long := strings.Repeat("x", 300)
	key := faq.ComputePrimaryKey(map[string]interface{}{"question": long})
	assert.Len(t, key, 100)
}

func TestComputePrimaryKey_NonStringValues(t *testing.T) {
	registry := NewRegistry()
	spec, _ := registry.SchemaByName("ProductSpec")

	key := spec.ComputePrimaryKey(map[string]interface{}{"artnr": 10280})
	assert.Equal(t, "10280", key)
}

func TestValidate_MissingRequired(t *testing.T) {
	registry := NewRegistry()
	faq, _ := registry.SchemaByName("FAQ")

	errs := faq.Validate(map[string]interface{}{"question": "Nur eine Frage"})
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "answer")
}

func TestValidate_BlankStringCountsAsMissing(t *testing.T) {
	registry := NewRegistry()
	faq, _ := registry.SchemaByName("FAQ")

	errs := faq.Validate(map[string]interface{}{
		"question": "Frage?",
		"answer":   "   ",
	})
	assert.Len(t, errs, 1)
}

func TestValidate_WrongKind(t *testing.T) {
	registry := NewRegistry()
	faq, _ := registry.SchemaByName("FAQ")

	errs := faq.Validate(map[string]interface{}{
		"question":         "Frage?",
		"answer":           "Antwort.",
		"related_products": "keine Liste",
	})
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "related_products")
}

func TestValidate_AcceptsExtraFields(t *testing.T) {
	registry := NewRegistry()
	faq, _ := registry.SchemaByName("FAQ")

	errs := faq.Validate(map[string]interface{}{
		"question": "Frage?",
		"answer":   "Antwort.",
		"extra":    "wird toleriert",
	})
	assert.Empty(t, errs)
}

func TestValidate_NumericKinds(t *testing.T) {
	registry := NewRegistry()
	objection, _ := registry.SchemaByName("Objection")

	// JSON decoding yields float64 for every number; an int literal works too.
	errs := objection.Validate(map[string]interface{}{
		"id":                  "OBJ-1",
		"objection_text":      "Zu teuer",
		"response":            "Qualitaet rechnet sich",
		"effectiveness_score": 8.5,
	})
	assert.Empty(t, errs)

	errs = objection.Validate(map[string]interface{}{
		"id":                  "OBJ-1",
		"objection_text":      "Zu teuer",
		"response":            "Qualitaet rechnet sich",
		"effectiveness_score": "hoch",
	})
	assert.Len(t, errs, 1)
}
