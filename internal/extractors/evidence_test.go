package extractors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pointerFor(pointers []EvidencePointer, fieldPath string) *EvidencePointer {
	for i := range pointers {
		if pointers[i].FieldPath == fieldPath {
			return &pointers[i]
		}
	}
	return nil
}

func TestAnchorEvidence_StringValue(t *testing.T) {
	text := "Das Werkzeug Secura Nr. 15 entfernt die Isolierung in einem Arbeitsgang."
	data := map[string]interface{}{"name": "Secura Nr. 15"}

	pointers := AnchorEvidence(data, text, 3)
	assert.Len(t, pointers, 1)

	p := pointers[0]
	assert.Equal(t, "name", p.FieldPath)
	assert.Equal(t, 3, p.ChunkIndex)
	assert.NotNil(t, p.StartOffset)
	assert.NotNil(t, p.EndOffset)
	assert.Equal(t, "Secura Nr. 15", text[*p.StartOffset:*p.EndOffset])
	assert.Contains(t, p.Excerpt, "Secura Nr. 15")
}

func TestAnchorEvidence_CaseInsensitive(t *testing.T) {
	text := "ARTIKELNUMMER 10280 ist lieferbar."
	data := map[string]interface{}{"artnr": "artikelnummer 10280"}

	pointers := AnchorEvidence(data, text, 0)
	assert.Len(t, pointers, 1)
}

func TestAnchorEvidence_ShortValuesSkipped(t *testing.T) {
	text := "Version 2.1 der Anleitung."
	data := map[string]interface{}{"version": "2.1"}

	pointers := AnchorEvidence(data, text, 0)
	assert.Empty(t, pointers)
}

func TestAnchorEvidence_ValueNotInText(t *testing.T) {
	text := "Hier steht etwas ganz anderes."
	data := map[string]interface{}{"title": "Messerwechsel Anleitung"}

	pointers := AnchorEvidence(data, text, 0)
	assert.Empty(t, pointers)
}

func TestAnchorEvidence_ListEntries(t *testing.T) {
	text := "Warnungen: Schutzbrille tragen. Nicht unter Spannung arbeiten."
	data := map[string]interface{}{
		"warnings": []interface{}{"Schutzbrille tragen", "Nicht unter Spannung arbeiten"},
	}

	pointers := AnchorEvidence(data, text, 0)
	assert.Len(t, pointers, 2)
	assert.NotNil(t, pointerFor(pointers, "warnings[0]"))
	assert.NotNil(t, pointerFor(pointers, "warnings[1]"))
}

func TestAnchorEvidence_MapEntries(t *testing.T) {
	text := "Gewicht: 125 Gramm bei voller Bestueckung."
	data := map[string]interface{}{
		"specs": map[string]interface{}{"weight": "125 Gramm"},
	}

	pointers := AnchorEvidence(data, text, 0)
	assert.Len(t, pointers, 1)
	assert.Equal(t, "specs.weight", pointers[0].FieldPath)
}

func TestAnchorEvidence_LongValueUsesProbe(t *testing.T) {
	long := strings.Repeat("sehr langer beschreibungstext ", 10)
	text := "Einleitung. " + long + " Schluss."
	data := map[string]interface{}{"description": long}

	pointers := AnchorEvidence(data, text, 0)
	assert.Len(t, pointers, 1)

	p := pointers[0]
	// Matching happens on the first 50 characters only.
	assert.Equal(t, 50, *p.EndOffset-*p.StartOffset)
}

func TestAnchorEvidence_ExcerptClippedAtTextBounds(t *testing.T) {
	text := "Secura Nr. 15 am Textanfang."
	data := map[string]interface{}{"name": "Secura Nr. 15"}

	pointers := AnchorEvidence(data, text, 0)
	assert.Len(t, pointers, 1)
	assert.Equal(t, text, pointers[0].Excerpt)
}
