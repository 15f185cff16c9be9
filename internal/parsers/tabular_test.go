package parsers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabularParser_CSV(t *testing.T) {
	content := "artnr,name,beschreibung\n10280,Secura 2K,Abisolierwerkzeug\n10300,,Ersatzmesser\n"
	path := writeTempFile(t, "produkte.csv", content)

	doc, err := NewTabularParser().Parse(path)
	assert.NoError(t, err)
	assert.Equal(t, "csv", doc.FileType)
	assert.Equal(t, 1.0, doc.Confidence)

	assert.Len(t, doc.Sections, 2)
	assert.Equal(t, "Row 1", doc.Sections[0].Title)
	assert.Contains(t, doc.Sections[0].Content, "artnr: 10280")
	assert.Contains(t, doc.Sections[0].Content, "name: Secura 2K")

	// Empty cells are dropped, not emitted as "name: ".
	assert.NotContains(t, doc.Sections[1].Content, "name:")
	assert.Contains(t, doc.Sections[1].Content, "beschreibung: Ersatzmesser")

	assert.Equal(t, 2, doc.Metadata["row_count"])
	assert.Equal(t, 3, doc.Metadata["column_count"])
}

func TestTabularParser_CSVHeaderOnly(t *testing.T) {
	path := writeTempFile(t, "leer.csv", "artnr,name\n")

	doc, err := NewTabularParser().Parse(path)
	assert.NoError(t, err)
	assert.Empty(t, doc.Sections)
	assert.Equal(t, 0, doc.Metadata["row_count"])
}

func TestTabularParser_RaggedRows(t *testing.T) {
	path := writeTempFile(t, "ragged.csv", "a,b,c\n1,2\n3,4,5,6\n")

	doc, err := NewTabularParser().Parse(path)
	assert.NoError(t, err)
	assert.Len(t, doc.Sections, 2)
	assert.Contains(t, doc.Sections[0].Content, "a: 1")
	assert.NotContains(t, doc.Sections[0].Content, "c:")
}

func TestTabularParser_UnreadableFileDegrades(t *testing.T) {
	doc, err := NewTabularParser().Parse(filepath.Join(t.TempDir(), "missing.csv"))
	assert.NoError(t, err)
	assert.Equal(t, 0.0, doc.Confidence)
	assert.NotEmpty(t, doc.Warnings)
	assert.Empty(t, doc.Sections)
}
