package parsers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(content), 0o644)
	assert.NoError(t, err)
	return path
}

func TestMarkdownParser_Headings(t *testing.T) {
	content := "# Montage\n\nSchritt eins.\n\n## Werkzeug\n\nSeitenschneider und Abisolierzange.\n"
	path := writeTempFile(t, "guide.md", content)

	doc, err := NewMarkdownParser().Parse(path)
	assert.NoError(t, err)
	assert.Equal(t, content, doc.RawText)
	assert.Equal(t, 1.0, doc.Confidence)
	assert.Equal(t, "markdown", doc.FileType)

	assert.Len(t, doc.Sections, 2)
	assert.Equal(t, "Montage", doc.Sections[0].Title)
	assert.Equal(t, 1, doc.Sections[0].Level)
	assert.Equal(t, "Schritt eins.", doc.Sections[0].Content)
	assert.Equal(t, "Werkzeug", doc.Sections[1].Title)
	assert.Equal(t, 2, doc.Sections[1].Level)
	assert.Equal(t, "Montage", doc.Sections[1].Path)
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	path := writeTempFile(t, "plain.md", "Nur Fliesstext ohne Ueberschrift.\n")

	doc, err := NewMarkdownParser().Parse(path)
	assert.NoError(t, err)
	assert.Len(t, doc.Sections, 1)
	assert.Empty(t, doc.Sections[0].Title)
	assert.Equal(t, 0, doc.Sections[0].Level)
	assert.Equal(t, "Nur Fliesstext ohne Ueberschrift.", doc.Sections[0].Content)
}

func TestMarkdownParser_PreambleBeforeFirstHeading(t *testing.T) {
	path := writeTempFile(t, "pre.md", "Einleitung vor der Ueberschrift.\n\n# Kapitel\n\nInhalt.\n")

	doc, err := NewMarkdownParser().Parse(path)
	assert.NoError(t, err)
	assert.Len(t, doc.Sections, 2)
	assert.Empty(t, doc.Sections[0].Title)
	assert.Equal(t, "Einleitung vor der Ueberschrift.", doc.Sections[0].Content)
	assert.Equal(t, "Kapitel", doc.Sections[1].Title)
}

func TestMarkdownParser_Frontmatter(t *testing.T) {
	path := writeTempFile(t, "front.md", "---\nauthor: M. Krause\nversion: 1.2\n---\n# Titel\n\nText.\n")

	doc, err := NewMarkdownParser().Parse(path)
	assert.NoError(t, err)
	assert.Equal(t, "M. Krause", doc.Metadata["author"])
	assert.Equal(t, "1.2", doc.Metadata["version"])
}

func TestMarkdownParser_SectionOffsetsIndexRawText(t *testing.T) {
	content := "# Eins\n\nInhalt eins.\n\n# Zwei\n\nInhalt zwei.\n"
	path := writeTempFile(t, "offsets.md", content)

	doc, err := NewMarkdownParser().Parse(path)
	assert.NoError(t, err)
	for _, section := range doc.Sections {
		assert.GreaterOrEqual(t, section.StartOffset, 0)
		assert.LessOrEqual(t, section.EndOffset, len(content))
		assert.Less(t, section.StartOffset, section.EndOffset)
	}
}

func TestMarkdownParser_MissingFile(t *testing.T) {
	_, err := NewMarkdownParser().Parse(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestRegistry_Dispatch(t *testing.T) {
	registry := NewRegistry()

	p, err := registry.ForFile("/tmp/katalog.MD")
	assert.NoError(t, err)
	assert.IsType(t, &MarkdownParser{}, p)

	p, err = registry.ForFile("liste.csv")
	assert.NoError(t, err)
	assert.IsType(t, &TabularParser{}, p)

	_, err = registry.ForFile("bild.jpg")
	assert.Error(t, err)
}

func TestRegistry_IsSupported(t *testing.T) {
	registry := NewRegistry()

	assert.True(t, registry.IsSupported(".docx"))
	assert.True(t, registry.IsSupported(".PDF"))
	assert.True(t, registry.IsSupported(".xlsx"))
	assert.False(t, registry.IsSupported(".exe"))
	assert.False(t, registry.IsSupported(""))
}
