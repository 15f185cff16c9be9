// Package parsers turns uploaded files into a ParsedDocument: the raw text
// stream, a list of hierarchical sections with offsets into that stream, file
// metadata, and a parse confidence. One parser per file family, dispatched by
// a closed registry keyed on the lowercased file extension.
package parsers

import (
	"path/filepath"
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// ParsedSection is a titled or untitled block of a parsed document.
// Level 0 means body text with no heading. Offsets index into the produced
// raw text, not the source bytes.
type ParsedSection struct {
	Title       string
	Content     string
	Level       int
	StartOffset int
	EndOffset   int
	Path        string
}

// ParsedDocument is the output of any parser.
type ParsedDocument struct {
	RawText    string
	Sections   []ParsedSection
	Metadata   map[string]interface{}
	Confidence float64
	FileType   string
	Warnings   []string
}

// Parser is implemented once per file family.
type Parser interface {
	Parse(path string) (*ParsedDocument, error)
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	byExtension map[string]Parser
}

// NewRegistry builds the registry with all built-in parsers.
func NewRegistry() *Registry {
	docx := NewDocxParser()
	md := NewMarkdownParser()
	tab := NewTabularParser()
	pdf := NewPdfParser()

	return &Registry{
		byExtension: map[string]Parser{
			".docx":     docx,
			".doc":      docx,
			".md":       md,
			".markdown": md,
			".csv":      tab,
			".xlsx":     tab,
			".xls":      tab,
			".pdf":      pdf,
		},
	}
}

// ForFile returns the parser for the file's extension. Unknown extensions
// are a validation error, never a panic.
func (r *Registry) ForFile(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExtension[ext]
	if !ok {
		return nil, models.NewValidation("no parser for file type: %s", ext)
	}
	return p, nil
}

// SupportedExtensions returns every registered extension.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	return exts
}

// IsSupported reports whether the extension has a registered parser.
func (r *Registry) IsSupported(ext string) bool {
	_, ok := r.byExtension[strings.ToLower(ext)]
	return ok
}

// buildSectionPath walks already-collected sections backwards and joins the
// titles of strictly shallower headings into "A > B" ancestor chains.
func buildSectionPath(sections []ParsedSection, currentLevel int) string {
	var parts []string
	level := currentLevel
	for i := len(sections) - 1; i >= 0; i-- {
		s := sections[i]
		if s.Level > 0 && s.Level < level && s.Title != "" {
			parts = append([]string{s.Title}, parts...)
			level = s.Level
		}
	}
	return strings.Join(parts, " > ")
}
