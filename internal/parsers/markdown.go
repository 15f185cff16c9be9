package parsers

import (
	"os"
	"regexp"
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// MarkdownParser parses markdown by ATX headings. Text before the first
// heading becomes a level-0 section; frontmatter becomes metadata.
type MarkdownParser struct{}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Parse(path string) (*ParsedDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewUpstream("failed to read markdown file", err)
	}
	rawText := string(raw)

	var sections []ParsedSection
	headings := headingPattern.FindAllStringSubmatchIndex(rawText, -1)

	if len(headings) == 0 {
		sections = append(sections, ParsedSection{
			Content:     strings.TrimSpace(rawText),
			StartOffset: 0,
			EndOffset:   len(rawText),
		})
	} else {
		if headings[0][0] > 0 {
			pre := strings.TrimSpace(rawText[:headings[0][0]])
			if pre != "" {
				sections = append(sections, ParsedSection{
					Content:     pre,
					StartOffset: 0,
					EndOffset:   headings[0][0],
				})
			}
		}

		for i, m := range headings {
			level := m[3] - m[2]
			title := strings.TrimSpace(rawText[m[4]:m[5]])

			contentStart := m[1] + 1
			contentEnd := len(rawText)
			if i+1 < len(headings) {
				contentEnd = headings[i+1][0]
			}
			content := ""
			if contentStart < contentEnd {
				content = strings.TrimSpace(rawText[contentStart:contentEnd])
			}

			sections = append(sections, ParsedSection{
				Title:       title,
				Content:     content,
				Level:       level,
				StartOffset: m[0],
				EndOffset:   contentEnd,
				Path:        buildSectionPath(sections, level),
			})
		}
	}

	return &ParsedDocument{
		RawText:    rawText,
		Sections:   sections,
		Metadata:   parseFrontmatter(rawText),
		Confidence: 1.0,
		FileType:   "markdown",
	}, nil
}

// parseFrontmatter reads a leading "---\n...\n---\n" block as simple
// "key: value" pairs.
func parseFrontmatter(text string) map[string]interface{} {
	metadata := map[string]interface{}{}
	if !strings.HasPrefix(text, "---") {
		return metadata
	}
	rest := text[3:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return metadata
	}
	for _, line := range strings.Split(rest[:end], "\n") {
		if key, value, ok := strings.Cut(line, ":"); ok {
			metadata[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return metadata
}
