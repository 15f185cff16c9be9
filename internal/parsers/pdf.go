package parsers

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const pdfFidelityWarning = "PDF extraction: text content only. Formatting, tables and images may not be captured correctly."

// PdfParser extracts per-page text. Each page becomes a level-1 "Page N"
// section. PDF parses are always marked low-confidence, and a file that
// cannot be opened yields an empty zero-confidence document, never an error.
type PdfParser struct{}

func NewPdfParser() *PdfParser {
	return &PdfParser{}
}

func (p *PdfParser) Parse(path string) (*ParsedDocument, error) {
	warnings := []string{pdfFidelityWarning}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return &ParsedDocument{
			Metadata:   map[string]interface{}{},
			Confidence: 0.0,
			FileType:   "pdf",
			Warnings:   append(warnings, "failed to read PDF: "+err.Error()),
		}, nil
	}
	defer f.Close()

	var (
		sections []ParsedSection
		rawParts []string
		offset   int
	)

	pageCount := reader.NumPage()
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to extract text from page %d: %v", pageNum, err))
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		rawParts = append(rawParts, pageText)
		sections = append(sections, ParsedSection{
			Title:       fmt.Sprintf("Page %d", pageNum),
			Content:     pageText,
			Level:       1,
			StartOffset: offset,
			EndOffset:   offset + len(pageText),
		})
		offset += len(pageText) + 2
	}

	rawText := strings.Join(rawParts, "\n\n")
	if len(sections) == 0 && rawText != "" {
		sections = append(sections, ParsedSection{
			Content:   rawText,
			EndOffset: len(rawText),
		})
	}

	return &ParsedDocument{
		RawText:    rawText,
		Sections:   sections,
		Metadata:   map[string]interface{}{"page_count": pageCount},
		Confidence: 0.7,
		FileType:   "pdf",
		Warnings:   warnings,
	}, nil
}
