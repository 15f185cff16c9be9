package parsers

import (
	"archive/zip"
	"encoding/xml"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// DocxParser reads Word documents. Paragraphs styled as headings open a new
// section at level 1..6; everything else appends to the current section. When
// the canonical reader rejects the file (broken internal references), the
// parser falls back to raw document.xml text extraction at confidence 0.7.
type DocxParser struct{}

func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

func (p *DocxParser) Parse(path string) (*ParsedDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewUpstream("failed to open docx file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, models.NewUpstream("failed to stat docx file", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return p.parseFallback(path, err)
	}

	var (
		sections     []ParsedSection
		rawParts     []string
		offset       int
		sectionTitle string
		sectionLevel int
		sectionStart int
		sectionBody  []string
	)

	flush := func() {
		if len(sectionBody) == 0 {
			return
		}
		sections = append(sections, ParsedSection{
			Title:       sectionTitle,
			Content:     strings.Join(sectionBody, "\n"),
			Level:       sectionLevel,
			StartOffset: sectionStart,
			EndOffset:   offset,
			Path:        buildSectionPath(sections, sectionLevel),
		})
		sectionBody = nil
	}

	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := strings.TrimSpace(para.String())
		if text == "" {
			continue
		}

		if level := headingLevel(para); level > 0 {
			flush()
			sectionTitle = text
			sectionLevel = level
			sectionStart = offset
		} else {
			sectionBody = append(sectionBody, text)
		}

		rawParts = append(rawParts, text)
		offset += len(text) + 1
	}
	flush()

	rawText := strings.Join(rawParts, "\n")
	if len(sections) == 0 && rawText != "" {
		sections = append(sections, ParsedSection{
			Content:   rawText,
			EndOffset: len(rawText),
		})
	}

	return &ParsedDocument{
		RawText:    rawText,
		Sections:   sections,
		Metadata:   map[string]interface{}{},
		Confidence: 1.0,
		FileType:   "docx",
	}, nil
}

// headingLevel maps a paragraph's style to a heading level, 0 for body text.
func headingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := para.Properties.Style.Val
	switch {
	case strings.HasPrefix(style, "Heading"):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(style, "Heading")))
		if err != nil || n < 1 {
			return 1
		}
		if n > 6 {
			return 6
		}
		return n
	case style == "Title" || style == "Titel":
		return 1
	default:
		return 0
	}
}

// parseFallback extracts text runs straight out of word/document.xml and
// returns everything as one low-confidence section.
func (p *DocxParser) parseFallback(path string, cause error) (*ParsedDocument, error) {
	rawText, err := extractDocumentXMLText(path)
	if err != nil || rawText == "" {
		return nil, models.NewUpstream("failed to parse docx file", cause)
	}

	return &ParsedDocument{
		RawText: rawText,
		Sections: []ParsedSection{{
			Content:   rawText,
			EndOffset: len(rawText),
		}},
		Metadata:   map[string]interface{}{},
		Confidence: 0.7,
		FileType:   "docx",
		Warnings:   []string{"document read with fallback parser (broken references): " + cause.Error()},
	}, nil
}

func extractDocumentXMLText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	var docXML *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML = f
			break
		}
	}
	if docXML == nil {
		return "", models.NewUpstream("docx archive has no word/document.xml", nil)
	}

	rc, err := docXML.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var (
		parts  []string
		inText bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			inText = false
		case xml.CharData:
			if inText && len(t) > 0 {
				parts = append(parts, string(t))
			}
		}
	}

	return strings.Join(parts, " "), nil
}
