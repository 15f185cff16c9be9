package parsers

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TabularParser reads CSV and Excel files. The header row names the columns;
// every data row becomes one "Row N" section whose content joins the
// non-empty cells as "col: value" lines.
type TabularParser struct{}

func NewTabularParser() *TabularParser {
	return &TabularParser{}
}

func (p *TabularParser) Parse(path string) (*ParsedDocument, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	var (
		rows [][]string
		err  error
	)
	if ext == "csv" {
		rows, err = readCSV(path)
	} else {
		rows, err = readExcel(path)
	}
	if err != nil {
		// Unreadable tabular files degrade to an empty zero-confidence
		// document instead of failing the caller.
		return &ParsedDocument{
			Metadata:   map[string]interface{}{},
			Confidence: 0.0,
			FileType:   ext,
			Warnings:   []string{"failed to read file: " + err.Error()},
		}, nil
	}

	if len(rows) == 0 {
		return &ParsedDocument{
			Metadata:   map[string]interface{}{},
			Confidence: 1.0,
			FileType:   ext,
			Warnings:   []string{"file contains no rows"},
		}, nil
	}

	headers := rows[0]
	rawLines := []string{strings.Join(headers, " | ")}
	var sections []ParsedSection
	offset := 0

	for i, row := range rows[1:] {
		var cells []string
		for c, header := range headers {
			if c >= len(row) {
				break
			}
			value := strings.TrimSpace(row[c])
			if value == "" {
				continue
			}
			cells = append(cells, fmt.Sprintf("%s: %s", header, value))
		}

		rowText := strings.Join(cells, "\n")
		rawLines = append(rawLines, rowText)

		sections = append(sections, ParsedSection{
			Title:       fmt.Sprintf("Row %d", i+1),
			Content:     rowText,
			Level:       1,
			StartOffset: offset,
			EndOffset:   offset + len(rowText),
		})
		offset += len(rowText) + 1
	}

	return &ParsedDocument{
		RawText:  strings.Join(rawLines, "\n\n"),
		Sections: sections,
		Metadata: map[string]interface{}{
			"columns":      headers,
			"row_count":    len(rows) - 1,
			"column_count": len(headers),
		},
		Confidence: 1.0,
		FileType:   ext,
	}, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheet)
}
