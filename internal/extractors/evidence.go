package extractors

import (
	"fmt"
	"strings"
)

const (
	evidenceProbeLen   = 50
	evidenceContextLen = 50
	evidenceMinLen     = 4
)

// AnchorEvidence locates each extracted string value back in the source text
// and returns one pointer per value that was found. Matching is
// case-insensitive on the first evidenceProbeLen characters of the value;
// the excerpt carries evidenceContextLen characters of context on each side.
// List entries anchor as "field[i]" and map entries as "field.key".
func AnchorEvidence(data map[string]interface{}, text string, chunkIndex int) []EvidencePointer {
	var pointers []EvidencePointer
	lowerText := strings.ToLower(text)

	for field, value := range data {
		pointers = append(pointers, anchorValue(field, value, text, lowerText, chunkIndex)...)
	}
	return pointers
}

func anchorValue(fieldPath string, value interface{}, text, lowerText string, chunkIndex int) []EvidencePointer {
	switch v := value.(type) {
	case string:
		if p := anchorString(fieldPath, v, text, lowerText, chunkIndex); p != nil {
			return []EvidencePointer{*p}
		}
	case []interface{}:
		var pointers []EvidencePointer
		for i, item := range v {
			pointers = append(pointers, anchorValue(fmt.Sprintf("%s[%d]", fieldPath, i), item, text, lowerText, chunkIndex)...)
		}
		return pointers
	case []string:
		var pointers []EvidencePointer
		for i, item := range v {
			pointers = append(pointers, anchorValue(fmt.Sprintf("%s[%d]", fieldPath, i), item, text, lowerText, chunkIndex)...)
		}
		return pointers
	case map[string]interface{}:
		var pointers []EvidencePointer
		for key, item := range v {
			pointers = append(pointers, anchorValue(fieldPath+"."+key, item, text, lowerText, chunkIndex)...)
		}
		return pointers
	}
	return nil
}

func anchorString(fieldPath, value, text, lowerText string, chunkIndex int) *EvidencePointer {
	value = strings.TrimSpace(value)
	if len(value) < evidenceMinLen {
		return nil
	}

	probe := value
	if len(probe) > evidenceProbeLen {
		probe = probe[:evidenceProbeLen]
	}

	pos := strings.Index(lowerText, strings.ToLower(probe))
	if pos < 0 {
		return nil
	}

	start := pos
	end := pos + len(probe)

	excerptStart := start - evidenceContextLen
	if excerptStart < 0 {
		excerptStart = 0
	}
	excerptEnd := end + evidenceContextLen
	if excerptEnd > len(text) {
		excerptEnd = len(text)
	}

	return &EvidencePointer{
		FieldPath:   fieldPath,
		Excerpt:     text[excerptStart:excerptEnd],
		ChunkIndex:  chunkIndex,
		StartOffset: &start,
		EndOffset:   &end,
	}
}
