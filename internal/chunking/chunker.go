// Package chunking splits parsed documents into bounded, overlapping text
// chunks that carry their section path and source offsets, and computes the
// per-chunk embedding vector.
package chunking

import (
	"strings"

	"github.com/fathmn/jokari-knowledge-hub/internal/parsers"
)

// TextChunk is one window of document text ready for persistence.
type TextChunk struct {
	Text        string
	SectionPath string
	StartOffset int
	EndOffset   int
	ChunkIndex  int
	Confidence  float64
}

// Config holds chunking parameters in tokens; one token is approximated as
// four characters.
type Config struct {
	MaxChunkSize int
	Overlap      int
	MinChunkSize int
}

// DefaultConfig returns the standard chunking parameters.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: 500,
		Overlap:      50,
		MinChunkSize: 100,
	}
}

// Chunker produces chunks from parsed documents.
type Chunker struct {
	maxChars     int
	overlapChars int
	minChars     int
}

// NewChunker creates a chunker from the given config, applying defaults for
// unset values.
func NewChunker(cfg Config) *Chunker {
	def := DefaultConfig()
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = def.MaxChunkSize
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = def.Overlap
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = def.MinChunkSize
	}
	return &Chunker{
		maxChars:     cfg.MaxChunkSize * 4,
		overlapChars: cfg.Overlap * 4,
		minChars:     cfg.MinChunkSize * 4,
	}
}

// CreateChunks splits the parsed document section by section. Chunk indexes
// are dense and monotonically increasing from 0 across the whole document.
// If the document has no sections, the raw text is chunked as one synthetic
// section.
func (c *Chunker) CreateChunks(doc *parsers.ParsedDocument) []TextChunk {
	var chunks []TextChunk

	for _, section := range doc.Sections {
		chunks = append(chunks, c.chunkSection(section, len(chunks), doc.Confidence)...)
	}

	if len(chunks) == 0 && doc.RawText != "" {
		chunks = c.splitText(doc.RawText, "", 0, doc.Confidence, 0)
	}

	return chunks
}

func (c *Chunker) chunkSection(section parsers.ParsedSection, startIndex int, confidence float64) []TextChunk {
	if section.Content == "" {
		return nil
	}

	path := section.Path
	if section.Title != "" {
		if path != "" {
			path = path + " > " + section.Title
		} else {
			path = section.Title
		}
	}

	return c.splitText(section.Content, path, startIndex, confidence, section.StartOffset)
}

// splitText emits one chunk when the text fits, otherwise accumulates
// paragraphs up to maxChars. A chunk of at least minChars seeds its successor
// with the trailing overlapChars for continuity.
func (c *Chunker) splitText(text, sectionPath string, startIndex int, confidence float64, baseOffset int) []TextChunk {
	if len(text) <= c.maxChars {
		return []TextChunk{{
			Text:        strings.TrimSpace(text),
			SectionPath: sectionPath,
			StartOffset: baseOffset,
			EndOffset:   baseOffset + len(text),
			ChunkIndex:  startIndex,
			Confidence:  confidence,
		}}
	}

	var chunks []TextChunk
	paragraphs := strings.Split(text, "\n\n")
	current := ""
	currentStart := baseOffset
	index := startIndex

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(current)+len(para)+2 > c.maxChars {
			if len(current) >= c.minChars {
				chunks = append(chunks, TextChunk{
					Text:        strings.TrimSpace(current),
					SectionPath: sectionPath,
					StartOffset: currentStart,
					EndOffset:   currentStart + len(current),
					ChunkIndex:  index,
					Confidence:  confidence,
				})
				index++

				overlap := ""
				if len(current) > c.overlapChars {
					overlap = current[len(current)-c.overlapChars:]
				}
				currentStart += len(current) - len(overlap)
				if overlap != "" {
					current = overlap + "\n\n" + para
				} else {
					current = para
				}
			} else {
				current = join(current, para)
			}
		} else {
			current = join(current, para)
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, TextChunk{
			Text:        strings.TrimSpace(current),
			SectionPath: sectionPath,
			StartOffset: currentStart,
			EndOffset:   currentStart + len(current),
			ChunkIndex:  index,
			Confidence:  confidence,
		})
	}

	return chunks
}

func join(current, para string) string {
	if current == "" {
		return para
	}
	return current + "\n\n" + para
}
