package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
	"github.com/fathmn/jokari-knowledge-hub/internal/parsers"
)

func TestCreateChunks_SmallSectionIsOneChunk(t *testing.T) {
	chunker := NewChunker(DefaultConfig())
	doc := &parsers.ParsedDocument{
		RawText: "kurzer Text",
		Sections: []parsers.ParsedSection{
			{Title: "Montage", Content: "Schritt eins, dann Schritt zwei.", StartOffset: 10},
		},
		Confidence: 1.0,
	}

	chunks := chunker.CreateChunks(doc)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "Schritt eins, dann Schritt zwei.", chunks[0].Text)
	assert.Equal(t, "Montage", chunks[0].SectionPath)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 10, chunks[0].StartOffset)
	assert.Equal(t, 1.0, chunks[0].Confidence)
}

func TestCreateChunks_LongSectionSplits(t *testing.T) {
	chunker := NewChunker(Config{MaxChunkSize: 50, Overlap: 10, MinChunkSize: 10})

	paragraphs := make([]string, 12)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("wort ", 20)
	}
	doc := &parsers.ParsedDocument{
		Sections: []parsers.ParsedSection{
			{Title: "Lang", Content: strings.Join(paragraphs, "\n\n")},
		},
		Confidence: 1.0,
	}

	chunks := chunker.CreateChunks(doc)
	assert.Greater(t, len(chunks), 1)

	// Indexes are dense and increasing from zero.
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.LessOrEqual(t, len(chunk.Text), 50*4+100)
	}
}

func TestCreateChunks_IndexesSpanSections(t *testing.T) {
	chunker := NewChunker(DefaultConfig())
	doc := &parsers.ParsedDocument{
		Sections: []parsers.ParsedSection{
			{Title: "Eins", Content: "Inhalt eins."},
			{Title: "Zwei", Content: "Inhalt zwei."},
			{Title: "Drei", Content: "Inhalt drei."},
		},
		Confidence: 1.0,
	}

	chunks := chunker.CreateChunks(doc)
	assert.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
	}
}

func TestCreateChunks_EmptySectionsSkipped(t *testing.T) {
	chunker := NewChunker(DefaultConfig())
	doc := &parsers.ParsedDocument{
		Sections: []parsers.ParsedSection{
			{Title: "Leer", Content: ""},
			{Title: "Voll", Content: "Inhalt."},
		},
		Confidence: 1.0,
	}

	chunks := chunker.CreateChunks(doc)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "Voll", chunks[0].SectionPath)
}

func TestCreateChunks_NoSectionsFallsBackToRawText(t *testing.T) {
	chunker := NewChunker(DefaultConfig())
	doc := &parsers.ParsedDocument{
		RawText:    "Nur Rohtext ohne Abschnitte.",
		Confidence: 0.8,
	}

	chunks := chunker.CreateChunks(doc)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "Nur Rohtext ohne Abschnitte.", chunks[0].Text)
	assert.Empty(t, chunks[0].SectionPath)
	assert.Equal(t, 0.8, chunks[0].Confidence)
}

func TestCreateChunks_SectionPathJoinsTitle(t *testing.T) {
	chunker := NewChunker(DefaultConfig())
	doc := &parsers.ParsedDocument{
		Sections: []parsers.ParsedSection{
			{Title: "Werkzeug", Path: "Montage", Content: "Seitenschneider."},
		},
		Confidence: 1.0,
	}

	chunks := chunker.CreateChunks(doc)
	assert.Len(t, chunks, 1)
	assert.Equal(t, "Montage > Werkzeug", chunks[0].SectionPath)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	embedder := NewHashEmbedder()

	a := embedder.Embed("Abisolierzange Secura")
	b := embedder.Embed("Abisolierzange Secura")
	c := embedder.Embed("anderer Text")

	assert.Len(t, a, models.EmbeddingDim)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
	}
}
