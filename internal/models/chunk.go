package models

// EmbeddingDim is the fixed width of chunk embedding vectors.
const EmbeddingDim = 1536

// Chunk is a bounded text window derived from a parsed document.
// chunk_index values within one document are the dense sequence 0..n-1.
type Chunk struct {
	ID          string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	SectionPath string    `json:"section_path,omitempty"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Confidence  float64   `json:"confidence"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	ChunkIndex  int       `json:"chunk_index"`
}

// Validate checks chunk invariants before persisting.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return NewValidation("chunk_id is required")
	}
	if c.DocumentID == "" {
		return NewValidation("document_id is required")
	}
	if c.Text == "" {
		return NewValidation("chunk text is required")
	}
	if c.StartOffset < 0 || c.EndOffset < c.StartOffset {
		return NewValidation("invalid chunk offsets: start=%d end=%d", c.StartOffset, c.EndOffset)
	}
	if c.ChunkIndex < 0 {
		return NewValidation("chunk_index cannot be negative")
	}
	if len(c.Embedding) != 0 && len(c.Embedding) != EmbeddingDim {
		return NewValidation("embedding must have dimension %d, got %d", EmbeddingDim, len(c.Embedding))
	}
	return nil
}

// ChunkDTO is the API shape of a chunk. The embedding is omitted on purpose;
// clients never consume raw vectors.
type ChunkDTO struct {
	ID          string  `json:"chunk_id"`
	DocumentID  string  `json:"document_id"`
	SectionPath string  `json:"section_path,omitempty"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	ChunkIndex  int     `json:"chunk_index"`
}

func (c *Chunk) ToDTO() ChunkDTO {
	return ChunkDTO{
		ID:          c.ID,
		DocumentID:  c.DocumentID,
		SectionPath: c.SectionPath,
		Text:        c.Text,
		Confidence:  c.Confidence,
		StartOffset: c.StartOffset,
		EndOffset:   c.EndOffset,
		ChunkIndex:  c.ChunkIndex,
	}
}
