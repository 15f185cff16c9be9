package chunking

import (
	"crypto/sha256"

	"github.com/fathmn/jokari-knowledge-hub/internal/models"
)

// Embedder turns chunk text into a fixed-width vector. The production
// implementation is pluggable; the hash embedder below is deterministic and
// serves until a real embedding model is wired in.
type Embedder interface {
	Embed(text string) []float32
}

// HashEmbedder derives a vector of dimension models.EmbeddingDim from the
// SHA-256 digest of the text, each component normalized to [-1, 1]. Equal
// text always yields an equal vector.
type HashEmbedder struct{}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (e *HashEmbedder) Embed(text string) []float32 {
	digest := sha256.Sum256([]byte(text))

	embedding := make([]float32, models.EmbeddingDim)
	for i := range embedding {
		b := digest[i%len(digest)]
		embedding[i] = float32(b)/255.0*2 - 1
	}
	return embedding
}
