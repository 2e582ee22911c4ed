package embedding

import (
	"context"
	"math"

	"github.com/hyperjump/zantara/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. Each word
// is hashed into a bucket, so texts sharing words get similar vectors and the
// same text always gets the same embedding.
type MockEmbedder struct {
	dimensions int
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a unit-length bag-of-words vector for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := SplitWords(text)
	for _, w := range words {
		h := HashString(w)
		sign := float32(1)
		if (h>>32)&1 == 1 {
			sign = -1
		}
		emb[h%uint64(e.dimensions)] += sign
	}
	if len(words) == 0 {
		// Empty text still gets a fixed non-zero vector.
		for i := range emb {
			emb[i] = float32(math.Sin(float64(i + 1)))
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
