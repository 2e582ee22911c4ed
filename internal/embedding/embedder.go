// Package embedding turns query and chunk text into vectors. Providers are a
// deterministic mock, OpenAI and a local ONNX model; any of them can sit
// behind an LRU cache.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
