package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hyperjump/zantara/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

// openAIMaxBatch is the largest input list sent in a single request.
const openAIMaxBatch = 512

// OpenAIModelDimensions maps known OpenAI embedding models to their output size.
var OpenAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder. Dimensions defaults to the
// model's native size and must match it for known models.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if native, ok := OpenAIModelDimensions[cfg.Model]; ok {
		if cfg.Dimensions == 0 {
			cfg.Dimensions = native
		} else if cfg.Dimensions != native {
			return nil, fmt.Errorf("model %s produces %d dimensions, configured %d", cfg.Model, native, cfg.Dimensions)
		}
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions are required for unknown model %s", cfg.Model)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dim:    cfg.Dimensions,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends texts in as few requests as the API allows and returns the
// vectors in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += openAIMaxBatch {
		end := start + openAIMaxBatch
		if end > len(texts) {
			end = len(texts)
		}
		if err := e.embedRange(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedRange(ctx context.Context, texts []string, out [][]float32) error {
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("cannot embed empty text at position %d", i)
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return fmt.Errorf("openai returned out-of-range index %d", d.Index)
		}
		if len(d.Embedding) != e.dim {
			return fmt.Errorf("openai returned %d dimensions, expected %d", len(d.Embedding), e.dim)
		}
		v := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float32(x)
		}
		utils.NormalizeL2(v)
		out[d.Index] = v
	}
	return nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dim
}

// Close is a no-op; the HTTP client has nothing to release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
