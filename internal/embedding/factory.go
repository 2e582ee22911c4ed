package embedding

import (
	"fmt"
	"time"
)

// Provider names an embedding backend.
type Provider string

const (
	// ProviderMock produces deterministic bag-of-words vectors. No network, no model file.
	ProviderMock Provider = "mock"
	// ProviderOpenAI calls the OpenAI embeddings API.
	ProviderOpenAI Provider = "openai"
	// ProviderONNX runs a local model. Requires CGO and the onnxruntime library.
	ProviderONNX Provider = "onnx"
)

// ONNXConfig configures the local ONNX embedder.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	OutputName string
}

// Config selects and configures a provider. CacheSize > 0 wraps the provider in
// a CachedEmbedder.
type Config struct {
	Provider   string
	Model      string
	ModelPath  string
	APIKey     string
	BaseURL    string
	Dimensions int
	MaxTokens  int
	CacheSize  int
	Timeout    time.Duration
}

// New creates the embedder described by cfg.
func New(cfg Config) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch Provider(cfg.Provider) {
	case ProviderMock, "":
		e = NewMockEmbedder(cfg.Dimensions)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case ProviderONNX:
		if cfg.Dimensions <= 0 {
			return nil, fmt.Errorf("onnx provider needs explicit dimensions")
		}
		e, err = NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, openai, onnx)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
