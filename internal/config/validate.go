package config

import (
	"strconv"
	"strings"

	"github.com/hyperjump/zantara/internal/access"
	"github.com/hyperjump/zantara/internal/models"
)

// Validate checks cross-field constraints after defaults have been applied.
// Problems are reported as *models.ConfigurationError.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return models.NewConfigurationError("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Embedding.Provider {
	case ProviderMock, ProviderONNX:
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return models.NewConfigurationError("embedding.api_key", "required for the openai provider (or set %s)", EnvOpenAIKey)
		}
	default:
		return models.NewConfigurationError("embedding.provider", "unknown provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return models.NewConfigurationError("embedding.dimensions", "must be positive")
	}

	switch c.Vector.Backend {
	case BackendMemory:
	case BackendQdrant:
		if c.Vector.QdrantURL == "" {
			return models.NewConfigurationError("vector.qdrant_url", "required for the qdrant backend (or set %s)", EnvQdrantURL)
		}
	case BackendPgVector:
		if c.Vector.PostgresDSN == "" {
			return models.NewConfigurationError("vector.postgres_dsn", "required for the pgvector backend (or set %s)", EnvPostgresDSN)
		}
	default:
		return models.NewConfigurationError("vector.backend", "unknown backend %q", c.Vector.Backend)
	}

	if c.Retrieval.DefaultLimit > c.Retrieval.MaxLimit {
		return models.NewConfigurationError("retrieval.default_limit", "exceeds max_limit (%d > %d)", c.Retrieval.DefaultLimit, c.Retrieval.MaxLimit)
	}
	if c.Retrieval.SnippetChars < 0 {
		return models.NewConfigurationError("retrieval.snippet_chars", "must not be negative")
	}
	if c.Retrieval.KeywordWeight < 0 || c.Retrieval.SemanticWeight < 0 {
		return models.NewConfigurationError("retrieval", "fusion weights must not be negative")
	}

	if c.Routing.AmbiguityMargin < 0 {
		return models.NewConfigurationError("routing.ambiguity_margin", "must not be negative")
	}
	if c.Routing.MaxCollections < 1 {
		return models.NewConfigurationError("routing.max_collections", "must be at least 1")
	}

	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return models.NewConfigurationError("ingest.chunk_overlap", "must be smaller than chunk_size")
	}
	for i, s := range c.Ingest.Sources {
		field := "ingest.sources[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(s.Directory) == "" {
			return models.NewConfigurationError(field+".directory", "required")
		}
		if strings.TrimSpace(s.Collection) == "" {
			return models.NewConfigurationError(field+".collection", "required")
		}
		if _, err := models.ParseTier(s.Tier); err != nil {
			return models.NewConfigurationError(field+".tier", "%v", err)
		}
		if s.MinLevel < access.MinLevel || s.MinLevel > access.MaxLevel {
			return models.NewConfigurationError(field+".min_level", "must be between %d and %d, got %d",
				access.MinLevel, access.MaxLevel, s.MinLevel)
		}
	}
	return nil
}
