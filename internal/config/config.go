// Package config provides configuration loading and structs for the ZANTARA retrieval server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Routing   RoutingConfig   `yaml:"routing"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the chunk database and local indices.
type StorageConfig struct {
	DatabasePath       string `yaml:"database_path"`
	BleveIndexPath     string `yaml:"bleve_index_path"`
	VectorSnapshotPath string `yaml:"vector_snapshot_path"`
}

// Embedding providers.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	ModelPath  string        `yaml:"model_path"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	APIKey     string        `yaml:"api_key,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Vector store backends.
const (
	BackendMemory   = "memory"
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
)

// VectorConfig selects the vector store backend.
type VectorConfig struct {
	Backend      string        `yaml:"backend"`
	QdrantURL    string        `yaml:"qdrant_url"`
	QdrantAPIKey string        `yaml:"qdrant_api_key,omitempty"`
	PostgresDSN  string        `yaml:"postgres_dsn,omitempty"`
	Table        string        `yaml:"table"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds orchestrator limits and timeouts.
type RetrievalConfig struct {
	DefaultLimit   int           `yaml:"default_limit"`
	MaxLimit       int           `yaml:"max_limit"`
	SnippetChars   int           `yaml:"snippet_chars"`
	EmbedTimeout   time.Duration `yaml:"embed_timeout"`
	SearchTimeout  time.Duration `yaml:"search_timeout"`
	Hybrid         bool          `yaml:"hybrid"`
	KeywordWeight  float64       `yaml:"keyword_weight"`
	SemanticWeight float64       `yaml:"semantic_weight"`
	TopKCandidates int           `yaml:"top_k_candidates"`
}

// RoutingConfig tunes the query router. TablePath, when set, replaces the
// built-in routing table with a YAML file.
type RoutingConfig struct {
	TablePath         string               `yaml:"table_path"`
	DefaultCollection string               `yaml:"default_collection"`
	AmbiguityMargin   float64              `yaml:"ambiguity_margin"`
	MaxCollections    int                  `yaml:"max_collections"`
	Weights           RoutingWeightsConfig `yaml:"weights"`
}

// RoutingWeightsConfig overrides keyword weights. Zero keeps the table value.
type RoutingWeightsConfig struct {
	Keyword         float64 `yaml:"keyword"`
	HighSpecificity float64 `yaml:"high_specificity"`
	Modifier        float64 `yaml:"modifier"`
}

// IngestConfig holds chunking and watched source settings.
type IngestConfig struct {
	ChunkSize    int            `yaml:"chunk_size"`
	ChunkOverlap int            `yaml:"chunk_overlap"`
	Extensions   []string       `yaml:"extensions"`
	Recursive    *bool          `yaml:"recursive"`
	Debounce     time.Duration  `yaml:"debounce"`
	Sources      []SourceConfig `yaml:"sources"`
}

// SourceConfig binds a directory of documents to a collection and access tier.
type SourceConfig struct {
	Directory  string `yaml:"directory"`
	Collection string `yaml:"collection"`
	Tier       string `yaml:"tier"`
	MinLevel   int    `yaml:"min_level"`
	Language   string `yaml:"language,omitempty"`
}

// RecursiveOrDefault returns whether to walk sources recursively; defaults to true when unset.
func (i *IngestConfig) RecursiveOrDefault() bool {
	if i.Recursive != nil {
		return *i.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies environment overrides
// and defaults, and expands paths. It does not validate; call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorSnapshotPath = expandPath(cfg.Storage.VectorSnapshotPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Routing.TablePath != "" {
		cfg.Routing.TablePath = expandPath(cfg.Routing.TablePath, configDir)
	}
	for i := range cfg.Ingest.Sources {
		cfg.Ingest.Sources[i].Directory = expandPath(cfg.Ingest.Sources[i].Directory, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Secrets loaded from the environment are not written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Embedding.APIKey = ""
	out.Vector.QdrantAPIKey = ""
	out.Vector.PostgresDSN = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Environment variables consulted by ApplyEnv.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvOpenAIBase  = "OPENAI_BASE_URL"
	EnvQdrantURL   = "QDRANT_URL"
	EnvQdrantKey   = "QDRANT_API_KEY"
	EnvPostgresDSN = "DATABASE_URL"
)

// ApplyEnv fills credentials and endpoints from the environment when the file leaves them empty.
func ApplyEnv(cfg *Config) {
	setIfEmpty(&cfg.Embedding.APIKey, EnvOpenAIKey)
	setIfEmpty(&cfg.Embedding.BaseURL, EnvOpenAIBase)
	setIfEmpty(&cfg.Vector.QdrantURL, EnvQdrantURL)
	setIfEmpty(&cfg.Vector.QdrantAPIKey, EnvQdrantKey)
	setIfEmpty(&cfg.Vector.PostgresDSN, EnvPostgresDSN)
}

func setIfEmpty(dst *string, env string) {
	if *dst != "" {
		return
	}
	if v, ok := os.LookupEnv(env); ok {
		*dst = strings.TrimSpace(v)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
