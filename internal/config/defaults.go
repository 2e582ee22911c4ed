package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/zantara/data/db/chunks.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/zantara/data/indices/bleve"
	}
	if cfg.Storage.VectorSnapshotPath == "" {
		cfg.Storage.VectorSnapshotPath = "/usr/local/var/zantara/data/indices/vectors.bin"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderMock
	}
	if cfg.Embedding.Provider == ProviderOpenAI && cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Provider == ProviderONNX && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/zantara/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		if cfg.Embedding.Provider == ProviderOpenAI {
			cfg.Embedding.Dimensions = 1536
		} else {
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = BackendMemory
	}
	if cfg.Vector.Table == "" {
		cfg.Vector.Table = "rag_chunks"
	}
	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = 10 * time.Second
	}

	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = 5
	}
	if cfg.Retrieval.MaxLimit == 0 {
		cfg.Retrieval.MaxLimit = 50
	}
	if cfg.Retrieval.SnippetChars == 0 {
		cfg.Retrieval.SnippetChars = 500
	}
	if cfg.Retrieval.EmbedTimeout == 0 {
		cfg.Retrieval.EmbedTimeout = 5 * time.Second
	}
	if cfg.Retrieval.SearchTimeout == 0 {
		cfg.Retrieval.SearchTimeout = 5 * time.Second
	}
	if cfg.Retrieval.KeywordWeight == 0 && cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.3
		cfg.Retrieval.SemanticWeight = 0.7
	}
	if cfg.Retrieval.TopKCandidates == 0 {
		cfg.Retrieval.TopKCandidates = 50
	}

	if cfg.Routing.AmbiguityMargin == 0 {
		cfg.Routing.AmbiguityMargin = 1.0
	}
	if cfg.Routing.MaxCollections == 0 {
		cfg.Routing.MaxCollections = 3
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 200
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 30
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".markdown", ".rst"}
	}
	if cfg.Ingest.Debounce == 0 {
		cfg.Ingest.Debounce = 500 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Ingest.Sources) > 0 && cfg.Ingest.Recursive == nil {
		t := true
		cfg.Ingest.Recursive = &t
	}
	for i := range cfg.Ingest.Sources {
		if cfg.Ingest.Sources[i].Tier == "" {
			cfg.Ingest.Sources[i].Tier = "C"
		}
	}
}
