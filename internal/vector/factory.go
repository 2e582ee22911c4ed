package vector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backend names a vector store implementation.
type Backend string

const (
	// BackendMemory is an in-process brute-force store, optionally snapshotted to disk.
	BackendMemory Backend = "memory"
	// BackendQdrant talks to a Qdrant server over REST.
	BackendQdrant Backend = "qdrant"
	// BackendPgVector uses Postgres with the pgvector extension.
	BackendPgVector Backend = "pgvector"
)

// Config selects and configures a backend.
type Config struct {
	Backend      string
	QdrantURL    string
	QdrantAPIKey string
	PostgresDSN  string
	Table        string
	Timeout      time.Duration
	SnapshotPath string
}

// NewStore creates the store described by cfg. The memory backend loads
// cfg.SnapshotPath when it exists.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		s := NewMemoryStore()
		if err := s.Load(cfg.SnapshotPath); err != nil {
			return nil, fmt.Errorf("load vector snapshot: %w", err)
		}
		return s, nil
	case BackendQdrant:
		q, err := NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Timeout, WithQdrantLogger(logger))
		if err != nil {
			return nil, err
		}
		return q, nil
	case BackendPgVector:
		table := cfg.Table
		if table == "" {
			table = "rag_chunks"
		}
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		pg, err := NewPgVectorStore(ctx, cfg.PostgresDSN, table, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, qdrant, pgvector)", cfg.Backend)
	}
}

// Snapshotter is implemented by stores that persist to a local file.
type Snapshotter interface {
	Save(path string) error
}
