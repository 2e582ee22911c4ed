package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hyperjump/zantara/internal/embedding"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/hyperjump/zantara/internal/vector"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testDims = 16

func newRouter(t testing.TB) *routing.Router {
	t.Helper()
	table, err := routing.NewTable(routing.DefaultSpec())
	require.NoError(t, err)
	return routing.NewRouter(table)
}

// newMemoryStore returns a memory store with every routed collection created.
func newMemoryStore(t testing.TB, router *routing.Router) *vector.MemoryStore {
	t.Helper()
	store := vector.NewMemoryStore()
	require.NoError(t, EnsureCollections(context.Background(), store, router.Table(), testDims))
	return store
}

func addChunk(t testing.TB, store vector.Store, emb embedding.Embedder, collection, id, title, text string, tier models.Tier, minLevel int) {
	t.Helper()
	vec, err := emb.Embed(context.Background(), text)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), collection, []*models.DocumentChunk{{
		ID:         id,
		Collection: collection,
		Text:       text,
		Embedding:  vec,
		Metadata:   models.ChunkMetadata{Tier: tier, MinLevel: minLevel, BookTitle: title, DocumentID: id},
	}}))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.VectorSize = testDims
	return cfg
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func fieldReason(reason string) zap.Field {
	return zap.String("reason", reason)
}

func hit(collection, id string, score float64, tier models.Tier) *models.SearchHit {
	return &models.SearchHit{
		ID:         id,
		Collection: collection,
		Text:       "text of " + id,
		Metadata:   models.ChunkMetadata{Tier: tier, BookTitle: id},
		Score:      score,
	}
}

// stubStore answers Search from fixed per-collection hits, ignoring the
// filter, and records which collections were searched. Everything else is
// delegated to the embedded store.
type stubStore struct {
	vector.Store

	mu       sync.Mutex
	hits     map[string][]*models.SearchHit
	errs     map[string]error
	searched []string
}

func newStubStore(t testing.TB, router *routing.Router) *stubStore {
	return &stubStore{
		Store: newMemoryStore(t, router),
		hits:  make(map[string][]*models.SearchHit),
		errs:  make(map[string]error),
	}
}

func (s *stubStore) Search(ctx context.Context, collection string, query []float32, filter *vector.Filter, k int) ([]*models.SearchHit, error) {
	s.mu.Lock()
	s.searched = append(s.searched, collection)
	err := s.errs[collection]
	src := s.hits[collection]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	out := make([]*models.SearchHit, 0, len(src))
	for _, h := range src {
		cp := *h
		out = append(out, &cp)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *stubStore) Searched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.searched...)
}

// blockingEmbedder never answers before its context ends.
type blockingEmbedder struct{ dims int }

func (e blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (e blockingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (e blockingEmbedder) Dimensions() int { return e.dims }
func (e blockingEmbedder) Close() error    { return nil }

// failingEmbedder always fails.
type failingEmbedder struct{ dims int }

var errEmbeddingDown = errors.New("embedding provider down")

func (e failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errEmbeddingDown
}

func (e failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errEmbeddingDown
}

func (e failingEmbedder) Dimensions() int { return e.dims }
func (e failingEmbedder) Close() error    { return nil }

// blockingStore never answers Search before its context ends.
type blockingStore struct{ *stubStore }

func (s blockingStore) Search(ctx context.Context, collection string, query []float32, filter *vector.Filter, k int) ([]*models.SearchHit, error) {
	s.mu.Lock()
	s.searched = append(s.searched, collection)
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

// panickingStore panics on Search for the listed collections.
type panickingStore struct {
	*stubStore
	panics map[string]bool
}

func (s panickingStore) Search(ctx context.Context, collection string, query []float32, filter *vector.Filter, k int) ([]*models.SearchHit, error) {
	if s.panics[collection] {
		panic("store crashed on " + collection)
	}
	return s.stubStore.Search(ctx, collection, query, filter, k)
}
