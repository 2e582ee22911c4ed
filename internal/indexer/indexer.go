package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hyperjump/zantara/internal/config"
	"github.com/hyperjump/zantara/internal/embedding"
	"github.com/hyperjump/zantara/internal/ids"
	"github.com/hyperjump/zantara/internal/keyword"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/hyperjump/zantara/internal/storage"
	"github.com/hyperjump/zantara/internal/vector"
	"go.uber.org/zap"
)

// ErrEmptyContent is returned when a document has no text left after preprocessing.
var ErrEmptyContent = errors.New("document has no content")

// Source describes where ingested documents go and who may see them.
type Source struct {
	Collection string
	Tier       models.Tier
	MinLevel   int
	Language   string
}

// SourceFromConfig converts a configured ingest source.
func SourceFromConfig(sc config.SourceConfig) (Source, error) {
	tier, err := models.ParseTier(sc.Tier)
	if err != nil {
		return Source{}, err
	}
	return Source{Collection: sc.Collection, Tier: tier, MinLevel: sc.MinLevel, Language: sc.Language}, nil
}

// IngestResult reports the outcome of one ingestion.
type IngestResult struct {
	Document *models.Document `json:"document"`
	// Skipped is true when the stored document already had the same content and metadata.
	Skipped bool `json:"skipped"`
}

// Indexer writes documents into the vector store, the chunk database and,
// when configured, the keyword index.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      vector.Store
	keywordIndex keyword.KeywordIndex // optional
	chunker      *Chunker
	config       config.IngestConfig
	table        *routing.Table // optional; restricts collections to the routing table
	logger       *zap.Logger

	mu sync.Mutex // serializes writes
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document ingested, skipped, deleted).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithRoutingTable rejects collections the router does not know.
func WithRoutingTable(t *routing.Table) IndexerOption {
	return func(idx *Indexer) { idx.table = t }
}

// NewIndexer creates an indexer with the given dependencies. keywordIndex may be nil.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectors vector.Store,
	keywordIndex keyword.KeywordIndex,
	cfg config.IngestConfig,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      store,
		embedder:     embedder,
		vectors:      vectors,
		keywordIndex: keywordIndex,
		chunker:      NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		config:       cfg,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (idx *Indexer) checkCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return errors.New("collection is required")
	}
	if idx.table != nil {
		if _, err := idx.table.ParseCollectionID(collection); err != nil {
			return err
		}
	}
	return nil
}

// contentHash covers everything that ends up in chunk payloads, so a tier
// change re-ingests even when the text is the same.
func contentHash(in *models.DocumentInput, content string) string {
	h := sha256.New()
	for _, part := range []string{in.Title, in.Source, string(in.Tier), strconv.Itoa(in.MinLevel), in.Language, content} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// IngestDocument chunks, embeds and stores a document in collection. A missing
// ID is derived from the content; a missing tier defaults to C. Re-ingesting a
// document replaces all of its chunks. Unchanged documents are skipped.
func (idx *Indexer) IngestDocument(ctx context.Context, collection string, input *models.DocumentInput) (*IngestResult, error) {
	if err := idx.checkCollection(collection); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, ErrEmptyContent
	}
	in := *input
	content := Preprocess(in.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if in.Tier == "" {
		in.Tier = models.TierC
	}
	if !in.Tier.Valid() {
		return nil, fmt.Errorf("invalid tier %q", in.Tier)
	}
	if in.ID == "" {
		in.ID = ids.ContentDocumentID(collection, content)
	}
	if in.Title == "" {
		in.Title = titleFromText(in.Content)
	}
	hash := contentHash(&in, content)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	existing, err := idx.storage.GetDocument(ctx, collection, in.ID)
	if err == nil && existing.ContentHash == hash {
		idx.logger.Debug("indexer skipping unchanged document",
			zap.String("collection", collection), zap.String("doc_id", in.ID))
		return &IngestResult{Document: existing, Skipped: true}, nil
	}

	chunks := idx.chunker.Chunk(in.ID, content)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		ch.Collection = collection
		ch.Metadata.Tier = in.Tier
		ch.Metadata.MinLevel = in.MinLevel
		ch.Metadata.Source = in.Source
		ch.Metadata.BookTitle = in.Title
		ch.Metadata.Language = in.Language
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := idx.vectors.EnsureCollection(ctx, collection, idx.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	// Old chunks beyond the new chunk count would otherwise linger.
	if err := idx.vectors.DeleteDocument(ctx, collection, in.ID); err != nil {
		return nil, fmt.Errorf("failed to remove old vectors: %w", err)
	}
	if err := idx.vectors.Upsert(ctx, collection, chunks); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}

	// The document row carries the content hash, so it is written last.
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.DeleteDocument(ctx, collection, in.ID); err != nil {
			return nil, fmt.Errorf("failed to remove old keywords: %w", err)
		}
		if err := idx.keywordIndex.Index(ctx, chunks); err != nil {
			return nil, fmt.Errorf("failed to index keywords: %w", err)
		}
	}

	doc := &models.Document{
		ID:          in.ID,
		Collection:  collection,
		Title:       in.Title,
		Source:      in.Source,
		Tier:        in.Tier,
		MinLevel:    in.MinLevel,
		Language:    in.Language,
		ChunkCount:  len(chunks),
		ContentHash: hash,
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if err := idx.storage.ReplaceChunks(ctx, collection, in.ID, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	idx.logger.Debug("indexer document ingested",
		zap.String("collection", collection),
		zap.String("doc_id", in.ID),
		zap.Int("chunks", len(chunks)))
	return &IngestResult{Document: doc}, nil
}

// IngestFile reads a file and ingests it into src.Collection. The document ID is
// derived from the absolute path so re-ingesting updates the same document. The
// file's extension must be in the configured list when one is set.
func (idx *Indexer) IngestFile(ctx context.Context, src Source, path string) (*IngestResult, error) {
	idx.logger.Debug("indexer ingesting file", zap.String("path", path))
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(idx.config.Extensions) > 0 && !extensionAllowed(ext, idx.config.Extensions) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	title := titleFromText(string(content))
	if title == "" {
		title = titleFromFilename(filepath.Base(absPath))
	}
	return idx.IngestDocument(ctx, src.Collection, &models.DocumentInput{
		ID:       ids.FileDocumentID(absPath),
		Title:    title,
		Source:   absPath,
		Content:  string(content),
		Tier:     src.Tier,
		MinLevel: src.MinLevel,
		Language: src.Language,
	})
}

// IngestDirectory walks dir and ingests each regular file whose extension is
// allowed. Subdirectories are walked unless recursion is disabled in the config.
// Empty files are skipped. Returns the number of files ingested (skipped
// unchanged files included) and the first error encountered, if any.
func (idx *Indexer) IngestDirectory(ctx context.Context, src Source, dir string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	recursive := idx.config.RecursiveOrDefault()
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.Accepts(path) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, ingestErr := idx.IngestFile(ctx, src, path); ingestErr != nil {
			if errors.Is(ingestErr, ErrEmptyContent) {
				return nil
			}
			return fmt.Errorf("%s: %w", path, ingestErr)
		}
		n++
		return nil
	})
	return n, err
}

// Accepts reports whether path has an ingestible extension.
func (idx *Indexer) Accepts(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if len(idx.config.Extensions) == 0 {
		return true
	}
	return extensionAllowed(filepath.Ext(path), idx.config.Extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// DeleteDocument removes a document from every index and from storage. It
// returns storage.ErrNotFound (wrapped) when the document was never ingested.
func (idx *Indexer) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := idx.checkCollection(collection); err != nil {
		return err
	}
	idx.logger.Debug("indexer deleting document", zap.String("collection", collection), zap.String("id", id))

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.DeleteDocument(ctx, collection, id); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if err := idx.vectors.DeleteDocument(ctx, collection, id); err != nil && !errors.Is(err, vector.ErrCollectionNotFound) {
		return fmt.Errorf("failed to delete from vector store: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, collection, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	idx.logger.Debug("indexer document deleted", zap.String("collection", collection), zap.String("id", id))
	return nil
}

// DeleteFile removes the document ingested from path.
func (idx *Indexer) DeleteFile(ctx context.Context, collection, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	return idx.DeleteDocument(ctx, collection, ids.FileDocumentID(absPath))
}

// SyncSources ingests every configured source directory. Sources that fail are
// logged and skipped; the number of files ingested is returned.
func (idx *Indexer) SyncSources(ctx context.Context, sources []config.SourceConfig) int {
	total := 0
	for _, sc := range sources {
		src, err := SourceFromConfig(sc)
		if err != nil {
			idx.logger.Warn("Invalid ingest source", zap.String("directory", sc.Directory), zap.Error(err))
			continue
		}
		n, err := idx.IngestDirectory(ctx, src, sc.Directory)
		total += n
		if err != nil {
			idx.logger.Warn("Ingest source failed",
				zap.String("directory", sc.Directory),
				zap.String("collection", sc.Collection),
				zap.Error(err))
			continue
		}
		idx.logger.Info("Ingested source",
			zap.String("directory", sc.Directory),
			zap.String("collection", sc.Collection),
			zap.Int("files", n))
	}
	return total
}
