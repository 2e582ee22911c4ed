package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/zantara/internal/ids"
	"github.com/hyperjump/zantara/internal/models"
	"go.uber.org/zap"
)

// Payload keys written to every Qdrant point.
const (
	payloadChunkID     = "chunk_id"
	payloadText        = "text"
	payloadTier        = "tier"
	payloadMinLevel    = "min_level"
	payloadDocumentID  = "document_id"
	payloadSource      = "source"
	payloadBookTitle   = "book_title"
	payloadChunkIndex  = "chunk_index"
	payloadTotalChunks = "total_chunks"
	payloadLanguage    = "language"
	payloadCreatedAt   = "created_at"
)

// QdrantStore talks to a Qdrant server over its REST API. Chunk IDs are mapped
// to name-based UUIDs; the original ID travels in the payload.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

var _ Store = (*QdrantStore)(nil)

// QdrantOption configures a QdrantStore.
type QdrantOption func(*QdrantStore)

// WithQdrantLogger sets the logger.
func WithQdrantLogger(l *zap.Logger) QdrantOption {
	return func(q *QdrantStore) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) QdrantOption {
	return func(q *QdrantStore) {
		if c != nil {
			q.client = c
		}
	}
}

// NewQdrantStore creates a client for the Qdrant server at baseURL.
func NewQdrantStore(baseURL, apiKey string, timeout time.Duration, opts ...QdrantOption) (*QdrantStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid qdrant url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &QdrantStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Type returns the backend identifier.
func (q *QdrantStore) Type() string {
	return string(BackendQdrant)
}

// qdrantError is a non-2xx response.
type qdrantError struct {
	Status int
	Body   string
}

func (e *qdrantError) Error() string {
	return fmt.Sprintf("qdrant returned %d: %s", e.Status, e.Body)
}

func (q *QdrantStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &qdrantError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var qe *qdrantError
	return errors.As(err, &qe) && qe.Status == http.StatusNotFound
}

func collectionPath(collection string, suffix string) string {
	return "/collections/" + url.PathEscape(collection) + suffix
}

// EnsureCollection creates the collection with cosine distance and keyword/integer
// payload indexes for the access filter.
func (q *QdrantStore) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodGet, collectionPath(collection, ""), nil, &info)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size != 0 && size != dimensions {
			return fmt.Errorf("collection %s: %w", collection, &DimensionError{Got: dimensions, Want: size})
		}
		return nil
	case !isNotFound(err):
		return err
	}

	create := map[string]interface{}{
		"vectors": map[string]interface{}{"size": dimensions, "distance": "Cosine"},
	}
	if err := q.do(ctx, http.MethodPut, collectionPath(collection, ""), create, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	for field, schema := range map[string]string{
		payloadTier:       "keyword",
		payloadMinLevel:   "integer",
		payloadDocumentID: "keyword",
	} {
		idx := map[string]string{"field_name": field, "field_schema": schema}
		if err := q.do(ctx, http.MethodPut, collectionPath(collection, "/index?wait=true"), idx, nil); err != nil {
			q.logger.Warn("Failed to create payload index",
				zap.String("collection", collection), zap.String("field", field), zap.Error(err))
		}
	}
	q.logger.Info("Created qdrant collection", zap.String("collection", collection), zap.Int("dimensions", dimensions))
	return nil
}

type qdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

func toPayload(c *models.DocumentChunk) map[string]interface{} {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return map[string]interface{}{
		payloadChunkID:     c.ID,
		payloadText:        c.Text,
		payloadTier:        string(c.Metadata.Tier),
		payloadMinLevel:    c.Metadata.MinLevel,
		payloadDocumentID:  c.Metadata.DocumentID,
		payloadSource:      c.Metadata.Source,
		payloadBookTitle:   c.Metadata.BookTitle,
		payloadChunkIndex:  c.Metadata.ChunkIndex,
		payloadTotalChunks: c.Metadata.TotalChunks,
		payloadLanguage:    c.Metadata.Language,
		payloadCreatedAt:   created.Format(time.RFC3339Nano),
	}
}

// qdrantPayload is the decoded form of toPayload.
type qdrantPayload struct {
	ChunkID     string `json:"chunk_id"`
	Text        string `json:"text"`
	Tier        string `json:"tier"`
	MinLevel    int    `json:"min_level"`
	DocumentID  string `json:"document_id"`
	Source      string `json:"source"`
	BookTitle   string `json:"book_title"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Language    string `json:"language"`
}

func (p qdrantPayload) metadata() models.ChunkMetadata {
	return models.ChunkMetadata{
		Tier:        models.Tier(p.Tier),
		MinLevel:    p.MinLevel,
		DocumentID:  p.DocumentID,
		Source:      p.Source,
		BookTitle:   p.BookTitle,
		ChunkIndex:  p.ChunkIndex,
		TotalChunks: p.TotalChunks,
		Language:    p.Language,
	}
}

// Upsert writes chunks as points and waits for the write to be applied.
func (q *QdrantStore) Upsert(ctx context.Context, collection string, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, 0); err != nil {
		return err
	}
	points := make([]qdrantPoint, len(chunks))
	for i, c := range chunks {
		points[i] = qdrantPoint{
			ID:      ids.PointID(collection, c.ID),
			Vector:  c.Embedding,
			Payload: toPayload(c),
		}
	}
	err := q.do(ctx, http.MethodPut, collectionPath(collection, "/points?wait=true"), map[string]interface{}{"points": points}, nil)
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	return err
}

func filterBody(f *Filter) map[string]interface{} {
	if f == nil {
		return nil
	}
	return map[string]interface{}{
		"must": []interface{}{
			map[string]interface{}{"key": payloadTier, "match": map[string]interface{}{"any": f.TierStrings()}},
			map[string]interface{}{"key": payloadMinLevel, "range": map[string]interface{}{"lte": f.Level}},
		},
	}
}

// Search runs a filtered similarity search.
func (q *QdrantStore) Search(ctx context.Context, collection string, query []float32, filter *Filter, k int) ([]*models.SearchHit, error) {
	if k <= 0 {
		return []*models.SearchHit{}, nil
	}
	body := map[string]interface{}{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}
	if fb := filterBody(filter); fb != nil {
		body["filter"] = fb
	}

	var resp struct {
		Result []struct {
			ID      interface{}   `json:"id"`
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, collectionPath(collection, "/points/search"), body, &resp)
	if isNotFound(err) {
		return nil, fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	if err != nil {
		return nil, err
	}

	hits := make([]*models.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := r.Payload.ChunkID
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		hits = append(hits, &models.SearchHit{
			ID:         id,
			Collection: collection,
			Text:       r.Payload.Text,
			Metadata:   r.Payload.metadata(),
			Score:      r.Score,
		})
	}
	return hits, nil
}

// Delete removes points by chunk ID.
func (q *QdrantStore) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	points := make([]string, len(chunkIDs))
	for i, id := range chunkIDs {
		points[i] = ids.PointID(collection, id)
	}
	err := q.do(ctx, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), map[string]interface{}{"points": points}, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// DeleteDocument removes every point whose payload document_id matches.
func (q *QdrantStore) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{"key": payloadDocumentID, "match": map[string]interface{}{"value": documentID}},
			},
		},
	}
	err := q.do(ctx, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), body, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// Count returns the exact number of points in collection.
func (q *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, collectionPath(collection, "/points/count"), map[string]bool{"exact": true}, &resp)
	if isNotFound(err) {
		return 0, fmt.Errorf("%s: %w", collection, ErrCollectionNotFound)
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Collections lists collection names, sorted.
func (q *QdrantStore) Collections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases idle connections.
func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}
