package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/zantara/internal/config"
	"github.com/hyperjump/zantara/internal/embedding"
	"github.com/hyperjump/zantara/internal/indexer"
	"github.com/hyperjump/zantara/internal/keyword"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/retrieval"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/hyperjump/zantara/internal/storage"
	"github.com/hyperjump/zantara/internal/vector"
)

const testDims = 8

func newTestServer(t *testing.T, withIndexer bool) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	cfg.Embedding.Dimensions = testDims
	config.ApplyDefaults(cfg)

	table, err := routing.NewTable(routing.DefaultSpec())
	if err != nil {
		t.Fatal(err)
	}
	router := routing.NewRouter(table)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	embedder := embedding.NewMockEmbedder(testDims)
	vectors := vector.NewMemoryStore()
	if err := retrieval.EnsureCollections(context.Background(), vectors, table, testDims); err != nil {
		t.Fatal(err)
	}

	rc := retrieval.DefaultConfig()
	rc.VectorSize = testDims
	orch, err := retrieval.New(router, vectors, embedder, rc,
		retrieval.WithKeywordIndex(kw), retrieval.WithChunkStorage(store))
	if err != nil {
		t.Fatal(err)
	}

	var idx *indexer.Indexer
	if withIndexer {
		idx = indexer.NewIndexer(store, embedder, vectors, kw, cfg.Ingest, indexer.WithRoutingTable(table))
	}
	return NewServer(orch, idx, store, vectors, cfg, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v\n%s", err, w.Body.String())
	}
}

func ingestKITAS(t *testing.T, h http.Handler, tier models.Tier) {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/collections/visa_oracle/documents", models.DocumentInput{
		ID:      "kitas-guide",
		Title:   "KITAS Guide",
		Content: "KITAS is the limited stay permit for foreigners working in Indonesia.",
		Tier:    tier,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest status: got %d, body %s", w.Code, w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t, false).Handler()
	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestHandleRetrieve(t *testing.T) {
	h := newTestServer(t, true).Handler()
	ingestKITAS(t, h, models.TierS)

	w := do(t, h, http.MethodPost, "/api/v1/retrieve", models.RetrievalRequest{
		Query: "What is KITAS?", QueryType: models.QueryTypeBusiness, UserLevel: 0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var res models.RetrievalResult
	decodeBody(t, w, &res)
	if !res.UsedRAG || res.DocumentCount != 1 {
		t.Fatalf("got used_rag=%v document_count=%d, want true/1", res.UsedRAG, res.DocumentCount)
	}
	if res.Docs[0].Collection != "visa_oracle" {
		t.Errorf("collection: got %q", res.Docs[0].Collection)
	}
	if !strings.HasPrefix(res.Context, "[1] KITAS Guide:") {
		t.Errorf("context: got %q", res.Context)
	}
	if res.Routing == nil || res.Routing.Selected != "visa_oracle" {
		t.Errorf("routing: got %+v", res.Routing)
	}
}

func TestHandleRetrieve_TierHiddenFromLowLevel(t *testing.T) {
	h := newTestServer(t, true).Handler()
	ingestKITAS(t, h, models.TierA)

	w := do(t, h, http.MethodPost, "/api/v1/retrieve", models.RetrievalRequest{
		Query: "What is KITAS?", QueryType: models.QueryTypeBusiness, UserLevel: 0,
	})
	var res models.RetrievalResult
	decodeBody(t, w, &res)
	if res.UsedRAG || len(res.Docs) != 0 {
		t.Errorf("level 0 must not see tier A: %+v", res)
	}
}

func TestHandleRetrieve_BadRequests(t *testing.T) {
	h := newTestServer(t, false).Handler()
	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed", "{not json"},
		{"empty query", models.RetrievalRequest{Query: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/retrieve", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleRetrieve_Greeting(t *testing.T) {
	h := newTestServer(t, false).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/retrieve", models.RetrievalRequest{Query: "hello", QueryType: models.QueryTypeGreeting})
	var res models.RetrievalResult
	decodeBody(t, w, &res)
	if res.UsedRAG || res.Context != "" {
		t.Errorf("greeting should skip retrieval: %+v", res)
	}
}

func TestHandleSearch(t *testing.T) {
	h := newTestServer(t, true).Handler()
	ingestKITAS(t, h, models.TierS)

	w := do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{
		"query": "What is KITAS?", "query_type": "business", "user_level": 3, "enable_fallbacks": false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var res models.RetrievalResult
	decodeBody(t, w, &res)
	if res.DocumentCount != 1 || res.UsedFallback {
		t.Errorf("got %+v", res)
	}
}

func TestHandleRoute(t *testing.T) {
	h := newTestServer(t, false).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/route", map[string]string{"query": "How do I extend my KITAS?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.RouteReport
	decodeBody(t, w, &out)
	if out.Routing == nil || out.Routing.Selected != "visa_oracle" {
		t.Errorf("routing: got %+v", out.Routing)
	}
	if out.QueryType != models.QueryTypeBusiness {
		t.Errorf("query_type: got %q", out.QueryType)
	}
	if len(out.Candidates) == 0 || out.Candidates[0] != "visa_oracle" {
		t.Errorf("candidates: got %v", out.Candidates)
	}

	w = do(t, h, http.MethodPost, "/api/v1/route", map[string]string{"query": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status: got %d", w.Code)
	}
}

func TestHandleCollections(t *testing.T) {
	h := newTestServer(t, true).Handler()
	ingestKITAS(t, h, models.TierS)

	w := do(t, h, http.MethodGet, "/api/v1/collections", nil)
	var out struct {
		Collections []CollectionInfo `json:"collections"`
	}
	decodeBody(t, w, &out)
	table, _ := routing.NewTable(routing.DefaultSpec())
	if len(out.Collections) != len(table.Collections()) {
		t.Fatalf("got %d collections, want %d", len(out.Collections), len(table.Collections()))
	}
	defaults := 0
	for _, c := range out.Collections {
		if c.Default {
			defaults++
		}
		if c.ID == "visa_oracle" {
			if c.Chunks == nil || *c.Chunks != 1 || c.Documents == nil || *c.Documents != 1 {
				t.Errorf("visa_oracle counts: %+v", c)
			}
		}
	}
	if defaults != 1 {
		t.Errorf("want exactly one default collection, got %d", defaults)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	h := newTestServer(t, true).Handler()
	ingestKITAS(t, h, models.TierS)
	base := "/api/v1/collections/visa_oracle/documents"

	// same content again is skipped
	w := do(t, h, http.MethodPost, base, models.DocumentInput{
		ID:      "kitas-guide",
		Title:   "KITAS Guide",
		Content: "KITAS is the limited stay permit for foreigners working in Indonesia.",
		Tier:    models.TierS,
	})
	if w.Code != http.StatusOK {
		t.Errorf("re-ingest status: got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, base, nil)
	var list struct {
		Documents []*models.Document `json:"documents"`
	}
	decodeBody(t, w, &list)
	if len(list.Documents) != 1 || list.Documents[0].ID != "kitas-guide" {
		t.Fatalf("list: got %+v", list.Documents)
	}

	w = do(t, h, http.MethodGet, base+"/kitas-guide", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}
	var doc models.Document
	decodeBody(t, w, &doc)
	if doc.Title != "KITAS Guide" || doc.Tier != models.TierS {
		t.Errorf("get: got %+v", doc)
	}

	if w = do(t, h, http.MethodDelete, base+"/kitas-guide", nil); w.Code != http.StatusOK {
		t.Errorf("delete status: got %d", w.Code)
	}
	if w = do(t, h, http.MethodDelete, base+"/kitas-guide", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status: got %d", w.Code)
	}
	if w = do(t, h, http.MethodGet, base+"/kitas-guide", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete status: got %d", w.Code)
	}
}

func TestHandleIngestDocument_Errors(t *testing.T) {
	h := newTestServer(t, true).Handler()
	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"unknown collection", "/api/v1/collections/nope/documents", models.DocumentInput{Content: "x"}, http.StatusNotFound},
		{"bad tier", "/api/v1/collections/visa_oracle/documents", map[string]string{"content": "x", "tier": "Z"}, http.StatusBadRequest},
		{"bad level", "/api/v1/collections/visa_oracle/documents", models.DocumentInput{Content: "x", MinLevel: 7}, http.StatusBadRequest},
		{"empty content", "/api/v1/collections/visa_oracle/documents", models.DocumentInput{Content: "  \n "}, http.StatusBadRequest},
		{"malformed", "/api/v1/collections/visa_oracle/documents", "[", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestIngestionDisabled(t *testing.T) {
	h := newTestServer(t, false).Handler()
	w := do(t, h, http.MethodPost, "/api/v1/collections/visa_oracle/documents", models.DocumentInput{Content: "x"})
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	h := newTestServer(t, true).Handler()
	ingestKITAS(t, h, models.TierS)

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st Status
	decodeBody(t, w, &st)
	if !st.Available || !st.Hybrid {
		t.Errorf("available=%v hybrid=%v, want both true", st.Available, st.Hybrid)
	}
	if st.Documents != 1 || st.Chunks != 1 || st.Vectors != 1 {
		t.Errorf("counts: documents=%d chunks=%d vectors=%d", st.Documents, st.Chunks, st.Vectors)
	}
	if st.DiskUsageBytes == nil || *st.DiskUsageBytes <= 0 {
		t.Errorf("disk usage should count the database: %v", st.DiskUsageBytes)
	}
	if len(st.DiskUsage) != 3 {
		t.Errorf("disk usage entries: got %d", len(st.DiskUsage))
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/x", 7},
		{"/x?n=3", 3},
		{"/x?n=-1", 7},
		{"/x?n=abc", 7},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if got := queryInt(r, "n", 7); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}
