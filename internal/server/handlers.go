package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/zantara/internal/indexer"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/storage"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req models.RetrievalRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("retrieve request",
		zap.String("query", req.Query),
		zap.String("query_type", string(req.QueryType)),
		zap.Int("user_level", req.UserLevel))
	s.respondJSON(w, http.StatusOK, s.orchestrator.Retrieve(r.Context(), &req))
}

type searchRequest struct {
	models.RetrievalRequest
	EnableFallbacks *bool `json:"enable_fallbacks,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	fallbacks := true
	if req.EnableFallbacks != nil {
		fallbacks = *req.EnableFallbacks
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Bool("fallbacks", fallbacks))
	s.respondJSON(w, http.StatusOK, s.orchestrator.SearchWithConflictResolution(r.Context(), &req.RetrievalRequest, fallbacks))
}

type routeRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.respondJSON(w, http.StatusOK, s.orchestrator.Route(req.Query))
}

// CollectionInfo describes one routed collection.
type CollectionInfo struct {
	ID          string   `json:"id"`
	Domain      string   `json:"domain"`
	Description string   `json:"description,omitempty"`
	Fallbacks   []string `json:"fallbacks"`
	Default     bool     `json:"default"`
	Chunks      *int     `json:"chunks,omitempty"`
	Documents   *int64   `json:"documents,omitempty"`
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	table := s.orchestrator.Router().Table()
	out := make([]CollectionInfo, 0, len(table.Collections()))
	for _, id := range table.Collections() {
		info := CollectionInfo{
			ID:          string(id),
			Domain:      table.Domain(id),
			Description: table.Description(id),
			Fallbacks:   []string{},
			Default:     id == table.Default(),
		}
		for _, fb := range table.Fallbacks(id) {
			info.Fallbacks = append(info.Fallbacks, string(fb))
		}
		if s.vectors != nil {
			if n, err := s.vectors.Count(ctx, string(id)); err == nil {
				info.Chunks = &n
			}
		}
		if s.storage != nil {
			if n, err := s.storage.CountDocuments(ctx, string(id)); err == nil {
				info.Documents = &n
			}
		}
		out = append(out, info)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"collections": out})
}

// collection resolves the {collection} URL parameter, responding 404 when unknown.
func (s *Server) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "collection")
	id, err := s.orchestrator.Router().Table().ParseCollectionID(name)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return string(id), true
}

func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}
	var input models.DocumentInput
	if !s.decode(w, r, &input) {
		return
	}
	if input.Tier != "" {
		tier, err := models.ParseTier(string(input.Tier))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		input.Tier = tier
	}
	if input.MinLevel < 0 || input.MinLevel > 3 {
		s.respondError(w, http.StatusBadRequest, "min_level must be between 0 and 3")
		return
	}
	s.logger.Debug("ingest document request",
		zap.String("collection", collection), zap.String("id", input.ID), zap.String("title", input.Title))
	res, err := s.indexer.IngestDocument(r.Context(), collection, &input)
	if errors.Is(err, indexer.ErrEmptyContent) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("collection", collection), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "document storage not enabled")
		return
	}
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	docs, err := s.storage.ListDocuments(r.Context(), collection, offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, http.StatusNotImplemented, "document storage not enabled")
		return
	}
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	collection, ok := s.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("collection", collection), zap.String("id", id))
	if err := s.indexer.DeleteDocument(r.Context(), collection, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status is the response of GET /api/v1/status.
type Status struct {
	Available      bool                `json:"available"`
	Hybrid         bool                `json:"hybrid"`
	Documents      int64               `json:"documents"`
	Chunks         int64               `json:"chunks"`
	Vectors        int                 `json:"vectors"`
	Collections    int                 `json:"collections"`
	DiskUsageBytes *int64              `json:"disk_usage_bytes,omitempty"`
	DiskUsage      []storage.PathUsage `json:"disk_usage,omitempty"`
	Config         map[string]any      `json:"config,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

// Status collects document, chunk and vector counts plus on-disk usage.
func (s *Server) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Available:   s.orchestrator.Available(),
		Hybrid:      s.orchestrator.Hybrid(),
		Collections: len(s.orchestrator.Router().Table().Collections()),
	}
	if s.storage != nil {
		var err error
		if st.Documents, err = s.storage.CountDocuments(ctx, ""); err != nil {
			return nil, fmt.Errorf("failed to count documents: %w", err)
		}
		if st.Chunks, err = s.storage.CountChunks(ctx, ""); err != nil {
			return nil, fmt.Errorf("failed to count chunks: %w", err)
		}
	}
	if s.vectors != nil {
		for _, id := range s.orchestrator.Router().Table().Collections() {
			if n, err := s.vectors.Count(ctx, string(id)); err == nil {
				st.Vectors += n
			}
		}
	}
	if s.config == nil {
		return st, nil
	}

	rc := s.orchestrator.Config()
	st.Config = map[string]any{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"vector_backend":       s.config.Vector.Backend,
		"chunk_size":           s.config.Ingest.ChunkSize,
		"chunk_overlap":        s.config.Ingest.ChunkOverlap,
		"ambiguity_margin":     rc.AmbiguityMargin,
		"max_collections":      rc.MaxCollections,
		"snippet_chars":        rc.SnippetChars,
	}
	usage, total, err := storage.DiskUsage(map[string]string{
		"database":        s.config.Storage.DatabasePath,
		"bleve":           s.config.Storage.BleveIndexPath,
		"vector_snapshot": s.config.Storage.VectorSnapshotPath,
	})
	if err != nil {
		s.logger.Warn("disk usage failed", zap.Error(err))
		return st, nil
	}
	st.DiskUsage = usage
	st.DiskUsageBytes = &total
	return st, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
