// Package retrieval decides whether a query needs retrieved context and builds
// it from the routed collection, its fallbacks, or several close collections.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/zantara/internal/embedding"
	"github.com/hyperjump/zantara/internal/keyword"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/hyperjump/zantara/internal/storage"
	"github.com/hyperjump/zantara/internal/vector"
	"go.uber.org/zap"
)

// Log reasons attached to degraded or empty retrievals.
const (
	ReasonUnavailable    = "unavailable"
	ReasonNoResults      = "no_results"
	ReasonInvalidRequest = "invalid_request"
	ReasonSkipped        = "skipped"
)

// Orchestrator runs retrieval for the chat layer. It holds no lock: every
// collaborator guards its own state, and each call is independent.
type Orchestrator struct {
	router      *routing.Router
	store       vector.Store
	embedder    embedding.Embedder
	cfg         Config
	logger      *zap.Logger
	keywords    keyword.KeywordIndex
	chunks      storage.Storage
	keywordOpts *keyword.SearchOptions
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeywordIndex enables hybrid mode. It requires WithChunkStorage to resolve keyword hits.
func WithKeywordIndex(idx keyword.KeywordIndex) Option {
	return func(o *Orchestrator) { o.keywords = idx }
}

// WithChunkStorage sets the chunk store used to load keyword-only hits.
func WithChunkStorage(s storage.Storage) Option {
	return func(o *Orchestrator) { o.chunks = s }
}

// WithKeywordOptions sets the options passed to every keyword search.
func WithKeywordOptions(opts *keyword.SearchOptions) Option {
	return func(o *Orchestrator) { o.keywordOpts = opts }
}

// New builds an orchestrator. store and embedder may be nil, in which case every
// retrieval degrades to an empty result. The only errors returned are
// *models.ConfigurationError.
func New(router *routing.Router, store vector.Store, embedder embedding.Embedder, cfg Config, opts ...Option) (*Orchestrator, error) {
	if router == nil {
		return nil, models.NewConfigurationError("retrieval.router", "a router is required")
	}
	cfg.ApplyDefaults()
	o := &Orchestrator{
		router:   router,
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if embedder != nil && cfg.VectorSize > 0 && embedder.Dimensions() != cfg.VectorSize {
		return nil, models.NewConfigurationError("embedding.dimensions",
			"embedder produces %d dimensions but collections expect %d", embedder.Dimensions(), cfg.VectorSize)
	}
	if (o.keywords == nil) != (o.chunks == nil) {
		return nil, models.NewConfigurationError("retrieval.hybrid",
			"keyword index and chunk storage must be configured together")
	}
	if store != nil {
		if err := o.checkCollections(); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// checkCollections fails when a routed collection is absent from the store.
// A store that cannot list its collections is not a configuration problem.
func (o *Orchestrator) checkCollections() error {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SearchTimeout)
	defer cancel()
	names, err := o.store.Collections(ctx)
	if err != nil {
		o.logger.Warn("Could not list vector collections, skipping registry check", zap.Error(err))
		return nil
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	var missing []string
	for _, id := range o.router.Table().Collections() {
		if !have[string(id)] {
			missing = append(missing, string(id))
		}
	}
	if len(missing) > 0 {
		return models.NewConfigurationError("routing.collections",
			"collections missing from the vector store: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Router returns the router used for collection selection.
func (o *Orchestrator) Router() *routing.Router { return o.router }

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Hybrid reports whether keyword results are fused with vector results.
func (o *Orchestrator) Hybrid() bool { return o.keywords != nil && o.chunks != nil }

// Available reports whether retrieval can run at all.
func (o *Orchestrator) Available() bool { return o.store != nil && o.embedder != nil }

// Route reports how query would be routed without embedding or searching.
func (o *Orchestrator) Route(query string) *models.RouteReport {
	decision := o.router.Stats(query)
	candidates := routing.Candidates(decision, o.cfg.AmbiguityMargin, o.cfg.MaxCollections)
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = string(c)
	}
	return &models.RouteReport{
		Routing:    decision,
		QueryType:  o.router.ClassifyIntent(query),
		Ambiguous:  routing.Ambiguous(decision, o.cfg.AmbiguityMargin),
		Candidates: names,
	}
}

// Retrieve returns the context bundle for req. It never fails: skipped,
// degraded and empty retrievals all return UsedRAG=false.
func (o *Orchestrator) Retrieve(ctx context.Context, req *models.RetrievalRequest) *models.RetrievalResult {
	start := time.Now()
	result := o.retrieve(ctx, req)
	result.QueryTime = time.Since(start).Milliseconds()
	return result
}

func (o *Orchestrator) retrieve(ctx context.Context, req *models.RetrievalRequest) *models.RetrievalResult {
	r, ok := o.prepare(req)
	if !ok {
		return models.EmptyResult()
	}

	decision := o.router.Stats(r.Query)
	primary, err := o.target(decision, r.Collection)
	if err != nil {
		o.logger.Warn("Retrieval request rejected",
			zap.String("reason", ReasonInvalidRequest), zap.Error(err))
		return emptyWithRouting(decision)
	}
	filter := vector.LevelFilter(r.UserLevel)

	vec, err := o.embed(ctx, r.Query)
	if err != nil {
		o.degraded(err, primary)
		return emptyWithRouting(decision)
	}

	hits, err := o.searchCollection(ctx, primary, r.Query, vec, filter, r.Limit)
	if err != nil {
		o.degraded(err, primary)
		return emptyWithRouting(decision)
	}
	if len(hits) > 0 {
		return o.assemble(hits, decision, []string{string(primary)}, false)
	}

	searched := []string{string(primary)}
	for _, fb := range FallbackChain(o.router.Table(), primary) {
		searched = append(searched, string(fb))
		hits, err = o.searchCollection(ctx, fb, r.Query, vec, filter, r.Limit)
		if err != nil {
			o.degraded(err, fb)
			return emptyWithRouting(decision)
		}
		if len(hits) > 0 {
			o.logger.Debug("Fallback collection answered",
				zap.String("primary", string(primary)), zap.String("collection", string(fb)))
			return o.assemble(hits, decision, []string{string(fb)}, true)
		}
	}

	o.logger.Info("Retrieval found no results",
		zap.String("reason", ReasonNoResults),
		zap.Strings("collections", searched),
		zap.Int("user_level", r.UserLevel))
	return emptyWithRouting(decision)
}

// prepare validates a copy of req and reports whether retrieval should run.
func (o *Orchestrator) prepare(req *models.RetrievalRequest) (models.RetrievalRequest, bool) {
	if req == nil {
		return models.RetrievalRequest{}, false
	}
	r := *req
	if strings.TrimSpace(string(r.QueryType)) == "" {
		r.QueryType = o.router.ClassifyIntent(r.Query)
	}
	if err := r.Validate(); err != nil {
		o.logger.Debug("Retrieval request rejected",
			zap.String("reason", ReasonInvalidRequest), zap.Error(err))
		return r, false
	}
	if r.QueryType.SkipsRetrieval() {
		o.logger.Debug("Skipping retrieval",
			zap.String("reason", ReasonSkipped), zap.String("query_type", string(r.QueryType)))
		return r, false
	}
	if !o.Available() {
		o.logger.Warn("Retrieval degraded",
			zap.String("reason", ReasonUnavailable),
			zap.Bool("store", o.store != nil),
			zap.Bool("embedder", o.embedder != nil))
		return r, false
	}
	return r, true
}

func (o *Orchestrator) target(decision *models.RoutingDecision, forced string) (routing.CollectionID, error) {
	if forced == "" {
		return routing.CollectionID(decision.Selected), nil
	}
	return o.router.Table().ParseCollectionID(forced)
}

func (o *Orchestrator) degraded(err error, collection routing.CollectionID) {
	o.logger.Warn("Retrieval degraded",
		zap.String("reason", ReasonUnavailable),
		zap.String("collection", string(collection)),
		zap.Error(err))
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrRetrievalUnavailable, err)
}

// embed embeds the query within EmbedTimeout.
func (o *Orchestrator) embed(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.EmbedTimeout)
	defer cancel()
	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, unavailable("embed query", err)
	}
	if o.cfg.VectorSize > 0 && len(vec) != o.cfg.VectorSize {
		return nil, unavailable("embed query", &vector.DimensionError{Got: len(vec), Want: o.cfg.VectorSize})
	}
	return vec, nil
}

// searchCollection searches one collection within SearchTimeout and returns at
// most limit hits the requester may see.
func (o *Orchestrator) searchCollection(ctx context.Context, collection routing.CollectionID, query string, vec []float32, filter *vector.Filter, limit int) ([]*models.SearchHit, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SearchTimeout)
	defer cancel()

	k := limit
	if o.Hybrid() && o.cfg.TopKCandidates > k {
		k = o.cfg.TopKCandidates
	}
	hits, err := o.store.Search(ctx, string(collection), vec, filter, k)
	if err != nil {
		return nil, unavailable("search "+string(collection), err)
	}
	if o.Hybrid() {
		hits = o.fuseKeyword(ctx, collection, query, hits)
	}

	visible := make([]*models.SearchHit, 0, len(hits))
	dropped := 0
	for _, h := range hits {
		if h == nil || !filter.Match(h.Metadata) {
			dropped++
			continue
		}
		if h.Collection == "" {
			h.Collection = string(collection)
		}
		visible = append(visible, h)
	}
	if dropped > 0 {
		o.logger.Warn("Dropped chunks outside the requester's tiers",
			zap.String("collection", string(collection)),
			zap.Int("dropped", dropped),
			zap.Int("user_level", filter.Level))
	}
	if len(visible) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

// fuseKeyword merges Bleve hits for the same collection into the vector hits.
// Keyword failures are logged and the vector hits returned unchanged.
func (o *Orchestrator) fuseKeyword(ctx context.Context, collection routing.CollectionID, query string, hits []*models.SearchHit) []*models.SearchHit {
	kw, err := o.keywords.Search(ctx, string(collection), query, o.cfg.TopKCandidates, o.keywordOpts)
	if err != nil {
		o.logger.Warn("Keyword search failed, using vector results only",
			zap.String("collection", string(collection)), zap.Error(err))
		return hits
	}
	if len(kw) == 0 {
		return hits
	}

	byID := make(map[string]*models.SearchHit, len(hits)+len(kw))
	for _, h := range hits {
		if h != nil {
			byID[h.ID] = h
		}
	}
	var missing []string
	for _, r := range kw {
		if _, ok := byID[r.ID]; !ok {
			missing = append(missing, r.ID)
		}
	}
	if len(missing) > 0 {
		chunks, err := o.chunks.GetChunks(ctx, string(collection), missing)
		if err != nil {
			o.logger.Warn("Could not load keyword hits, using vector results only",
				zap.String("collection", string(collection)), zap.Error(err))
			return hits
		}
		for id, c := range chunks {
			byID[id] = &models.SearchHit{ID: id, Collection: c.Collection, Text: c.Text, Metadata: c.Metadata}
		}
	}

	fused := Fuse(NormalizeKeywordScores(kw), SemanticScores(hits), o.cfg.KeywordWeight, o.cfg.SemanticWeight)
	out := make([]*models.SearchHit, 0, len(fused))
	for _, f := range fused {
		h, ok := byID[f.ChunkID]
		if !ok {
			continue
		}
		cp := *h
		cp.Score = f.Score
		out = append(out, &cp)
	}
	return out
}

func (o *Orchestrator) assemble(hits []*models.SearchHit, decision *models.RoutingDecision, collections []string, usedFallback bool) *models.RetrievalResult {
	docs := truncateHits(hits, o.cfg.SnippetChars)
	return &models.RetrievalResult{
		Context:       BuildContext(docs),
		UsedRAG:       true,
		DocumentCount: len(docs),
		Docs:          docs,
		Collections:   collections,
		Routing:       decision,
		UsedFallback:  usedFallback,
	}
}

func emptyWithRouting(decision *models.RoutingDecision) *models.RetrievalResult {
	res := models.EmptyResult()
	res.Routing = decision
	return res
}

// EnsureCollections creates every routed collection in store. Run it before New
// against a fresh store.
func EnsureCollections(ctx context.Context, store vector.Store, table *routing.Table, dimensions int) error {
	for _, id := range table.Collections() {
		if err := store.EnsureCollection(ctx, string(id), dimensions); err != nil {
			return fmt.Errorf("ensure collection %s: %w", id, err)
		}
	}
	return nil
}
