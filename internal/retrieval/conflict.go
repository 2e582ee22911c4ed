package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/hyperjump/zantara/internal/vector"
	"go.uber.org/zap"
)

// SearchWithConflictResolution searches every close contender when routing is
// ambiguous (up to MaxCollections, concurrently) and merges their hits by score.
// A clear winner is searched alone. When nothing is found and enableFallbacks is
// set, the fallback chains of the searched collections are walked in order.
// Like Retrieve it never fails.
func (o *Orchestrator) SearchWithConflictResolution(ctx context.Context, req *models.RetrievalRequest, enableFallbacks bool) *models.RetrievalResult {
	start := time.Now()
	result := o.searchWithConflictResolution(ctx, req, enableFallbacks)
	result.QueryTime = time.Since(start).Milliseconds()
	return result
}

func (o *Orchestrator) searchWithConflictResolution(ctx context.Context, req *models.RetrievalRequest, enableFallbacks bool) *models.RetrievalResult {
	r, ok := o.prepare(req)
	if !ok {
		return models.EmptyResult()
	}

	decision := o.router.Stats(r.Query)
	var candidates []routing.CollectionID
	if r.Collection != "" {
		id, err := o.router.Table().ParseCollectionID(r.Collection)
		if err != nil {
			o.logger.Warn("Retrieval request rejected",
				zap.String("reason", ReasonInvalidRequest), zap.Error(err))
			return emptyWithRouting(decision)
		}
		candidates = []routing.CollectionID{id}
	} else {
		candidates = routing.Candidates(decision, o.cfg.AmbiguityMargin, o.cfg.MaxCollections)
	}
	filter := vector.LevelFilter(r.UserLevel)

	vec, err := o.embed(ctx, r.Query)
	if err != nil {
		o.degraded(err, candidates[0])
		return emptyWithRouting(decision)
	}

	hits, answered, err := o.searchConcurrently(ctx, candidates, r.Query, vec, filter, r.Limit)
	if err != nil {
		o.degraded(err, candidates[0])
		return emptyWithRouting(decision)
	}
	if len(hits) > 0 {
		return o.assemble(hits, decision, answered, false)
	}
	if !enableFallbacks {
		o.logNoResults(candidates, r.UserLevel)
		return emptyWithRouting(decision)
	}

	searched := append([]routing.CollectionID(nil), candidates...)
	for _, fb := range FallbackChain(o.router.Table(), candidates[0], candidates[1:]...) {
		searched = append(searched, fb)
		hits, err = o.searchCollection(ctx, fb, r.Query, vec, filter, r.Limit)
		if err != nil {
			o.degraded(err, fb)
			return emptyWithRouting(decision)
		}
		if len(hits) > 0 {
			return o.assemble(hits, decision, []string{string(fb)}, true)
		}
	}
	o.logNoResults(searched, r.UserLevel)
	return emptyWithRouting(decision)
}

func (o *Orchestrator) logNoResults(searched []routing.CollectionID, level int) {
	names := make([]string, len(searched))
	for i, id := range searched {
		names[i] = string(id)
	}
	o.logger.Info("Retrieval found no results",
		zap.String("reason", ReasonNoResults),
		zap.Strings("collections", names),
		zap.Int("user_level", level))
}

type collectionHits struct {
	hits []*models.SearchHit
	err  error
}

// searchConcurrently runs one search per collection and merges the results.
// It fails only when every collection failed; answered lists the collections
// that contributed hits, in candidate order.
func (o *Orchestrator) searchConcurrently(ctx context.Context, collections []routing.CollectionID, query string, vec []float32, filter *vector.Filter, limit int) ([]*models.SearchHit, []string, error) {
	results := make([]collectionHits, len(collections))
	var wg sync.WaitGroup
	for i, c := range collections {
		wg.Add(1)
		go func(i int, c routing.CollectionID) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = collectionHits{err: unavailable("search "+string(c), fmt.Errorf("panic: %v", rec))}
				}
			}()
			hits, err := o.searchCollection(ctx, c, query, vec, filter, limit)
			results[i] = collectionHits{hits: hits, err: err}
		}(i, c)
	}
	wg.Wait()

	var errs []error
	perCollection := make([][]*models.SearchHit, len(collections))
	var answered []string
	for i, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			o.logger.Warn("Collection search failed",
				zap.String("reason", ReasonUnavailable),
				zap.String("collection", string(collections[i])),
				zap.Error(res.err))
			continue
		}
		perCollection[i] = res.hits
		if len(res.hits) > 0 {
			answered = append(answered, string(collections[i]))
		}
	}
	if len(errs) == len(collections) {
		return nil, nil, errors.Join(errs...)
	}
	return MergeHits(collections, perCollection, limit), answered, nil
}

// MergeHits flattens per-collection hits (perCollection[i] belongs to
// collections[i]), keeps the best score for each (collection, id) pair, and
// sorts by score descending, then collection order, then id. At most limit
// hits are returned.
func MergeHits(collections []routing.CollectionID, perCollection [][]*models.SearchHit, limit int) []*models.SearchHit {
	type key struct{ collection, id string }
	order := make(map[string]int, len(collections))
	for i, c := range collections {
		if _, ok := order[string(c)]; !ok {
			order[string(c)] = i
		}
	}

	best := make(map[key]*models.SearchHit)
	for i, hits := range perCollection {
		for _, h := range hits {
			if h == nil {
				continue
			}
			collection := h.Collection
			if collection == "" && i < len(collections) {
				collection = string(collections[i])
			}
			k := key{collection, h.ID}
			if prev, ok := best[k]; !ok || h.Score > prev.Score {
				best[k] = h
			}
		}
	}

	merged := make([]*models.SearchHit, 0, len(best))
	for _, h := range best {
		merged = append(merged, h)
	}
	rank := func(c string) int {
		if i, ok := order[c]; ok {
			return i
		}
		return len(order)
	}
	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ra, rb := rank(a.Collection), rank(b.Collection); ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
