package retrieval

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/hyperjump/zantara/internal/embedding"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ambiguousQuery = "tax on property sale"

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestSearchWithConflictResolution_AmbiguousSearchesContenders(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	store.hits["property_listings"] = []*models.SearchHit{
		hit("property_listings", "villa", 0.70, models.TierS),
		hit("property_listings", "land", 0.20, models.TierS),
	}
	store.hits["tax_knowledge"] = []*models.SearchHit{
		hit("tax_knowledge", "bphtb", 0.90, models.TierS),
	}
	store.hits["tax_updates"] = []*models.SearchHit{
		hit("tax_updates", "pp34", 0.50, models.TierS),
	}
	// Scores 1 but outside the top three.
	store.hits["property_knowledge"] = []*models.SearchHit{hit("property_knowledge", "never", 0.99, models.TierS)}

	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig())
	require.NoError(t, err)

	decision := router.Stats(ambiguousQuery)
	require.True(t, routing.Ambiguous(decision, o.Config().AmbiguityMargin))

	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3, Limit: 3,
	}, true)
	require.True(t, res.UsedRAG)
	assert.Equal(t, []string{"property_listings", "tax_knowledge", "tax_updates"}, sorted(store.Searched()))
	require.Equal(t, 3, res.DocumentCount)
	assert.Equal(t, []string{"bphtb", "villa", "pp34"}, []string{res.Docs[0].ID, res.Docs[1].ID, res.Docs[2].ID})
	assert.Equal(t, []string{"property_listings", "tax_knowledge", "tax_updates"}, res.Collections)
	assert.False(t, res.UsedFallback)
}

func TestSearchWithConflictResolution_ClearWinnerSearchedAlone(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	store.hits["visa_oracle"] = []*models.SearchHit{hit("visa_oracle", "kitas", 0.8, models.TierS)}
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig())
	require.NoError(t, err)

	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: "What is KITAS?", QueryType: models.QueryTypeBusiness, UserLevel: 3,
	}, true)
	require.True(t, res.UsedRAG)
	assert.Equal(t, []string{"visa_oracle"}, store.Searched())
}

func TestSearchWithConflictResolution_MaxCollections(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	cfg := testConfig()
	cfg.MaxCollections = 2
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), cfg)
	require.NoError(t, err)

	o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3,
	}, false)
	assert.Equal(t, []string{"property_listings", "tax_knowledge"}, sorted(store.Searched()))
}

func TestSearchWithConflictResolution_PartialFailure(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	store.errs["property_listings"] = errors.New("timeout")
	store.hits["tax_knowledge"] = []*models.SearchHit{hit("tax_knowledge", "bphtb", 0.9, models.TierS)}
	logger, logs := observedLogger()
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig(), WithLogger(logger))
	require.NoError(t, err)

	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3,
	}, true)
	require.True(t, res.UsedRAG)
	assert.Equal(t, 1, res.DocumentCount)
	assert.Equal(t, []string{"tax_knowledge"}, res.Collections)
	assert.Equal(t, 1, logs.FilterMessage("Collection search failed").Len())
}

func TestSearchWithConflictResolution_SearchTimeout(t *testing.T) {
	router := newRouter(t)
	store := blockingStore{newStubStore(t, router)}
	cfg := testConfig()
	cfg.SearchTimeout = 20 * time.Millisecond
	logger, logs := observedLogger()
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), cfg, WithLogger(logger))
	require.NoError(t, err)

	start := time.Now()
	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3,
	}, true)
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.UsedRAG)
	assert.Len(t, store.Searched(), 3)
	assert.Equal(t, 3, logs.FilterMessage("Collection search failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("Retrieval degraded").FilterField(fieldReason(ReasonUnavailable)).Len())
}

func TestSearchWithConflictResolution_StorePanicDegrades(t *testing.T) {
	router := newRouter(t)
	stub := newStubStore(t, router)
	stub.hits["tax_knowledge"] = []*models.SearchHit{hit("tax_knowledge", "bphtb", 0.9, models.TierS)}
	store := panickingStore{stubStore: stub, panics: map[string]bool{"property_listings": true}}
	logger, logs := observedLogger()
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig(), WithLogger(logger))
	require.NoError(t, err)

	var res *models.RetrievalResult
	require.NotPanics(t, func() {
		res = o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
			Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3,
		}, true)
	})
	require.True(t, res.UsedRAG)
	assert.Equal(t, []string{"tax_knowledge"}, res.Collections)

	entries := logs.FilterMessage("Collection search failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "property_listings", entries[0].ContextMap()["collection"])
	loggedErr, _ := entries[0].ContextMap()["error"].(string)
	assert.Contains(t, loggedErr, "panic: store crashed on property_listings")
}

func TestSearchWithConflictResolution_AllFail(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	for _, c := range []string{"property_listings", "tax_knowledge", "tax_updates"} {
		store.errs[c] = errors.New("down")
	}
	store.hits["bali_zero_agents"] = []*models.SearchHit{hit("bali_zero_agents", "a", 0.9, models.TierS)}
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig())
	require.NoError(t, err)

	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3,
	}, true)
	assert.False(t, res.UsedRAG)
	assert.Len(t, store.Searched(), 3, "fallbacks are not tried once every contender failed")
}

func TestSearchWithConflictResolution_Fallbacks(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	store.hits["bali_zero_agents"] = []*models.SearchHit{hit("bali_zero_agents", "general", 0.3, models.TierS)}
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig())
	require.NoError(t, err)

	req := &models.RetrievalRequest{Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 3}

	res := o.SearchWithConflictResolution(context.Background(), req, false)
	assert.False(t, res.UsedRAG)
	assert.Len(t, store.Searched(), 3)

	res = o.SearchWithConflictResolution(context.Background(), req, true)
	require.True(t, res.UsedRAG)
	assert.True(t, res.UsedFallback)
	assert.Equal(t, []string{"bali_zero_agents"}, res.Collections)
	// listings falls back to property_knowledge first, then the shared agents collection.
	searched := store.Searched()[3:]
	sortedHead := sorted(searched[:3])
	assert.Equal(t, []string{"property_listings", "tax_knowledge", "tax_updates"}, sortedHead)
	assert.Equal(t, []string{"property_knowledge", "bali_zero_agents"}, searched[3:])
}

func TestSearchWithConflictResolution_SkipsSmallTalk(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig())
	require.NoError(t, err)

	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: "Ciao", QueryType: models.QueryTypeGreeting, UserLevel: 2, Limit: 5,
	}, true)
	assert.False(t, res.UsedRAG)
	assert.Empty(t, store.Searched())
}

func TestSearchWithConflictResolution_TierFilter(t *testing.T) {
	router := newRouter(t)
	store := newStubStore(t, router)
	store.hits["property_listings"] = []*models.SearchHit{hit("property_listings", "secret", 0.9, models.TierC)}
	store.hits["tax_knowledge"] = []*models.SearchHit{hit("tax_knowledge", "public", 0.1, models.TierS)}
	o, err := New(router, store, embedding.NewMockEmbedder(testDims), testConfig())
	require.NoError(t, err)

	res := o.SearchWithConflictResolution(context.Background(), &models.RetrievalRequest{
		Query: ambiguousQuery, QueryType: models.QueryTypeBusiness, UserLevel: 0,
	}, false)
	require.True(t, res.UsedRAG)
	require.Equal(t, 1, res.DocumentCount)
	assert.Equal(t, "public", res.Docs[0].ID)
}

func TestMergeHits(t *testing.T) {
	collections := []routing.CollectionID{"tax_knowledge", "tax_updates"}
	perCollection := [][]*models.SearchHit{
		{
			hit("tax_knowledge", "dup", 0.4, models.TierS),
			hit("tax_knowledge", "dup", 0.6, models.TierS),
			hit("tax_knowledge", "z", 0.5, models.TierS),
		},
		{
			hit("tax_updates", "dup", 0.6, models.TierS),
			hit("tax_updates", "a", 0.5, models.TierS),
		},
	}

	merged := MergeHits(collections, perCollection, 0)
	require.Len(t, merged, 4)
	got := make([]string, len(merged))
	for i, h := range merged {
		got[i] = h.Collection + "/" + h.ID
	}
	assert.Equal(t, []string{
		"tax_knowledge/dup", // 0.6, first collection
		"tax_updates/dup",   // 0.6
		"tax_knowledge/z",   // 0.5, first collection
		"tax_updates/a",     // 0.5
	}, got)
	assert.Equal(t, 0.6, merged[0].Score)

	assert.Len(t, MergeHits(collections, perCollection, 2), 2)
	assert.Empty(t, MergeHits(nil, nil, 5))
}

func TestRoute(t *testing.T) {
	router := newRouter(t)
	o, err := New(router, nil, nil, testConfig())
	require.NoError(t, err)

	report := o.Route(ambiguousQuery)
	require.True(t, report.Ambiguous)
	assert.Equal(t, models.QueryTypeBusiness, report.QueryType)
	assert.Len(t, report.Candidates, 3)
	assert.Equal(t, report.Routing.Selected, report.Candidates[0])

	report = o.Route("hello")
	assert.False(t, report.Ambiguous)
	assert.Equal(t, models.QueryTypeGreeting, report.QueryType)
	assert.Equal(t, []string{report.Routing.Selected}, report.Candidates)
}
