package routing

import (
	"testing"

	"github.com/hyperjump/zantara/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultRouter(t testing.TB) *Router {
	t.Helper()
	table, err := NewTable(DefaultSpec())
	require.NoError(t, err)
	return NewRouter(table)
}

func TestRouter_Route_Scenarios(t *testing.T) {
	r := newDefaultRouter(t)

	tests := []struct {
		query string
		want  CollectionID
	}{
		{"What are the latest tax updates for 2025?", CollectionTaxUpdates},
		{"How to calculate PPh 21?", CollectionTaxKnowledge},
		{"Villas for sale in Canggu", CollectionPropertyListings},
		{"Tell me about Bali", CollectionAgents},
		{"What is KITAS?", CollectionVisa},
		{"Which KBLI code do I need for a restaurant?", CollectionKBLI},
		{"Recent changes to the labor law", CollectionLegalUpdates},
		{"Can foreigners own freehold land?", CollectionPropertyKnowledge},
		{"How much does the company setup package cost?", CollectionPricing},
		{"Who is the CEO of the team?", CollectionTeam},
		{"Recommend a philosophy book", CollectionBooks},
		{"", CollectionAgents},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.query))
		})
	}
}

func TestRouter_Stats(t *testing.T) {
	r := newDefaultRouter(t)

	d := r.Stats("How to calculate PPh 21?")
	assert.Equal(t, string(CollectionTaxKnowledge), d.Selected)
	assert.Equal(t, 4.0, d.DomainScores[string(CollectionTaxKnowledge)])
	assert.Equal(t, 2.0, d.ModifierScores[string(CollectionTaxKnowledge)])
	assert.Equal(t, 4.0, d.DomainScores[string(CollectionTaxUpdates)])
	assert.Equal(t, 0.0, d.ModifierScores[string(CollectionTaxUpdates)])
	assert.Contains(t, d.MatchedKeywords[string(CollectionTaxKnowledge)], "pph 21")
	assert.Equal(t, 4, d.TotalMatches) // pph, pph 21, how to, calculate

	require.Len(t, d.Ranked, 2)
	assert.Equal(t, string(CollectionTaxKnowledge), d.Ranked[0].Collection)
	assert.Equal(t, 6.0, d.Ranked[0].Total)
	assert.Equal(t, string(CollectionTaxUpdates), d.Ranked[1].Collection)
}

func TestRouter_Stats_NoMatches(t *testing.T) {
	r := newDefaultRouter(t)

	d := r.Stats("Tell me about Bali")
	assert.Equal(t, string(CollectionAgents), d.Selected)
	assert.Empty(t, d.Ranked)
	assert.Zero(t, d.TotalMatches)
	assert.Len(t, d.DomainScores, len(r.Table().Collections()))
}

func TestRouter_ModifiersNeedDomain(t *testing.T) {
	r := newDefaultRouter(t)

	// "latest" and "2025" are modifiers of tax_updates and legal_updates but
	// neither domain is mentioned.
	d := r.Stats("latest news 2025")
	assert.Zero(t, d.ModifierScores[string(CollectionTaxUpdates)])
	assert.Zero(t, d.ModifierScores[string(CollectionLegalUpdates)])
	assert.Equal(t, string(CollectionAgents), d.Selected)
}

func TestRouter_TieBreak(t *testing.T) {
	spec := Spec{
		DefaultCollection: "general",
		Domains:           []Domain{{Name: "d", Keywords: kw("shared")}},
		Collections: []Collection{
			{ID: "first", Domain: "d"},
			{ID: "second", Domain: "d"},
			{ID: "general", Keywords: kw("shared")},
		},
	}
	table, err := NewTable(spec)
	require.NoError(t, err)
	r := NewRouter(table)

	// All three tie on "shared": the default wins.
	assert.Equal(t, CollectionID("general"), r.Route("shared"))

	spec.Collections[2].Keywords = kw("other")
	table, err = NewTable(spec)
	require.NoError(t, err)
	r = NewRouter(table)

	// Default not tied: earliest in registry order wins.
	assert.Equal(t, CollectionID("first"), r.Route("shared"))
}

func TestRouter_Deterministic(t *testing.T) {
	r := newDefaultRouter(t)
	queries := []string{
		"What are the latest tax updates for 2025?",
		"tax on property sale",
		"visa and company setup",
		"hello",
	}
	for _, q := range queries {
		first := r.Stats(q)
		for i := 0; i < 20; i++ {
			again := r.Stats(q)
			assert.Equal(t, first.Selected, again.Selected, q)
			assert.Equal(t, first.Ranked, again.Ranked, q)
		}
	}
}

func TestRouter_Rank_Sorted(t *testing.T) {
	r := newDefaultRouter(t)

	ranked := r.Rank("tax on property sale")
	require.NotEmpty(t, ranked)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Total, ranked[i].Total)
	}
	assert.Equal(t, string(CollectionPropertyListings), ranked[0].Collection)
}

func TestAmbiguous(t *testing.T) {
	mk := func(totals ...float64) *models.RoutingDecision {
		d := &models.RoutingDecision{}
		for i, tot := range totals {
			d.Ranked = append(d.Ranked, models.CollectionScore{Collection: string(rune('a' + i)), Total: tot})
		}
		if len(d.Ranked) > 0 {
			d.Selected = d.Ranked[0].Collection
		}
		return d
	}

	tests := []struct {
		name     string
		decision *models.RoutingDecision
		margin   float64
		want     bool
	}{
		{"nil", nil, 1, false},
		{"single", mk(4), 1, false},
		{"within margin", mk(4, 3), 1, true},
		{"equal", mk(2, 2), 1, true},
		{"outside margin", mk(6, 4), 1, false},
		{"zero margin tie", mk(2, 2), 0, true},
		{"zero margin gap", mk(3, 2), 0, false},
		{"negative margin uses default", mk(4, 3), -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ambiguous(tt.decision, tt.margin))
		})
	}
}

func TestCandidates(t *testing.T) {
	r := newDefaultRouter(t)

	// Clear winner: only one collection.
	d := r.Stats("Villas for sale in Canggu")
	assert.Equal(t, []CollectionID{CollectionPropertyListings}, Candidates(d, 1, 3))

	// tax 1 vs property 2 (+sale): within margin, both searched.
	d = r.Stats("tax on property sale")
	got := Candidates(d, 1, 3)
	assert.Equal(t, CollectionPropertyListings, got[0])
	assert.Contains(t, got, CollectionTaxKnowledge)
	assert.LessOrEqual(t, len(got), 3)

	// Breadth is capped.
	assert.Len(t, Candidates(d, 1, 1), 1)

	// No match: default only.
	d = r.Stats("Tell me about Bali")
	assert.Equal(t, []CollectionID{CollectionAgents}, Candidates(d, 1, 3))
}

func TestCandidates_distantThirdExcluded(t *testing.T) {
	d := &models.RoutingDecision{
		Selected: "a",
		Ranked: []models.CollectionScore{
			{Collection: "a", Total: 6},
			{Collection: "b", Total: 5},
			{Collection: "c", Total: 1},
		},
	}
	assert.Equal(t, []CollectionID{"a", "b"}, Candidates(d, 1, 3))

	d.Ranked[2].Total = 5
	assert.Equal(t, []CollectionID{"a", "b", "c"}, Candidates(d, 1, 3))
}

func BenchmarkRouter_Stats(b *testing.B) {
	r := newDefaultRouter(b)
	queries := []string{
		"What are the latest tax updates for 2025?",
		"How to calculate PPh 21?",
		"Villas for sale in Canggu",
		"Tell me about Bali",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Stats(queries[i%len(queries)])
	}
}
