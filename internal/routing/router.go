package routing

import (
	"sort"

	"github.com/hyperjump/zantara/internal/models"
	"go.uber.org/zap"
)

// DefaultAmbiguityMargin is the largest gap between the two best totals that
// still counts as a close call.
const DefaultAmbiguityMargin = 1.0

// Router picks a collection for a query by weighted keyword matching.
// It is stateless per call and safe for concurrent use.
type Router struct {
	table    *Table
	analyzer *QueryAnalyzer
	logger   *zap.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger. Decisions are logged at debug level.
func WithLogger(l *zap.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a router over a validated table.
func NewRouter(table *Table, opts ...RouterOption) *Router {
	r := &Router{
		table:    table,
		analyzer: NewQueryAnalyzer(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the routing table.
func (r *Router) Table() *Table { return r.table }

// Route returns the best collection for query. It never fails: a query that
// matches nothing goes to the default collection.
func (r *Router) Route(query string) CollectionID {
	return CollectionID(r.Stats(query).Selected)
}

// Rank returns every collection with a positive total, best first.
func (r *Router) Rank(query string) []models.CollectionScore {
	return r.Stats(query).Ranked
}

// Stats scores every collection and returns the full decision.
func (r *Router) Stats(query string) *models.RoutingDecision {
	tokens := r.analyzer.Tokens(query)

	decision := &models.RoutingDecision{
		Query:           query,
		DomainScores:    make(map[string]float64, len(r.table.order)),
		ModifierScores:  make(map[string]float64, len(r.table.order)),
		MatchedKeywords: make(map[string][]string),
		Ranked:          []models.CollectionScore{},
	}

	distinct := make(map[string]struct{})
	for _, id := range r.table.order {
		e := r.table.entries[id]

		domain, matched := score(tokens, e.keywords)
		var modifier float64
		if domain > 0 {
			var mods []string
			modifier, mods = score(tokens, e.modifiers)
			matched = append(matched, mods...)
		}

		decision.DomainScores[string(id)] = domain
		decision.ModifierScores[string(id)] = modifier
		if len(matched) > 0 {
			decision.MatchedKeywords[string(id)] = matched
			for _, m := range matched {
				distinct[m] = struct{}{}
			}
		}
		if total := domain + modifier; total > 0 {
			decision.Ranked = append(decision.Ranked, models.CollectionScore{
				Collection: string(id),
				Domain:     domain,
				Modifier:   modifier,
				Total:      total,
			})
		}
	}
	decision.TotalMatches = len(distinct)

	sort.SliceStable(decision.Ranked, func(i, j int) bool {
		a, b := decision.Ranked[i], decision.Ranked[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		aDef := CollectionID(a.Collection) == r.table.defaultID
		bDef := CollectionID(b.Collection) == r.table.defaultID
		if aDef != bDef {
			return aDef
		}
		return r.table.position(CollectionID(a.Collection)) < r.table.position(CollectionID(b.Collection))
	})

	decision.Selected = string(r.table.defaultID)
	if len(decision.Ranked) > 0 {
		decision.Selected = decision.Ranked[0].Collection
	}

	r.logger.Debug("Routed query",
		zap.String("collection", decision.Selected),
		zap.Int("matches", decision.TotalMatches),
		zap.Int("candidates", len(decision.Ranked)))

	return decision
}

// score sums the weights of every term found in tokens. Each term counts once.
func score(tokens []string, terms []term) (float64, []string) {
	var total float64
	var matched []string
	for _, t := range terms {
		if containsSequence(tokens, t.tokens) {
			total += t.weight
			matched = append(matched, t.text)
		}
	}
	return total, matched
}

// Ambiguous reports whether the two best candidates of decision are both
// positive and within margin of each other. A negative margin uses
// DefaultAmbiguityMargin.
func Ambiguous(decision *models.RoutingDecision, margin float64) bool {
	if decision == nil || len(decision.Ranked) < 2 {
		return false
	}
	if margin < 0 {
		margin = DefaultAmbiguityMargin
	}
	top, second := decision.Ranked[0].Total, decision.Ranked[1].Total
	return top > 0 && second > 0 && top-second <= margin
}

// Candidates returns up to max collections to search for decision: every
// collection scoring within margin of the winner when the decision is
// ambiguous, otherwise only the winner.
func Candidates(decision *models.RoutingDecision, margin float64, max int) []CollectionID {
	if decision == nil {
		return nil
	}
	if !Ambiguous(decision, margin) || max <= 1 {
		return []CollectionID{CollectionID(decision.Selected)}
	}
	if margin < 0 {
		margin = DefaultAmbiguityMargin
	}
	top := decision.Ranked[0].Total
	out := make([]CollectionID, 0, max)
	for _, cs := range decision.Ranked {
		if len(out) == max || cs.Total <= 0 || top-cs.Total > margin {
			break
		}
		out = append(out, CollectionID(cs.Collection))
	}
	return out
}
