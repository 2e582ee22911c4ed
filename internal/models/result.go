package models

// SearchHit is a single vector-store match.
type SearchHit struct {
	ID         string        `json:"id"`
	Collection string        `json:"collection"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"metadata"`
	Score      float64       `json:"score"`
}

// RoutingDecision is the transient outcome of routing one query. It is never persisted.
type RoutingDecision struct {
	Query           string              `json:"query"`
	Selected        string              `json:"selected_collection"`
	DomainScores    map[string]float64  `json:"domain_scores"`
	ModifierScores  map[string]float64  `json:"modifier_scores"`
	MatchedKeywords map[string][]string `json:"matched_keywords"`
	TotalMatches    int                 `json:"total_matches"`
	// Ranked lists collections with a positive total score, best first.
	Ranked []CollectionScore `json:"ranked,omitempty"`
}

// CollectionScore is one row of a routing ranking.
type CollectionScore struct {
	Collection string  `json:"collection"`
	Domain     float64 `json:"domain"`
	Modifier   float64 `json:"modifier"`
	Total      float64 `json:"total"`
}

// RetrievalResult is handed to the prompt-construction step and consumed immediately.
// Context is empty when UsedRAG is false.
type RetrievalResult struct {
	Context       string           `json:"context,omitempty"`
	UsedRAG       bool             `json:"used_rag"`
	DocumentCount int              `json:"document_count"`
	Docs          []*SearchHit     `json:"docs"`
	Collections   []string         `json:"collections,omitempty"`
	Routing       *RoutingDecision `json:"routing,omitempty"`
	UsedFallback  bool             `json:"used_fallback,omitempty"`
	QueryTime     int64            `json:"query_time_ms"`
}

// EmptyResult returns a result with no context and UsedRAG=false.
func EmptyResult() *RetrievalResult {
	return &RetrievalResult{Docs: []*SearchHit{}}
}

// RouteReport is the outcome of routing one query without searching.
type RouteReport struct {
	Routing    *RoutingDecision `json:"routing"`
	QueryType  QueryType        `json:"query_type"`
	Ambiguous  bool             `json:"ambiguous"`
	Candidates []string         `json:"candidates"`
}
