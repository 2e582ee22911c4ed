package models

import (
	"fmt"
	"strings"
)

// QueryType is the coarse intent of a query, supplied by an upstream classifier.
type QueryType string

const (
	QueryTypeGreeting  QueryType = "greeting"
	QueryTypeCasual    QueryType = "casual"
	QueryTypeBusiness  QueryType = "business"
	QueryTypeEmergency QueryType = "emergency"
)

// SkipsRetrieval reports whether queries of this type never hit the vector store.
func (q QueryType) SkipsRetrieval() bool {
	return q == QueryTypeGreeting || q == QueryTypeCasual
}

// ParseQueryType parses a query type; unknown or empty values are treated as business.
func ParseQueryType(s string) QueryType {
	switch QueryType(strings.ToLower(strings.TrimSpace(s))) {
	case QueryTypeGreeting:
		return QueryTypeGreeting
	case QueryTypeCasual:
		return QueryTypeCasual
	case QueryTypeEmergency:
		return QueryTypeEmergency
	default:
		return QueryTypeBusiness
	}
}

const (
	DefaultRetrievalLimit = 5
	MaxRetrievalLimit     = 50
)

// RetrievalRequest is a single retrieval call from the chat layer.
type RetrievalRequest struct {
	Query     string    `json:"query"`
	QueryType QueryType `json:"query_type,omitempty"`
	UserLevel int       `json:"user_level"`
	Limit     int       `json:"limit,omitempty"`
	// Collection forces a collection and bypasses routing when set.
	Collection string `json:"collection,omitempty"`
}

// Validate ensures the request has a query and normalizes limit and query type.
func (r *RetrievalRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.Limit <= 0 {
		r.Limit = DefaultRetrievalLimit
	}
	if r.Limit > MaxRetrievalLimit {
		r.Limit = MaxRetrievalLimit
	}
	r.QueryType = ParseQueryType(string(r.QueryType))
	return nil
}
