// Package keyword provides the lexical (BM25) side of hybrid retrieval.
package keyword

import (
	"context"

	"github.com/hyperjump/zantara/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from matches in the title field.
	// Use 1.0 for no boost.
	TitleBoost float64
	// PhraseBoost multiplies the score when query terms appear adjacent in the chunk text.
	PhraseBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance ("kitass" still finds "kitas").
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 2.
	Fuzziness int
}

// KeywordIndex indexes chunk text per collection.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*models.DocumentChunk) error
	// Search returns up to limit chunk IDs of collection, best first.
	Search(ctx context.Context, collection, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DeleteDocument(ctx context.Context, collection, documentID string) error
	// Count returns the number of indexed chunks in collection, or in all collections when collection is empty.
	Count(ctx context.Context, collection string) (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit. ID is the chunk ID within its collection.
type KeywordResult struct {
	ID    string
	Score float64
}
