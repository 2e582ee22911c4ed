// Package vector stores chunk embeddings per collection and answers
// filtered nearest-neighbour queries.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/zantara/internal/access"
	"github.com/hyperjump/zantara/internal/models"
)

// ErrCollectionNotFound is returned when a collection has not been created.
var ErrCollectionNotFound = errors.New("collection not found")

// Store is a collection-partitioned vector store. Implementations guard their
// own state and are safe for concurrent use.
type Store interface {
	// EnsureCollection creates the collection if it does not exist. An existing
	// collection with different dimensions is an error.
	EnsureCollection(ctx context.Context, collection string, dimensions int) error
	// Upsert inserts or replaces chunks by ID. Every chunk must carry an embedding.
	Upsert(ctx context.Context, collection string, chunks []*models.DocumentChunk) error
	// Search returns up to k hits ordered by descending similarity. A nil
	// filter returns every chunk regardless of tier.
	Search(ctx context.Context, collection string, query []float32, filter *Filter, k int) ([]*models.SearchHit, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteDocument(ctx context.Context, collection string, documentID string) error
	Count(ctx context.Context, collection string) (int, error)
	Collections(ctx context.Context) ([]string, error)
	Close() error
}

// Filter restricts search results to chunks a user of Level may see.
type Filter struct {
	Level int
}

// LevelFilter returns the filter for an access level. Out of range levels are clamped.
func LevelFilter(level int) *Filter {
	return &Filter{Level: access.ClampLevel(level)}
}

// Tiers returns the tiers the filter admits.
func (f *Filter) Tiers() []models.Tier {
	return access.AllowedTiers(f.Level)
}

// TierStrings returns Tiers as plain strings for wire formats.
func (f *Filter) TierStrings() []string {
	tiers := f.Tiers()
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

// Match reports whether a chunk with metadata md passes the filter. A nil filter matches everything.
func (f *Filter) Match(md models.ChunkMetadata) bool {
	if f == nil {
		return true
	}
	return access.Visible(f.Level, md)
}

func validateChunks(chunks []*models.DocumentChunk, dimensions int) error {
	for _, c := range chunks {
		if c == nil || c.ID == "" {
			return errors.New("chunk id is required")
		}
		if dimensions > 0 && len(c.Embedding) != dimensions {
			return &DimensionError{Got: len(c.Embedding), Want: dimensions}
		}
	}
	return nil
}
