package retrieval

import (
	"time"

	"github.com/hyperjump/zantara/internal/routing"
)

// Config tunes the orchestrator. Zero values are replaced by ApplyDefaults.
type Config struct {
	// VectorSize is the embedding dimension the collections were built with. 0 skips the check.
	VectorSize int
	// SnippetChars is the hard cap, in runes, on every snippet placed in the context.
	SnippetChars  int
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
	// AmbiguityMargin and MaxCollections drive multi-collection search.
	AmbiguityMargin float64
	MaxCollections  int
	// Hybrid weights and candidate pool, used only when a keyword index is attached.
	KeywordWeight  float64
	SemanticWeight float64
	TopKCandidates int
}

const (
	DefaultSnippetChars   = 500
	DefaultTimeout        = 5 * time.Second
	DefaultMaxCollections = 3
	DefaultTopKCandidates = 50
)

// DefaultConfig returns the defaults used by ApplyDefaults.
func DefaultConfig() Config {
	c := Config{AmbiguityMargin: routing.DefaultAmbiguityMargin}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero or out-of-range values. A zero AmbiguityMargin is kept
// (only exact ties are ambiguous); a negative one falls back to the default.
func (c *Config) ApplyDefaults() {
	if c.SnippetChars <= 0 {
		c.SnippetChars = DefaultSnippetChars
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultTimeout
	}
	if c.AmbiguityMargin < 0 {
		c.AmbiguityMargin = routing.DefaultAmbiguityMargin
	}
	if c.MaxCollections <= 0 {
		c.MaxCollections = DefaultMaxCollections
	}
	if c.KeywordWeight <= 0 && c.SemanticWeight <= 0 {
		c.KeywordWeight = 0.3
		c.SemanticWeight = 0.7
	}
	if c.TopKCandidates <= 0 {
		c.TopKCandidates = DefaultTopKCandidates
	}
}
