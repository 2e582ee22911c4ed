// Package models defines core data structures for chunks, retrieval requests, and results.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the disclosure sensitivity of a chunk. S is the most restricted, C the least.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// AllTiers lists tiers in ascending disclosure order.
var AllTiers = []Tier{TierS, TierA, TierB, TierC}

// Rank returns the position of t in AllTiers, or -1 for an unknown tier.
func (t Tier) Rank() int {
	for i, v := range AllTiers {
		if v == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of S, A, B, C.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// ParseTier parses a tier label case-insensitively.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q (expected S, A, B or C)", s)
	}
	return t, nil
}

// ChunkMetadata is the payload stored alongside every chunk vector.
type ChunkMetadata struct {
	Tier        Tier   `json:"tier" yaml:"tier"`
	MinLevel    int    `json:"min_level" yaml:"min_level"`
	DocumentID  string `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	BookTitle   string `json:"book_title,omitempty" yaml:"book_title,omitempty"`
	ChunkIndex  int    `json:"chunk_index" yaml:"chunk_index"`
	TotalChunks int    `json:"total_chunks" yaml:"total_chunks"`
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Title returns the best human label for the chunk: book title, then source, then document ID.
func (m ChunkMetadata) Title() string {
	switch {
	case m.BookTitle != "":
		return m.BookTitle
	case m.Source != "":
		return m.Source
	case m.DocumentID != "":
		return m.DocumentID
	default:
		return "Untitled"
	}
}

// DocumentChunk is one embedded unit of a collection. Chunks are immutable once ingested;
// re-ingestion upserts by deterministic ID.
type DocumentChunk struct {
	ID         string        `json:"id" db:"id"`
	Collection string        `json:"collection" db:"collection"`
	Text       string        `json:"text" db:"text"`
	Embedding  []float32     `json:"-" db:"-"`
	Metadata   ChunkMetadata `json:"metadata" db:"metadata"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for ingesting a document into a collection.
type DocumentInput struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Source   string `json:"source,omitempty"`
	Content  string `json:"content"`
	Tier     Tier   `json:"tier,omitempty"`
	MinLevel int    `json:"min_level,omitempty"`
	Language string `json:"language,omitempty"`
}

// Document is the ingestion record of one source document within a collection.
type Document struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Title      string `json:"title,omitempty"`
	Source     string `json:"source,omitempty"`
	Tier       Tier   `json:"tier"`
	MinLevel   int    `json:"min_level"`
	Language   string `json:"language,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	// ContentHash is the digest of the ingested text; unchanged content is not re-embedded.
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
