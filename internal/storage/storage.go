// Package storage persists ingested documents and chunk text per collection.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/zantara/internal/models"
)

// ErrNotFound is returned (wrapped) when a document or chunk does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and chunk persistence operations. Every key is scoped by collection.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, collection, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, collection string, offset, limit int) ([]*models.Document, error)
	// DeleteDocument removes the document and its chunks.
	DeleteDocument(ctx context.Context, collection, id string) error

	// Chunk operations
	// ReplaceChunks atomically swaps all chunks of a document for chunks.
	ReplaceChunks(ctx context.Context, collection, documentID string, chunks []*models.DocumentChunk) error
	GetChunk(ctx context.Context, collection, id string) (*models.DocumentChunk, error)
	// GetChunks returns the chunks found among ids, keyed by chunk ID. Missing IDs are skipped.
	GetChunks(ctx context.Context, collection string, ids []string) (map[string]*models.DocumentChunk, error)
	GetChunksByDocumentID(ctx context.Context, collection, documentID string) ([]*models.DocumentChunk, error)

	// Stats; an empty collection counts everything.
	CountDocuments(ctx context.Context, collection string) (int64, error)
	CountChunks(ctx context.Context, collection string) (int64, error)

	Close() error
}
