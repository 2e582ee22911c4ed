// Package indexer ingests documents into a collection: it chunks the text,
// embeds every chunk and writes it to the vector store, the chunk database
// and the keyword index.
package indexer

import (
	"strings"

	"github.com/hyperjump/zantara/internal/ids"
	"github.com/hyperjump/zantara/internal/models"
)

// Chunker splits text into overlapping word-based chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 200
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into DocumentChunks with overlapping windows. Chunk IDs are
// derived from docID and the chunk position, so re-chunking the same text yields
// the same IDs. ChunkIndex and TotalChunks are set; the rest of the metadata is
// left to the caller.
func (c *Chunker) Chunk(docID, text string) []*models.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]*models.DocumentChunk, 0, len(words)/(c.chunkSize-c.chunkOverlap)+1)
	step := c.chunkSize - c.chunkOverlap
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		index := len(chunks)
		chunks = append(chunks, &models.DocumentChunk{
			ID:   ids.ChunkID(docID, index),
			Text: strings.Join(words[i:end], " "),
			Metadata: models.ChunkMetadata{
				DocumentID: docID,
				ChunkIndex: index,
			},
		})
		if end >= len(words) {
			break
		}
	}
	for _, ch := range chunks {
		ch.Metadata.TotalChunks = len(chunks)
	}
	return chunks
}
