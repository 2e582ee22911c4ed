// Package ids derives deterministic identifiers for documents, chunks and
// vector points, so that re-ingesting the same input overwrites instead of duplicating.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	filePrefix    = "file:"
	contentPrefix = "sha:"
)

// namespace seeds every name-based UUID produced by this package.
var namespace = uuid.MustParse("6f1c2a8e-4b7d-5e90-a3c1-0d2b9e7f4a16")

// FileDocumentID returns a stable document ID for the given absolute path.
// Same path always yields the same ID.
func FileDocumentID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return filePrefix + hex.EncodeToString(hash[:])
}

// ContentDocumentID returns a stable document ID for inline content with no source.
func ContentDocumentID(collection, content string) string {
	hash := sha256.Sum256([]byte(collection + "\x00" + content))
	return contentPrefix + hex.EncodeToString(hash[:16])
}

// IsFileDocumentID reports whether id was produced by FileDocumentID.
func IsFileDocumentID(id string) bool {
	return strings.HasPrefix(id, filePrefix)
}

// ChunkID returns the ID of the index-th chunk of a document.
func ChunkID(documentID string, index int) string {
	return documentID + "#" + strconv.Itoa(index)
}

// DocumentOf returns the document part of a chunk ID, or the ID unchanged.
func DocumentOf(chunkID string) string {
	if i := strings.LastIndexByte(chunkID, '#'); i > 0 {
		if _, err := strconv.Atoi(chunkID[i+1:]); err == nil {
			return chunkID[:i]
		}
	}
	return chunkID
}

// PointID maps a chunk ID to the UUID form some vector stores require.
func PointID(collection, chunkID string) string {
	return uuid.NewSHA1(namespace, []byte(collection+"/"+chunkID)).String()
}
