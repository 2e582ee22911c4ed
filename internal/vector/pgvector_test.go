package vector

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/hyperjump/zantara/internal/models"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQuery_WithFilter(t *testing.T) {
	q, args := searchQuery("rag_chunks", "tax_updates", []float32{0.1, 0.2}, LevelFilter(1), 5)

	assert.Contains(t, q, `FROM "rag_chunks"`)
	assert.Contains(t, q, "tier = ANY($3) AND min_level <= $4")
	assert.Contains(t, q, "ORDER BY embedding <=> $1")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(q), "LIMIT $5"))

	require.Len(t, args, 5)
	assert.Equal(t, pgvector.NewVector([]float32{0.1, 0.2}), args[0])
	assert.Equal(t, "tax_updates", args[1])
	assert.Equal(t, pq.Array([]string{"S", "A"}), args[2])
	assert.Equal(t, 1, args[3])
	assert.Equal(t, 5, args[4])
}

func TestSearchQuery_NoFilter(t *testing.T) {
	q, args := searchQuery("rag_chunks", "c", []float32{1}, nil, 3)
	assert.NotContains(t, q, "tier")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(q), "LIMIT $3"))
	assert.Len(t, args, 3)
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements("rag_chunks", "rag_chunks_collections")
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, stmts[2], `REFERENCES "rag_chunks_collections"(name)`)
	assert.Contains(t, stmts[2], "PRIMARY KEY (collection, id)")
	assert.Contains(t, upsertSQL("rag_chunks"), "ON CONFLICT (collection, id) DO UPDATE")
}

func TestNewPgVectorStore_InvalidTable(t *testing.T) {
	for _, name := range []string{"", "Robert'); DROP TABLE x;--", "1abc", strings.Repeat("a", 64)} {
		_, err := NewPgVectorStore(context.Background(), "postgres://localhost/none", name, nil)
		assert.Error(t, err, name)
	}
}

// TestPgVectorStore_Integration runs against a live Postgres with the vector
// extension when ZANTARA_TEST_PG_DSN is set.
func TestPgVectorStore_Integration(t *testing.T) {
	dsn := os.Getenv("ZANTARA_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ZANTARA_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPgVectorStore(ctx, dsn, "zantara_test_chunks", nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.EnsureCollection(ctx, "visa_oracle", 3))
	defer s.db.Exec(`DELETE FROM "zantara_test_chunks_collections" WHERE name = 'visa_oracle'`)

	require.NoError(t, s.Upsert(ctx, "visa_oracle", []*models.DocumentChunk{
		chunk("a", "d1", models.TierS, 0, 1, 0, 0),
		chunk("b", "d1", models.TierC, 0, 0.9, 0.1, 0),
	}))

	hits, err := s.Search(ctx, "visa_oracle", []float32{1, 0, 0}, LevelFilter(0), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	require.NoError(t, s.DeleteDocument(ctx, "visa_oracle", "d1"))
	n, err := s.Count(ctx, "visa_oracle")
	require.NoError(t, err)
	assert.Zero(t, n)
}
