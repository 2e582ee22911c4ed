package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/zantara/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "sub", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func chunksFor(collection, docID string, texts ...string) []*models.DocumentChunk {
	out := make([]*models.DocumentChunk, len(texts))
	for i, text := range texts {
		out[i] = &models.DocumentChunk{
			ID:         docID + "#" + string(rune('0'+i)),
			Collection: collection,
			Text:       text,
			Metadata: models.ChunkMetadata{
				Tier:        models.TierB,
				MinLevel:    1,
				DocumentID:  docID,
				BookTitle:   "Guide",
				ChunkIndex:  i,
				TotalChunks: len(texts),
			},
		}
	}
	return out
}

func TestSQLiteStorage_Documents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "doc1", Collection: "visa_oracle", Title: "KITAS", Tier: models.TierA, MinLevel: 1, ChunkCount: 2}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}

	got, err := store.GetDocument(ctx, "visa_oracle", "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "KITAS" || got.Tier != models.TierA || got.MinLevel != 1 || got.ChunkCount != 2 {
		t.Errorf("got %+v", got)
	}

	doc.Title = "Updated"
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "visa_oracle", "doc1")
	if got.Title != "Updated" {
		t.Errorf("expected Updated, got %s", got.Title)
	}

	if _, err := store.GetDocument(ctx, "tax_knowledge", "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("same id in another collection should be not found, got %v", err)
	}

	list, err := store.ListDocuments(ctx, "visa_oracle", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if err := store.DeleteDocument(ctx, "visa_oracle", "doc1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "visa_oracle", "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteDocument(ctx, "visa_oracle", "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting twice should report ErrNotFound, got %v", err)
	}
	if err := store.UpsertDocument(ctx, &models.Document{ID: "x"}); err == nil {
		t.Error("expected error for document without collection")
	}
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{ID: "d1", Collection: "tax_knowledge", Tier: models.TierB, ChunkCount: 3}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	chunks := chunksFor("tax_knowledge", "d1", "first", "second", "third")
	if err := store.ReplaceChunks(ctx, "tax_knowledge", "d1", chunks); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetChunk(ctx, "tax_knowledge", "d1#1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "second" || got.Metadata.Tier != models.TierB || got.Metadata.MinLevel != 1 || got.Metadata.ChunkIndex != 1 {
		t.Errorf("got %+v", got)
	}
	if got.Collection != "tax_knowledge" {
		t.Errorf("collection = %q", got.Collection)
	}

	byID, err := store.GetChunks(ctx, "tax_knowledge", []string{"d1#0", "d1#2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 2 || byID["d1#0"].Text != "first" || byID["d1#2"].Text != "third" {
		t.Errorf("GetChunks = %+v", byID)
	}

	list, err := store.GetChunksByDocumentID(ctx, "tax_knowledge", "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 || list[0].Text != "first" || list[2].Text != "third" {
		t.Errorf("GetChunksByDocumentID order wrong: %+v", list)
	}

	// Re-ingestion replaces chunks.
	if err := store.ReplaceChunks(ctx, "tax_knowledge", "d1", chunksFor("tax_knowledge", "d1", "only")); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountChunks(ctx, "tax_knowledge")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountChunks after replace = %d, want 1", n)
	}

	if err := store.DeleteDocument(ctx, "tax_knowledge", "d1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetChunk(ctx, "tax_knowledge", "d1#0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("chunks should cascade on document delete, got %v", err)
	}
}

func TestSQLiteStorage_ReplaceChunksRejectsForeignChunk(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.UpsertDocument(ctx, &models.Document{ID: "d1", Collection: "visa_oracle", Tier: models.TierC}); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceChunks(ctx, "visa_oracle", "d1", chunksFor("kbli_eye", "d1", "x")); err == nil {
		t.Error("expected error for chunk from another collection")
	}
	if err := store.ReplaceChunks(ctx, "visa_oracle", "d1", chunksFor("visa_oracle", "d2", "x")); err == nil {
		t.Error("expected error for chunk from another document")
	}
}

func TestSQLiteStorage_Counts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, d := range []struct{ collection, id string }{
		{"visa_oracle", "a"}, {"visa_oracle", "b"}, {"kbli_eye", "a"},
	} {
		if err := store.UpsertDocument(ctx, &models.Document{ID: d.id, Collection: d.collection, Tier: models.TierC}); err != nil {
			t.Fatal(err)
		}
		if err := store.ReplaceChunks(ctx, d.collection, d.id, chunksFor(d.collection, d.id, "x", "y")); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		collection string
		docs       int64
		chunks     int64
	}{
		{"visa_oracle", 2, 4},
		{"kbli_eye", 1, 2},
		{"tax_updates", 0, 0},
		{"", 3, 6},
	}
	for _, tt := range tests {
		docs, err := store.CountDocuments(ctx, tt.collection)
		if err != nil {
			t.Fatal(err)
		}
		chunks, err := store.CountChunks(ctx, tt.collection)
		if err != nil {
			t.Fatal(err)
		}
		if docs != tt.docs || chunks != tt.chunks {
			t.Errorf("counts(%q) = %d docs, %d chunks; want %d, %d", tt.collection, docs, chunks, tt.docs, tt.chunks)
		}
	}
}
