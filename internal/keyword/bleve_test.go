package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/zantara/internal/models"
)

func testChunk(collection, id, doc, title, text string) *models.DocumentChunk {
	return &models.DocumentChunk{
		ID:         id,
		Collection: collection,
		Text:       text,
		Metadata: models.ChunkMetadata{
			Tier:       models.TierC,
			DocumentID: doc,
			BookTitle:  title,
		},
	}
}

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_SearchFindsText(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.DocumentChunk{
		testChunk("visa_oracle", "doc1#0", "doc1", "KITAS Guide", "The investor KITAS requires a sponsor company and a PT PMA."),
		testChunk("visa_oracle", "doc1#1", "doc1", "KITAS Guide", "Overstay fines are charged per day."),
	}
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "visa_oracle", "sponsor", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result for \"sponsor\", got %d", len(results))
	}
	if results[0].ID != "doc1#0" {
		t.Errorf("first result ID = %q, want %q", results[0].ID, "doc1#0")
	}

	// Standard analyzer, no stemming: "KITAS" in text matches lowercase query.
	results, err = idx.Search(ctx, "visa_oracle", "kitas", 10, nil)
	if err != nil {
		t.Fatalf("Search kitas: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results for \"kitas\"")
	}
}

func TestBleveIndex_ScopedToCollection(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.DocumentChunk{
		testChunk("tax_knowledge", "a#0", "a", "PPh", "Withholding tax on salaries under PPh 21."),
		testChunk("tax_updates", "b#0", "b", "Update", "New withholding tax rates for 2025."),
	}
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "tax_updates", "withholding", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "b#0" {
		t.Fatalf("expected only b#0 from tax_updates, got %+v", results)
	}

	results, err = idx.Search(ctx, "legal_updates", "withholding", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results in an empty collection, got %d", len(results))
	}
}

func TestBleveIndex_SearchFindsTitle(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, []*models.DocumentChunk{
		testChunk("zantara_books", "book#0", "book", "Nusantara Chronicles", "Some body text."),
	}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "zantara_books", "nusantara", 10, &SearchOptions{TitleBoost: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected a title match for \"nusantara\"")
	}
	if results[0].ID != "book#0" {
		t.Errorf("first result ID = %q, want %q", results[0].ID, "book#0")
	}
}

func TestBleveIndex_TermCoverageRanksFullMatchFirst(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, []*models.DocumentChunk{
		testChunk("legal_architect", "partial#0", "partial", "Company", "company company company company formation"),
		testChunk("legal_architect", "full#0", "full", "PT PMA", "foreign company ownership rules"),
	}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "legal_architect", "foreign company", 10, &SearchOptions{TitleBoost: 1, PhraseBoost: 1.5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "full#0" {
		t.Errorf("chunk matching all terms should rank first, got %q", results[0].ID)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, []*models.DocumentChunk{
		testChunk("visa_oracle", "v#0", "v", "Visa", "Apply for the kitas online"),
	}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "visa_oracle", "kitass", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("exact search should not match a typo, got %d", len(results))
	}

	results, err = idx.Search(ctx, "visa_oracle", "kitass", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		t.Fatalf("Search fuzzy: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("fuzzy search should tolerate one edit, got %d results", len(results))
	}
}

func TestBleveIndex_DeleteDocumentAndCount(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.DocumentChunk{
		testChunk("kbli_eye", "d1#0", "d1", "KBLI", "onlyindoc1 restaurant"),
		testChunk("kbli_eye", "d1#1", "d1", "KBLI", "onlyindoc1 bar"),
		testChunk("kbli_eye", "d2#0", "d2", "KBLI", "villa rental"),
		testChunk("visa_oracle", "d1#0", "d1", "Visa", "onlyindoc1 visa"),
	}
	if err := idx.Index(ctx, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}

	n, err := idx.Count(ctx, "kbli_eye")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count(kbli_eye) = %d, want 3", n)
	}
	total, err := idx.Count(ctx, "")
	if err != nil {
		t.Fatalf("Count all: %v", err)
	}
	if total != 4 {
		t.Errorf("Count(\"\") = %d, want 4", total)
	}

	if err := idx.DeleteDocument(ctx, "kbli_eye", "d1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	results, err := idx.Search(ctx, "kbli_eye", "onlyindoc1", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
	// Same document ID in another collection is untouched.
	results, err = idx.Search(ctx, "visa_oracle", "onlyindoc1", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected visa_oracle chunk to survive, got %d", len(results))
	}
}

func TestBleveIndex_ReopenKeepsChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	ctx := context.Background()

	idx1, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx1.Index(ctx, []*models.DocumentChunk{
		testChunk("tax_knowledge", "t#0", "t", "T", "uniqueword"),
	}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex (open existing): %v", err)
	}
	defer func() { _ = idx2.Close() }()

	results, err := idx2.Search(ctx, "tax_knowledge", "uniqueword", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("reopened index should keep chunks, got %d results", len(results))
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx, err := NewMemoryBleveIndex()
	if err != nil {
		t.Fatalf("NewMemoryBleveIndex: %v", err)
	}
	defer idx.Close()

	results, err := idx.Search(context.Background(), "visa_oracle", "   ", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("blank query should return nothing, got %d", len(results))
	}
	if err := idx.Index(context.Background(), []*models.DocumentChunk{{ID: "x"}}); err == nil {
		t.Error("expected error for chunk without collection")
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "sub", "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}
