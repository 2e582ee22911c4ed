package retrieval

import (
	"testing"

	"github.com/hyperjump/zantara/internal/keyword"
	"github.com/hyperjump/zantara/internal/models"
)

func TestNormalizeKeywordScores(t *testing.T) {
	results := []*keyword.KeywordResult{
		{ID: "a", Score: 2},
		{ID: "b", Score: 4},
		{ID: "c", Score: 1},
	}
	m := NormalizeKeywordScores(results)
	if m["b"] != 1.0 {
		t.Errorf("max score should be 1.0, got %f", m["b"])
	}
	if m["a"] != 0.5 {
		t.Errorf("a should be 0.5, got %f", m["a"])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
	if zero := NormalizeKeywordScores([]*keyword.KeywordResult{{ID: "z", Score: 0}}); zero["z"] != 0 {
		t.Errorf("zero max should normalize to 0, got %f", zero["z"])
	}
}

func TestSemanticScores(t *testing.T) {
	m := SemanticScores([]*models.SearchHit{
		{ID: "c1", Score: 0.9},
		{ID: "c2", Score: -0.3},
	})
	if m["c1"] != 0.9 {
		t.Errorf("c1 should keep its score, got %f", m["c1"])
	}
	if m["c2"] != 0 {
		t.Errorf("negative scores should clamp to 0, got %f", m["c2"])
	}
}

func TestFuse(t *testing.T) {
	kw := map[string]float64{"d1": 1.0, "d2": 0.5}
	sem := map[string]float64{"d1": 0.5, "d2": 1.0, "d3": 0.2}
	results := Fuse(kw, sem, 0.3, 0.7)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ChunkID != "d2" {
		t.Errorf("d2 should rank first, got %s", results[0].ChunkID)
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Error("results should be sorted by score descending")
		}
	}
	last := results[2]
	if last.ChunkID != "d3" || last.KeywordScore != 0 {
		t.Errorf("semantic-only result should carry no keyword score: %+v", last)
	}
}

func TestFuse_TiesByChunkID(t *testing.T) {
	results := Fuse(map[string]float64{"b": 1, "a": 1}, nil, 1, 1)
	if results[0].ChunkID != "a" || results[1].ChunkID != "b" {
		t.Errorf("ties should sort by chunk ID, got %s, %s", results[0].ChunkID, results[1].ChunkID)
	}
}
