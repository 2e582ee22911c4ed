package retrieval

import (
	"sort"

	"github.com/hyperjump/zantara/internal/keyword"
	"github.com/hyperjump/zantara/internal/models"
)

// FusedResult holds a chunk ID and its fused keyword/semantic scores.
type FusedResult struct {
	ChunkID       string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes BM25 scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// SemanticScores returns vector scores keyed by chunk ID. Cosine scores are already in [-1,1];
// negatives are clamped to 0 so they never outweigh a keyword match.
func SemanticScores(hits []*models.SearchHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		s := h.Score
		if s < 0 {
			s = 0
		}
		out[h.ID] = s
	}
	return out
}

// Fuse merges keyword and semantic score maps with weights and returns results
// sorted by fused score, ties by chunk ID.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{ChunkID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, ok := scoreMap[id]; ok {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{ChunkID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = keywordWeight*result.KeywordScore + semanticWeight*result.SemanticScore
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results
}
