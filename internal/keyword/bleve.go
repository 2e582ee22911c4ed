package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/zantara/internal/models"
)

const deletePageSize = 500

// BleveIndex implements KeywordIndex using Bleve. All collections share one index;
// every query is scoped with a term query on the collection field.
type BleveIndex struct {
	index bleve.Index
}

var _ KeywordIndex = (*BleveIndex)(nil)

// chunkDoc is the Bleve document for one chunk.
type chunkDoc struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	Language   string `json:"language"`
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory and re-ingest.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory index (tests, memory-only deployments).
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "kitas" does not collide with stems.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("collection", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("language", keywordFieldMapping)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

func docKey(collection, chunkID string) string {
	return collection + "/" + chunkID
}

func chunkIDFromKey(key string) string {
	_, id, ok := strings.Cut(key, "/")
	if !ok {
		return key
	}
	return id
}

// Index indexes chunks in a single batch. Existing chunks with the same ID are replaced.
func (b *BleveIndex) Index(ctx context.Context, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if c == nil || c.ID == "" || c.Collection == "" {
			return fmt.Errorf("chunk requires id and collection")
		}
		doc := chunkDoc{
			Collection: c.Collection,
			DocumentID: c.Metadata.DocumentID,
			Title:      c.Metadata.Title(),
			Text:       c.Text,
			Language:   c.Metadata.Language,
		}
		if err := batch.Index(docKey(c.Collection, c.ID), doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a match query scoped to collection and returns up to limit results.
// When opts is nil or no boost exceeds 1, a single match over title+text is used.
// Otherwise title and text are queried separately and merged with additive scoring,
// term coverage and a phrase proximity boost.
func (b *BleveIndex) Search(ctx context.Context, collection, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*KeywordResult{}, nil
	}
	titleBoost := 1.0
	phraseBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		if opts.PhraseBoost > 0 {
			phraseBoost = opts.PhraseBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	if titleBoost <= 1.0 && phraseBoost <= 1.0 {
		return b.searchSingle(ctx, collection, query, limit, fuzzyEnabled, fuzziness)
	}
	return b.searchWithBoosts(ctx, collection, query, limit, titleBoost, phraseBoost, fuzzyEnabled, fuzziness)
}

// scoped restricts q to one collection.
func scoped(collection string, q blevequery.Query) blevequery.Query {
	cq := bleve.NewTermQuery(collection)
	cq.SetField("collection")
	return bleve.NewConjunctionQuery(cq, q)
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, size int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	return b.index.SearchInContext(ctx, req)
}

func (b *BleveIndex) searchSingle(ctx context.Context, collection, query string, limit int, fuzzyEnabled bool, fuzziness int) ([]*KeywordResult, error) {
	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness, "")
	} else {
		q = bleve.NewMatchQuery(query)
	}
	results, err := b.run(ctx, scoped(collection, q), limit)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: chunkIDFromKey(hit.ID), Score: hit.Score}
	}
	return out, nil
}

// searchWithBoosts merges scores as (title*titleBoost + text) * coverage^2 * phrase.
func (b *BleveIndex) searchWithBoosts(ctx context.Context, collection, query string, limit int, titleBoost, phraseBoost float64, fuzzyEnabled bool, fuzziness int) ([]*KeywordResult, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	terms := tokenizeQuery(query)
	numTerms := len(terms)

	var titleQuery, textQuery blevequery.Query
	if fuzzyEnabled {
		titleQuery = buildFuzzyQuery(query, fuzziness, "title")
		textQuery = buildFuzzyQuery(query, fuzziness, "text")
	} else {
		tq := bleve.NewMatchQuery(query)
		tq.SetField("title")
		titleQuery = tq
		cq := bleve.NewMatchQuery(query)
		cq.SetField("text")
		textQuery = cq
	}

	titleResults, err := b.run(ctx, scoped(collection, titleQuery), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve title search failed: %w", err)
	}
	textResults, err := b.run(ctx, scoped(collection, textQuery), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve text search failed: %w", err)
	}

	titleScores := make(map[string]float64)
	textScores := make(map[string]float64)
	for _, hit := range titleResults.Hits {
		titleScores[hit.ID] = hit.Score * titleBoost
	}
	for _, hit := range textResults.Hits {
		textScores[hit.ID] = hit.Score
	}

	termCoverage := make(map[string]int)
	if numTerms > 1 {
		termCoverage = b.calculateTermCoverage(ctx, collection, terms, reqSize, fuzzyEnabled, fuzziness)
	}
	phraseMatches := make(map[string]bool)
	if phraseBoost > 1.0 && numTerms > 1 {
		phraseMatches = b.findPhraseMatches(ctx, collection, query, reqSize)
	}

	scores := make(map[string]float64)
	for id, s := range titleScores {
		scores[id] += s
	}
	for id, s := range textScores {
		scores[id] += s
	}
	for id, base := range scores {
		// Partial matches are penalized quadratically: 1 of 2 terms keeps a quarter of the score.
		coverageMultiplier := 1.0
		if numTerms > 1 {
			matched := termCoverage[id]
			if matched == 0 {
				matched = 1
			}
			coverage := float64(matched) / float64(numTerms)
			coverageMultiplier = coverage * coverage
		}
		phraseMultiplier := 1.0
		if phraseMatches[id] {
			phraseMultiplier = phraseBoost
		}
		scores[id] = base * coverageMultiplier * phraseMultiplier
	}

	type scored struct {
		key   string
		score float64
	}
	merged := make([]scored, 0, len(scores))
	for key, score := range scores {
		merged = append(merged, scored{key: key, score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].key < merged[j].key
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	out := make([]*KeywordResult, len(merged))
	for i, s := range merged {
		out[i] = &KeywordResult{ID: chunkIDFromKey(s.key), Score: s.score}
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries for each term in the query.
// If field is empty, searches all fields.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// calculateTermCoverage counts how many query terms each chunk matches.
func (b *BleveIndex) calculateTermCoverage(ctx context.Context, collection string, terms []string, reqSize int, fuzzyEnabled bool, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		var q blevequery.Query
		if fuzzyEnabled {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(fuzziness)
			q = fq
		} else {
			q = bleve.NewMatchQuery(term)
		}
		results, err := b.run(ctx, scoped(collection, q), reqSize)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// findPhraseMatches finds chunks where the query appears as a phrase in text or title.
func (b *BleveIndex) findPhraseMatches(ctx context.Context, collection, query string, reqSize int) map[string]bool {
	matches := make(map[string]bool)
	for _, field := range []string{"text", "title"} {
		pq := bleve.NewMatchPhraseQuery(query)
		pq.SetField(field)
		results, err := b.run(ctx, scoped(collection, pq), reqSize)
		if err != nil {
			return matches
		}
		for _, hit := range results.Hits {
			matches[hit.ID] = true
		}
	}
	return matches
}

// DeleteDocument removes every chunk of documentID from collection.
func (b *BleveIndex) DeleteDocument(ctx context.Context, collection, documentID string) error {
	dq := bleve.NewTermQuery(documentID)
	dq.SetField("document_id")
	q := scoped(collection, dq)
	for {
		results, err := b.run(ctx, q, deletePageSize)
		if err != nil {
			return fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve delete failed: %w", err)
		}
	}
}

// Count returns the number of chunks in collection, or in the whole index when collection is empty.
func (b *BleveIndex) Count(ctx context.Context, collection string) (uint64, error) {
	if collection == "" {
		return b.index.DocCount()
	}
	cq := bleve.NewTermQuery(collection)
	cq.SetField("collection")
	results, err := b.run(ctx, cq, 0)
	if err != nil {
		return 0, fmt.Errorf("Bleve count failed: %w", err)
	}
	return results.Total, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
