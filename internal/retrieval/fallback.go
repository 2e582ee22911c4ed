package retrieval

import "github.com/hyperjump/zantara/internal/routing"

// FallbackChain expands the fallback lists of primary breadth first: direct
// fallbacks in configured order, then their fallbacks. primary and every ID in
// skip are excluded, and no collection appears twice, so the chain is finite.
func FallbackChain(table *routing.Table, primary routing.CollectionID, skip ...routing.CollectionID) []routing.CollectionID {
	visited := map[routing.CollectionID]bool{primary: true}
	for _, id := range skip {
		visited[id] = true
	}
	var chain []routing.CollectionID
	queue := table.Fallbacks(primary)
	for _, id := range skip {
		queue = append(queue, table.Fallbacks(id)...)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		chain = append(chain, id)
		queue = append(queue, table.Fallbacks(id)...)
	}
	return chain
}
