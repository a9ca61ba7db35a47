package search

import (
	"sort"
	"strings"
)

// maxChunksPerDocument caps how many chunks from the same document survive
// the dedup/diversify stage, keeping result pages from being dominated by a
// single large document.
const maxChunksPerDocument = 3

// dedupeAndDiversify groups results by document, keeps at most
// maxChunksPerDocument chunks per document, and prefers chunks whose top-level
// heading differs from ones already kept for that document (diversity within
// a document's surviving chunks). The highest-scoring chunk for a document
// always survives; later chunks are chosen to maximize heading-path spread
// before falling back to score order. The final ordering is by score desc,
// then by chunk recency desc, then by chunk ID for determinism.
func (e *Engine) dedupeAndDiversify(results []*SearchResult) []*SearchResult {
	if len(results) == 0 {
		return results
	}

	byDoc := make(map[string][]*SearchResult)
	var docOrder []string
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		key := r.Chunk.DocID.String()
		if _, ok := byDoc[key]; !ok {
			docOrder = append(docOrder, key)
		}
		byDoc[key] = append(byDoc[key], r)
	}

	kept := make([]*SearchResult, 0, len(results))
	for _, key := range docOrder {
		group := byDoc[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})

		var chosen []*SearchResult
		seenHeadings := make(map[string]bool)
		var deferred []*SearchResult

		for _, r := range group {
			if len(chosen) >= maxChunksPerDocument {
				break
			}
			heading := topHeading(r.Chunk.Breadcrumb)
			if len(chosen) == 0 || !seenHeadings[heading] {
				chosen = append(chosen, r)
				seenHeadings[heading] = true
			} else {
				deferred = append(deferred, r)
			}
		}
		for _, r := range deferred {
			if len(chosen) >= maxChunksPerDocument {
				break
			}
			chosen = append(chosen, r)
		}

		kept = append(kept, chosen...)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Chunk.UpdatedAt.Equal(b.Chunk.UpdatedAt) {
			return a.Chunk.UpdatedAt.After(b.Chunk.UpdatedAt)
		}
		return a.Chunk.ID < b.Chunk.ID
	})

	return kept
}

// topHeading returns the first segment of a " > "-delimited heading path.
func topHeading(breadcrumb string) string {
	if breadcrumb == "" {
		return ""
	}
	if idx := strings.Index(breadcrumb, " > "); idx >= 0 {
		return breadcrumb[:idx]
	}
	return breadcrumb
}
