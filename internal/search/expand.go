package search

import (
	"context"
	"strings"
	"time"
)

// DefaultExpansionDeadline bounds how long the hybrid search path waits for
// an ExpansionProvider before falling back to the original query alone.
const DefaultExpansionDeadline = 150 * time.Millisecond

// DefaultMaxQueryVariants caps how many paraphrases (including the original
// query) feed the fan-out search.
const DefaultMaxQueryVariants = 3

// ExpansionProvider generates paraphrases of a query. Implementations
// typically call out to an LLM or a phrase-rewriting model; Expand must
// respect ctx cancellation so the caller's deadline is honored.
type ExpansionProvider interface {
	Expand(ctx context.Context, query string, maxVariants int) ([]string, error)
}

// QueryExpansionResult carries the query variants a search should fan out
// across and whether expansion actually produced more than the original.
type QueryExpansionResult struct {
	Variants []string
	Expanded bool
}

// expandQuery requests up to maxVariants paraphrases of query from provider,
// bounded by deadline. On a nil provider, a provider error, an empty
// response, or a timeout, it falls back to the single original query.
// Variants are deduped by normalized form and the original query always
// occupies index 0.
func expandQuery(ctx context.Context, provider ExpansionProvider, query string, maxVariants int, deadline time.Duration) QueryExpansionResult {
	fallback := QueryExpansionResult{Variants: []string{query}}
	if provider == nil {
		return fallback
	}

	expandCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	paraphrases, err := provider.Expand(expandCtx, query, maxVariants)
	if err != nil || len(paraphrases) == 0 {
		return fallback
	}

	seen := map[string]bool{normalizeVariant(query): true}
	variants := []string{query}
	for _, p := range paraphrases {
		norm := normalizeVariant(p)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		variants = append(variants, p)
		if len(variants) >= maxVariants {
			break
		}
	}

	return QueryExpansionResult{Variants: variants, Expanded: len(variants) > 1}
}

// normalizeVariant lowercases and collapses whitespace so near-duplicate
// paraphrases are recognized as the same variant.
func normalizeVariant(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
