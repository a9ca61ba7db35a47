package mcp

import (
	"fmt"
	"strings"

	"github.com/docsearchd/docsearchd/internal/search"
)

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, results []*search.SearchResult) string {
	validResults := filterValidResults(results)

	if len(validResults) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(validResults)))
	if len(validResults) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range validResults {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// filterValidResults removes results with nil chunks.
func filterValidResults(results []*search.SearchResult) []*search.SearchResult {
	valid := make([]*search.SearchResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Chunk != nil {
			valid = append(valid, r)
		}
	}
	return valid
}

// formatResult formats a single result, preserving heading-path context so
// the reader can see where within the document the match sits.
func formatResult(sb *strings.Builder, num int, r *search.SearchResult) {
	if r.Chunk == nil {
		return
	}

	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, r.Chunk.FilePath, r.Score)

	if r.Chunk.DocTitle != "" {
		fmt.Fprintf(sb, "**Document:** %s", r.Chunk.DocTitle)
		if r.Chunk.Breadcrumb != "" {
			fmt.Fprintf(sb, " > %s", r.Chunk.Breadcrumb)
		}
		sb.WriteString("\n")
	}
	if r.Chunk.DocType != "" {
		fmt.Fprintf(sb, "**Type:** %s\n", r.Chunk.DocType)
	}
	sb.WriteString("\n")

	sb.WriteString(r.Chunk.Content)
	sb.WriteString("\n\n---\n\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToSearchResultOutput converts a search result to the enhanced output format,
// adding a human-readable explanation of why it matched.
func ToSearchResultOutput(r *search.SearchResult) SearchResultOutput {
	if r == nil || r.Chunk == nil {
		return SearchResultOutput{}
	}

	output := SearchResultOutput{
		FilePath:     r.Chunk.FilePath,
		DocTitle:     r.Chunk.DocTitle,
		HeadingPath:  r.Chunk.Breadcrumb,
		Content:      r.Chunk.Content,
		Score:        r.Score,
		DocType:      string(r.Chunk.DocType),
		MatchedTerms: r.MatchedTerms,
		InBothLists:  r.InBothLists,
	}

	output.MatchReason = generateMatchReason(r)

	return output
}

// generateMatchReason creates a human-readable explanation of why a result matched.
func generateMatchReason(r *search.SearchResult) string {
	if r == nil || r.Chunk == nil {
		return ""
	}

	var parts []string

	if r.Chunk.Breadcrumb != "" {
		parts = append(parts, fmt.Sprintf("under section '%s'", r.Chunk.Breadcrumb))
	}

	if len(r.MatchedTerms) > 0 {
		terms := r.MatchedTerms
		if len(terms) > 5 {
			terms = terms[:5]
		}
		parts = append(parts, fmt.Sprintf("matched: %s", strings.Join(terms, ", ")))
	}

	if r.InBothLists {
		parts = append(parts, "found in both keyword and semantic search")
	}

	if len(parts) == 0 {
		return "matched content"
	}

	return strings.Join(parts, "; ")
}
