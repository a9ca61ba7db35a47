package search

import (
	"fmt"
	"sort"
	"strings"
)

// snippetMaxChars caps the rendered snippet length.
const snippetMaxChars = 280

// Highlight markers wrap matched terms in the rendered snippet. Chosen to be
// unlikely to collide with real document content.
const (
	highlightMarkerOpen  = "»" // »
	highlightMarkerClose = "«" // «
)

// formatResult populates the wire-facing presentation fields on r: section
// path, a stable chunk URL, and a truncated, optionally highlighted snippet.
func (e *Engine) formatResult(r *SearchResult, includeHighlights bool) {
	if r.Chunk == nil {
		return
	}
	r.SectionPath = r.Chunk.Breadcrumb
	r.URL = fmt.Sprintf("file://%s#L%d-L%d", r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine)
	r.Snippet = buildSnippet(r.Chunk.Content, r.MatchedTerms, includeHighlights)
}

// buildSnippet collapses whitespace, truncates to snippetMaxChars, and
// optionally wraps matched terms in highlight markers.
func buildSnippet(content string, matchedTerms []string, includeHighlights bool) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if len(collapsed) > snippetMaxChars {
		collapsed = collapsed[:snippetMaxChars]
	}
	if includeHighlights && len(matchedTerms) > 0 {
		return highlightSnippet(collapsed, matchedTerms)
	}
	return collapsed
}

type snippetMatch struct {
	start, end int
}

// highlightSnippet wraps every non-overlapping, case-insensitive occurrence
// of a matched term in highlightMarkerOpen/Close.
func highlightSnippet(snippet string, matchedTerms []string) string {
	lower := strings.ToLower(snippet)

	var matches []snippetMatch
	for _, term := range matchedTerms {
		if term == "" {
			continue
		}
		lowerTerm := strings.ToLower(term)
		start := 0
		for {
			idx := strings.Index(lower[start:], lowerTerm)
			if idx == -1 {
				break
			}
			abs := start + idx
			matches = append(matches, snippetMatch{start: abs, end: abs + len(term)})
			start = abs + len(term)
		}
	}
	if len(matches) == 0 {
		return snippet
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end < matches[j].end
	})

	var b strings.Builder
	cursor := 0
	for _, m := range matches {
		if m.start < cursor {
			continue // overlaps the previous highlight, skip
		}
		b.WriteString(snippet[cursor:m.start])
		b.WriteString(highlightMarkerOpen)
		b.WriteString(snippet[m.start:m.end])
		b.WriteString(highlightMarkerClose)
		cursor = m.end
	}
	b.WriteString(snippet[cursor:])
	return b.String()
}
