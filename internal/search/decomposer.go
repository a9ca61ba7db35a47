// Package search provides hybrid search functionality combining BM25 and semantic search.
package search

import (
	"regexp"
	"strings"
)

// SubQuery represents a decomposed sub-query with its relative weight.
type SubQuery struct {
	// Query is the sub-query text to search.
	Query string

	// Weight is the relative importance of this sub-query (default: 1.0).
	// Higher weights give more influence in fusion scoring.
	Weight float64

	// Hint optionally suggests result filtering: "docs", or "" (any).
	Hint string
}

// QueryDecomposer transforms a single query into multiple sub-queries
// for improved coverage via multi-signal fusion.
//
// This addresses the generic-query problem: a query like "authentication
// guide" can fail lexically if the indexed heading reads "Authentication"
// with no following word, while a purely semantic match may rank it below
// unrelated prose that happens to share more terms. Decomposing into
// narrower sub-queries lets both signals contribute.
type QueryDecomposer interface {
	// ShouldDecompose returns true if the query benefits from decomposition.
	// Conservative: only returns true for patterns known to need it.
	ShouldDecompose(query string) bool

	// Decompose returns sub-queries for the given query.
	// If ShouldDecompose returns false, returns original query wrapped in slice.
	Decompose(query string) []SubQuery
}

// PatternDecomposer implements QueryDecomposer using regex pattern matching.
// This is deterministic, fast, and has no external dependencies.
type PatternDecomposer struct {
	nounSectionPattern *regexp.Regexp
	howDoesWorkPattern *regexp.Regexp
	camelCasePattern   *regexp.Regexp
	pascalCasePattern  *regexp.Regexp
	snakeCasePattern   *regexp.Regexp
	filePathPattern    *regexp.Regexp
	quotedPattern      *regexp.Regexp
}

// NewPatternDecomposer creates a new pattern-based query decomposer.
func NewPatternDecomposer() *PatternDecomposer {
	return &PatternDecomposer{
		// Matches: "authentication section", "deployment guide", "API reference"
		nounSectionPattern: regexp.MustCompile(`(?i)^(.+?)\s+(section|guide|reference|overview|docs?)$`),

		// Matches: "How does retry work", "How does the scheduler work"
		howDoesWorkPattern: regexp.MustCompile(`(?i)^how\s+does\s+(.+?)\s+work$`),

		// Technical identifiers that should skip decomposition
		camelCasePattern: regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`),
		pascalCasePattern: regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$`),
		snakeCasePattern: regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`),

		// File paths with common doc/code extensions
		filePathPattern: regexp.MustCompile(`(?i)[\w\-\.]*[/\\][\w\-\./\\]*\.(go|ts|tsx|js|jsx|py|md|mdx|json|yaml|yml|rst|txt)$`),

		// Quoted phrases
		quotedPattern: regexp.MustCompile(`^["'].*["']$`),
	}
}

// ShouldDecompose returns true if the query matches a pattern that benefits
// from multi-query decomposition.
//
// Conservative approach: only decompose queries matching known patterns.
// This prevents regression on queries that already work.
func (d *PatternDecomposer) ShouldDecompose(query string) bool {
	query = strings.TrimSpace(query)

	if len(query) == 0 {
		return false
	}

	words := strings.Fields(query)
	if len(words) <= 1 {
		return false
	}

	if d.isSpecificIdentifier(query) {
		return false
	}

	if d.filePathPattern.MatchString(query) {
		return false
	}

	if d.quotedPattern.MatchString(query) {
		return false
	}

	// Skip long natural language queries (5+ words, already semantic-optimized)
	// Exception: "How does X work" pattern.
	if len(words) >= 5 && !d.howDoesWorkPattern.MatchString(query) {
		return false
	}

	if d.nounSectionPattern.MatchString(query) {
		return true
	}

	if d.howDoesWorkPattern.MatchString(query) {
		return true
	}

	return false
}

// isSpecificIdentifier checks if the query is a technical identifier
// (camelCase, PascalCase, snake_case) that shouldn't be decomposed.
func (d *PatternDecomposer) isSpecificIdentifier(query string) bool {
	if strings.Contains(query, " ") {
		return false
	}

	return d.camelCasePattern.MatchString(query) ||
		d.pascalCasePattern.MatchString(query) ||
		d.snakeCasePattern.MatchString(query)
}

// Decompose transforms a query into multiple sub-queries.
// Returns original query wrapped in slice if decomposition doesn't apply.
func (d *PatternDecomposer) Decompose(query string) []SubQuery {
	query = strings.TrimSpace(query)

	if !d.ShouldDecompose(query) {
		return []SubQuery{{Query: query, Weight: 1.0}}
	}

	if matches := d.nounSectionPattern.FindStringSubmatch(query); len(matches) >= 2 {
		return d.decomposeNounSection(matches[1])
	}

	if matches := d.howDoesWorkPattern.FindStringSubmatch(query); len(matches) >= 2 {
		return d.decomposeHowDoesWork(matches[1])
	}

	return []SubQuery{{Query: query, Weight: 1.0}}
}

// decomposeNounSection generates sub-queries for "{topic} section/guide/reference"
// patterns. Example: "authentication guide" ->
//   - "# Authentication" (heading form)
//   - "Authentication" (raw term)
//   - "authentication overview" (synonym phrasing)
func (d *PatternDecomposer) decomposeNounSection(topic string) []SubQuery {
	trimmed := strings.TrimSpace(topic)
	titled := strings.Title(strings.ToLower(trimmed)) //nolint:staticcheck

	return []SubQuery{
		{Query: "# " + titled, Weight: 1.3, Hint: "docs"},
		{Query: titled, Weight: 1.0, Hint: "docs"},
		{Query: trimmed + " overview", Weight: 0.9},
		{Query: trimmed, Weight: 0.8},
	}
}

// decomposeHowDoesWork generates sub-queries for "How does {X} work" patterns.
// Example: "How does the retry policy work" ->
//   - "retry" (key term)
//   - "policy" (key term)
//   - "retry policy" (heading form)
func (d *PatternDecomposer) decomposeHowDoesWork(topic string) []SubQuery {
	words := strings.Fields(topic)
	subQueries := make([]SubQuery, 0, len(words)+1)

	var significant []string
	for _, word := range words {
		word = strings.TrimSpace(word)
		if len(word) < 2 {
			continue
		}
		lowerWord := strings.ToLower(word)
		if isStopWord(lowerWord) {
			continue
		}
		significant = append(significant, word)
		subQueries = append(subQueries, SubQuery{Query: word, Weight: 1.0})
	}

	if len(significant) > 0 {
		subQueries = append(subQueries, SubQuery{
			Query:  "# " + strings.Title(strings.ToLower(strings.Join(significant, " "))), //nolint:staticcheck
			Weight: 1.2,
			Hint:   "docs",
		})
	}

	if len(subQueries) == 0 {
		return []SubQuery{{Query: topic, Weight: 1.0}}
	}

	return subQueries
}

// isStopWord returns true for common stop words that don't add search value.
func isStopWord(word string) bool {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "is": true, "are": true,
		"was": true, "were": true, "be": true, "been": true, "being": true,
		"have": true, "has": true, "had": true, "do": true, "does": true,
		"did": true, "will": true, "would": true, "could": true, "should": true,
		"may": true, "might": true, "must": true, "shall": true,
		"and": true, "but": true, "or": true, "nor": true, "for": true,
		"yet": true, "so": true, "to": true, "of": true, "in": true,
		"on": true, "at": true, "by": true, "with": true, "from": true,
		"it": true, "its": true, "this": true, "that": true, "these": true,
		"those": true, "which": true, "what": true, "who": true, "whom": true,
	}
	return stopWords[word]
}

// Ensure PatternDecomposer implements QueryDecomposer interface.
var _ QueryDecomposer = (*PatternDecomposer)(nil)
