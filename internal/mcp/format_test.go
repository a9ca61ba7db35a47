package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/search"
)

func TestFormatSearchResults_Basic(t *testing.T) {
	results := []*search.SearchResult{
		{
			Chunk: &registry.ChunkRecord{
				FilePath:   "architecture/adr-001.md",
				Content:    "We adopt a hybrid BM25 + vector ranking approach.",
				DocTitle:   "ADR-001: Adopt hybrid search",
				Breadcrumb: "Decision",
				DocType:    registry.DocTypeADR,
			},
			Score: 0.95,
		},
	}

	markdown := FormatSearchResults("hybrid ranking", results)

	assert.Contains(t, markdown, "## Search Results")
	assert.Contains(t, markdown, `"hybrid ranking"`)
	assert.Contains(t, markdown, "Found 1 result")
	assert.Contains(t, markdown, "architecture/adr-001.md")
	assert.Contains(t, markdown, "score: 0.95")
	assert.Contains(t, markdown, "ADR-001: Adopt hybrid search")
	assert.Contains(t, markdown, "Decision")
	assert.Contains(t, markdown, "We adopt a hybrid BM25 + vector ranking approach.")
}

func TestFormatSearchResults_MultipleResults(t *testing.T) {
	results := []*search.SearchResult{
		{
			Chunk: &registry.ChunkRecord{FilePath: "roadmap.md", Content: "Q3 priorities."},
			Score: 0.9,
		},
		{
			Chunk: &registry.ChunkRecord{FilePath: "review.md", Content: "Incident review."},
			Score: 0.8,
		},
	}

	markdown := FormatSearchResults("priorities", results)

	assert.Contains(t, markdown, "Found 2 results")
	assert.Contains(t, markdown, "roadmap.md")
	assert.Contains(t, markdown, "review.md")

	firstIdx := strings.Index(markdown, "roadmap.md")
	secondIdx := strings.Index(markdown, "review.md")
	assert.Less(t, firstIdx, secondIdx, "results should be ordered as given")
}

func TestFormatSearchResults_NoResults(t *testing.T) {
	markdown := FormatSearchResults("nonexistent topic", nil)
	assert.Contains(t, markdown, "No results found")
	assert.Contains(t, markdown, `"nonexistent topic"`)
}

func TestFormatSearchResults_SkipsNilChunks(t *testing.T) {
	results := []*search.SearchResult{
		{Chunk: nil, Score: 0.5},
		{Chunk: &registry.ChunkRecord{FilePath: "a.md", Content: "real content"}, Score: 0.8},
	}

	markdown := FormatSearchResults("query", results)
	assert.Contains(t, markdown, "Found 1 result")
	assert.Contains(t, markdown, "a.md")
}

func TestFormatSearchResults_OmitsMissingDocTitle(t *testing.T) {
	results := []*search.SearchResult{
		{Chunk: &registry.ChunkRecord{FilePath: "plain.md", Content: "body text"}, Score: 0.6},
	}

	markdown := FormatSearchResults("query", results)
	assert.NotContains(t, markdown, "**Document:**")
}

func TestClampLimit_DefaultsAndBounds(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10, 1, 50))
	assert.Equal(t, 10, clampLimit(-5, 10, 1, 50))
	assert.Equal(t, 50, clampLimit(1000, 10, 1, 50))
	assert.Equal(t, 25, clampLimit(25, 10, 1, 50))
}

func TestToSearchResultOutput_NilChunkReturnsZeroValue(t *testing.T) {
	output := ToSearchResultOutput(&search.SearchResult{Chunk: nil})
	assert.Equal(t, SearchResultOutput{}, output)

	output = ToSearchResultOutput(nil)
	assert.Equal(t, SearchResultOutput{}, output)
}

func TestToSearchResultOutput_CarriesDocMetadata(t *testing.T) {
	r := &search.SearchResult{
		Chunk: &registry.ChunkRecord{
			FilePath:   "blueprint.md",
			Content:    "system design",
			DocTitle:   "System Blueprint",
			Breadcrumb: "Components > Storage",
			DocType:    registry.DocTypeBlueprint,
		},
		Score:        0.77,
		MatchedTerms: []string{"storage", "design"},
		InBothLists:  true,
	}

	output := ToSearchResultOutput(r)

	assert.Equal(t, "blueprint.md", output.FilePath)
	assert.Equal(t, "System Blueprint", output.DocTitle)
	assert.Equal(t, "Components > Storage", output.HeadingPath)
	assert.Equal(t, "blueprint", output.DocType)
	assert.Equal(t, 0.77, output.Score)
	assert.True(t, output.InBothLists)
	assert.Contains(t, output.MatchReason, "Components > Storage")
	assert.Contains(t, output.MatchReason, "storage")
}

func TestGenerateMatchReason_FallsBackWhenNoSignal(t *testing.T) {
	r := &search.SearchResult{Chunk: &registry.ChunkRecord{FilePath: "a.md"}}
	assert.Equal(t, "matched content", generateMatchReason(r))
}

func TestGenerateMatchReason_TruncatesLongTermList(t *testing.T) {
	r := &search.SearchResult{
		Chunk:        &registry.ChunkRecord{FilePath: "a.md"},
		MatchedTerms: []string{"one", "two", "three", "four", "five", "six", "seven"},
	}
	reason := generateMatchReason(r)
	assert.Contains(t, reason, "one, two, three, four, five")
	assert.NotContains(t, reason, "six")
}
