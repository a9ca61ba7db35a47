package search

import (
	"testing"
)

// TestShouldDecompose tests the decomposition eligibility detection.
func TestShouldDecompose(t *testing.T) {
	d := NewPatternDecomposer()

	tests := []struct {
		name     string
		query    string
		expected bool
		reason   string
	}{
		{
			name:     "authentication guide - should decompose",
			query:    "authentication guide",
			expected: true,
			reason:   "Generic topic+guide pattern",
		},
		{
			name:     "deployment reference - should decompose",
			query:    "deployment reference",
			expected: true,
			reason:   "Generic topic+reference pattern",
		},
		{
			name:     "onboarding docs lowercase - should decompose",
			query:    "onboarding docs",
			expected: true,
			reason:   "Case-insensitive pattern matching",
		},
		{
			name:     "rate limiting overview - should decompose",
			query:    "rate limiting overview",
			expected: true,
			reason:   "overview is a recognized section synonym",
		},
		{
			name:     "How does retry fusion work - should decompose",
			query:    "How does retry fusion work",
			expected: true,
			reason:   "How does X work pattern for generic queries",
		},

		// Should NOT decompose: specific identifiers
		{
			name:     "camelCase identifier - skip",
			query:    "ollamaEmbedder",
			expected: false,
			reason:   "Specific identifier, already targeted",
		},
		{
			name:     "PascalCase identifier - skip",
			query:    "SearchEngine",
			expected: false,
			reason:   "Specific identifier, already targeted",
		},
		{
			name:     "snake_case identifier - skip",
			query:    "bm25_search",
			expected: false,
			reason:   "Specific identifier, already targeted",
		},

		// Should NOT decompose: file paths
		{
			name:     "file path - skip",
			query:    "internal/search/engine.go",
			expected: false,
			reason:   "File path is already specific",
		},
		{
			name:     "relative path - skip",
			query:    "docs/install.md",
			expected: false,
			reason:   "File path is already specific",
		},

		// Should NOT decompose: quoted phrases
		{
			name:     "quoted phrase - skip",
			query:    `"exact match"`,
			expected: false,
			reason:   "Quoted phrases are for exact match",
		},

		// Should NOT decompose: single words
		{
			name:     "single word - skip",
			query:    "Search",
			expected: false,
			reason:   "Single words don't benefit from decomposition",
		},

		// Should NOT decompose: 5+ word natural language (already semantic)
		{
			name:     "long question - skip",
			query:    "Where is the vector store implementation located exactly",
			expected: false,
			reason:   "Long natural language already works with semantic search",
		},

		// Edge cases
		{
			name:     "empty query - skip",
			query:    "",
			expected: false,
			reason:   "Empty queries can't be decomposed",
		},
		{
			name:     "whitespace only - skip",
			query:    "   ",
			expected: false,
			reason:   "Whitespace-only treated as empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.ShouldDecompose(tt.query)
			if got != tt.expected {
				t.Errorf("ShouldDecompose(%q) = %v, want %v (%s)",
					tt.query, got, tt.expected, tt.reason)
			}
		})
	}
}

// TestDecompose tests the query decomposition logic.
func TestDecompose(t *testing.T) {
	d := NewPatternDecomposer()

	tests := []struct {
		name           string
		query          string
		minSubQueries  int
		mustContain    []string // At least these terms should appear in sub-queries
		mustNotContain []string
	}{
		{
			name:          "authentication guide decomposition",
			query:         "authentication guide",
			minSubQueries: 3,
			mustContain:   []string{"# Authentication", "Authentication"},
		},
		{
			name:          "deployment reference decomposition",
			query:         "deployment reference",
			minSubQueries: 3,
			mustContain:   []string{"# Deployment", "Deployment"},
		},
		{
			name:          "How does retry fusion work",
			query:         "How does retry fusion work",
			minSubQueries: 2,
			mustContain:   []string{"retry", "fusion"},
		},
		{
			name:          "non-decomposable returns original",
			query:         "OllamaEmbedder",
			minSubQueries: 1,
			mustContain:   []string{"OllamaEmbedder"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subQueries := d.Decompose(tt.query)

			if len(subQueries) < tt.minSubQueries {
				t.Errorf("Decompose(%q) returned %d sub-queries, want at least %d",
					tt.query, len(subQueries), tt.minSubQueries)
			}

			allQueries := make(map[string]bool)
			for _, sq := range subQueries {
				allQueries[sq.Query] = true
			}

			for _, term := range tt.mustContain {
				found := false
				for q := range allQueries {
					if q == term || containsSubstring(q, term) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("Decompose(%q) should contain %q in sub-queries, got %v",
						tt.query, term, subQueries)
				}
			}

			for _, term := range tt.mustNotContain {
				for q := range allQueries {
					if q == term {
						t.Errorf("Decompose(%q) should NOT contain %q in sub-queries",
							tt.query, term)
					}
				}
			}
		})
	}
}

// TestSubQueryWeights verifies that sub-query weights are reasonable.
func TestSubQueryWeights(t *testing.T) {
	d := NewPatternDecomposer()

	subQueries := d.Decompose("authentication guide")

	for _, sq := range subQueries {
		if sq.Weight <= 0 {
			t.Errorf("SubQuery %q has non-positive weight: %f", sq.Query, sq.Weight)
		}
		if sq.Weight > 2.0 {
			t.Errorf("SubQuery %q has unexpectedly high weight: %f", sq.Query, sq.Weight)
		}
	}
}

// TestDecomposeIdempotent verifies decomposing an already-decomposed query.
func TestDecomposeIdempotent(t *testing.T) {
	d := NewPatternDecomposer()

	query := "OllamaEmbedder"
	subQueries := d.Decompose(query)

	if len(subQueries) != 1 {
		t.Errorf("Expected 1 sub-query for non-decomposable query, got %d", len(subQueries))
	}
	if subQueries[0].Query != query {
		t.Errorf("Expected original query %q, got %q", query, subQueries[0].Query)
	}
}

// TestDecomposeHeadingHint verifies heading-form sub-queries carry the
// "docs" filter hint so fusion can bias toward document content.
func TestDecomposeHeadingHint(t *testing.T) {
	d := NewPatternDecomposer()

	subQueries := d.Decompose("authentication guide")

	var foundHeading bool
	for _, sq := range subQueries {
		if sq.Query == "# Authentication" {
			foundHeading = true
			if sq.Hint != "docs" {
				t.Errorf("heading sub-query hint = %q, want %q", sq.Hint, "docs")
			}
		}
	}
	if !foundHeading {
		t.Error("expected a heading-form sub-query (# Authentication)")
	}
}

// Helper function to check substring containment.
func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr ||
		len(s) > len(substr) && (s[:len(substr)] == substr || s[len(s)-len(substr):] == substr ||
			findSubstring(s, substr)))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
