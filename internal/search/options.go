package search

import (
	"strings"
	"time"

	"github.com/docsearchd/docsearchd/internal/registry"
)

// FilterFunc checks if a search result matches filter criteria.
type FilterFunc func(result *SearchResult) bool

// ApplyFilters filters results based on search options.
// Filters use AND logic - results must match all specified criteria.
func ApplyFilters(results []*SearchResult, opts SearchOptions) []*SearchResult {
	filters := buildFilters(opts)
	if len(filters) == 0 {
		return results
	}

	filtered := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		if matchesAllFilters(r, filters) {
			filtered = append(filtered, r)
		}
	}

	return filtered
}

// buildFilters creates filter functions based on options.
func buildFilters(opts SearchOptions) []FilterFunc {
	var filters []FilterFunc

	if opts.Filter != "" && opts.Filter != "all" {
		filters = append(filters, contentTypeFilter(opts.Filter))
	}
	if opts.DocType != "" {
		filters = append(filters, docTypeFilter(opts.DocType))
	}
	if len(opts.Tags) > 0 {
		filters = append(filters, tagsFilter(opts.Tags))
	}
	if opts.CreatedAfter != nil || opts.CreatedBefore != nil {
		filters = append(filters, dateRangeFilter(opts.CreatedAfter, opts.CreatedBefore))
	}
	if len(opts.Scopes) > 0 {
		filters = append(filters, scopeFilter(opts.Scopes))
	}

	return filters
}

// matchesAllFilters checks if a result passes all filters (AND logic).
func matchesAllFilters(result *SearchResult, filters []FilterFunc) bool {
	for _, f := range filters {
		if !f(result) {
			return false
		}
	}
	return true
}

// contentTypeFilter creates a filter for content type. "docs" matches
// every content type this engine indexes; any other value is a no-op
// since there is no non-document content type to exclude.
func contentTypeFilter(filter string) FilterFunc {
	return func(r *SearchResult) bool {
		return r.Chunk != nil
	}
}

// docTypeFilter creates a filter for a document's classified type.
func docTypeFilter(docType string) FilterFunc {
	target := registry.DocType(docType)
	return func(r *SearchResult) bool {
		if r.Chunk == nil {
			return false
		}
		return r.Chunk.DocType == target
	}
}

// tagsFilter creates a filter requiring every listed tag to be present
// on the chunk's document.
func tagsFilter(tags []string) FilterFunc {
	return func(r *SearchResult) bool {
		if r.Chunk == nil {
			return false
		}
		for _, want := range tags {
			found := false
			for _, got := range r.Chunk.Tags {
				if got == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
}

// dateRangeFilter creates a filter on a chunk's document update time.
func dateRangeFilter(after, before *time.Time) FilterFunc {
	return func(r *SearchResult) bool {
		if r.Chunk == nil {
			return false
		}
		if after != nil && r.Chunk.UpdatedAt.Before(*after) {
			return false
		}
		if before != nil && r.Chunk.UpdatedAt.After(*before) {
			return false
		}
		return true
	}
}

// ValidateOptions checks if search options are valid.
func ValidateOptions(opts SearchOptions) error {
	return nil
}

// NormalizeScope ensures consistent path format for matching.
// Strips leading and trailing slashes.
func NormalizeScope(scope string) string {
	return strings.Trim(scope, "/")
}

// scopeFilter creates a filter for path scope prefixes.
// Multiple scopes use OR logic - matches if path starts with ANY scope.
func scopeFilter(scopes []string) FilterFunc {
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if n := NormalizeScope(s); n != "" {
			normalized = append(normalized, n+"/")
		}
	}

	if len(normalized) == 0 {
		return func(*SearchResult) bool { return true }
	}

	return func(r *SearchResult) bool {
		if r.Chunk == nil {
			return false
		}
		filePath := NormalizeScope(r.Chunk.FilePath) + "/"
		for _, scope := range normalized {
			if strings.HasPrefix(filePath, scope) {
				return true
			}
		}
		return false
	}
}
