package api

import (
	"context"

	amerrors "github.com/docsearchd/docsearchd/internal/errors"
	"github.com/docsearchd/docsearchd/internal/search"
)

// SingleEngine adapts one search.SearchEngine to the Engines interface for
// deployments that serve exactly one collection, the common case for a
// docsearchd instance pointed at a single repository checkout.
type SingleEngine struct {
	Collection string
	Search     search.SearchEngine
}

// Engine returns the wrapped engine if name matches the configured
// collection, and a NOT_FOUND error otherwise.
func (s SingleEngine) Engine(name string) (search.SearchEngine, error) {
	if name == "" || name == s.Collection {
		return s.Search, nil
	}
	return nil, amerrors.NotFoundError(amerrors.ErrCodeCollectionNotFound, "collection '"+name+"' not found")
}

// Searcher is what the REST surface needs from internal/gateway.Gateway:
// a multi-collection search call that also reports query metadata.
type Searcher interface {
	SearchDetailed(ctx context.Context, collections []string, query string, opts search.SearchOptions) (*search.SearchResponse, error)
}
