// Package gateway sits between the protocol adapters (REST/JSON-RPC) and
// the per-collection search engines. It is where the result cache (C9) and
// the admission-control limiter (C10) actually get exercised: both live
// below internal/search (cache imports search, so search can't import cache
// back), so this is the first layer able to wrap a multi-collection search
// call with caching and backpressure.
package gateway

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/docsearchd/docsearchd/internal/cache"
	"github.com/docsearchd/docsearchd/internal/concurrency"
	amerrors "github.com/docsearchd/docsearchd/internal/errors"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/search"
)

// Engines resolves the search.SearchEngine for a named collection, mirroring
// the small per-package interface convention already used by api.Engines
// rather than sharing one across packages.
type Engines interface {
	Engine(collection string) (search.SearchEngine, error)
}

// Gateway fans a search out across one or more collections, admission-gates
// it through a concurrency Limiter, and serves repeat queries from a
// version-aware ResultCache.
type Gateway struct {
	registry *registry.Registry
	engines  Engines
	cache    *cache.ResultCache
	limiter  *concurrency.Limiter
}

// New builds a Gateway. cache and limiter may be nil, in which case Search
// skips caching and/or admission control (useful for tests).
func New(reg *registry.Registry, engines Engines, resultCache *cache.ResultCache, limiter *concurrency.Limiter) *Gateway {
	return &Gateway{registry: reg, engines: engines, cache: resultCache, limiter: limiter}
}

// Search resolves collections (defaulting to every known collection when
// none are named), admission-gates the call, and serves from cache when the
// referenced collections' versions haven't moved since the entry was
// computed.
func (g *Gateway) Search(ctx context.Context, collections []string, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	resolved, err := g.resolveCollections(collections)
	if err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.AcquireRead(ctx); err != nil {
			return nil, amerrors.RateLimitedError("search admission timed out: " + err.Error())
		}
		defer g.limiter.ReleaseRead()
	}

	compute := func(ctx context.Context) ([]*search.SearchResult, error) {
		return g.fanOut(ctx, resolved, query, opts)
	}

	if g.cache == nil {
		return compute(ctx)
	}

	versions, err := g.versionVector(resolved)
	if err != nil {
		return nil, err
	}
	key := cache.Key(resolved, query, opts)
	return g.cache.GetOrCompute(ctx, key, versions, compute)
}

// resolveCollections defaults to every known collection when none are
// named, matching the REST/JSON-RPC wire contract's optional filter.
func (g *Gateway) resolveCollections(collections []string) ([]string, error) {
	if len(collections) > 0 {
		return collections, nil
	}
	if g.registry == nil {
		return nil, nil
	}
	all := g.registry.ListCollections()
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
	}
	return names, nil
}

func (g *Gateway) versionVector(collections []string) (cache.VersionVector, error) {
	versions := make(cache.VersionVector, len(collections))
	for _, c := range collections {
		v, err := g.registry.Version(c)
		if err != nil {
			return nil, amerrors.NotFoundError(amerrors.ErrCodeCollectionNotFound, "collection '"+c+"' not found")
		}
		versions[c] = v
	}
	return versions, nil
}

// SearchDetailed behaves like Search but also returns query metadata when
// the underlying engine(s) support search.DetailedSearchEngine. Metadata is
// not cached (only raw results are); every call recomputes it directly
// against the engine(s), bypassing the result cache.
func (g *Gateway) SearchDetailed(ctx context.Context, collections []string, query string, opts search.SearchOptions) (*search.SearchResponse, error) {
	resolved, err := g.resolveCollections(collections)
	if err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.AcquireRead(ctx); err != nil {
			return nil, amerrors.RateLimitedError("search admission timed out: " + err.Error())
		}
		defer g.limiter.ReleaseRead()
	}

	if len(resolved) <= 1 {
		name := ""
		if len(resolved) == 1 {
			name = resolved[0]
		}
		engine, err := g.engines.Engine(name)
		if err != nil {
			return nil, err
		}
		if detailed, ok := engine.(search.DetailedSearchEngine); ok {
			return detailed.SearchDetailed(ctx, query, opts)
		}
		results, err := engine.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		return &search.SearchResponse{Results: results, Meta: search.QueryMeta{RawQuery: query, Limit: opts.Limit}}, nil
	}

	results, err := g.fanOut(ctx, resolved, query, opts)
	if err != nil {
		return nil, err
	}
	return &search.SearchResponse{Results: results, Meta: search.QueryMeta{RawQuery: query, Limit: opts.Limit}}, nil
}

// fanOut runs the search against each named collection, merging results by
// score when more than one collection is in play.
func (g *Gateway) fanOut(ctx context.Context, collections []string, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
	if len(collections) <= 1 {
		name := ""
		if len(collections) == 1 {
			name = collections[0]
		}
		engine, err := g.engines.Engine(name)
		if err != nil {
			return nil, err
		}
		return engine.Search(ctx, query, opts)
	}

	g2, gctx := errgroup.WithContext(ctx)
	perCollection := make([][]*search.SearchResult, len(collections))
	for i, name := range collections {
		i, name := i, name
		g2.Go(func() error {
			engine, err := g.engines.Engine(name)
			if err != nil {
				return fmt.Errorf("collection %q: %w", name, err)
			}
			results, err := engine.Search(gctx, query, opts)
			if err != nil {
				return fmt.Errorf("collection %q: %w", name, err)
			}
			perCollection[i] = results
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	var merged []*search.SearchResult
	for _, results := range perCollection {
		merged = append(merged, results...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if opts.Limit > 0 && len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return merged, nil
}
