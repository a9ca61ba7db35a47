// Package cache provides a result cache for search queries, keyed on query
// text, options, and the collection versions it was computed against. A
// single-flight group coalesces concurrent misses for the same key so a
// burst of identical queries only computes the result once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/docsearchd/docsearchd/internal/search"
)

// DefaultResultCacheSize is the maximum number of cached search responses.
const DefaultResultCacheSize = 4096

// DefaultRerankCacheSize is the maximum number of cached rerank pair scores.
const DefaultRerankCacheSize = 65536

// VersionVector carries the collection versions a cache entry was computed
// against. A search spanning multiple collections records one entry per
// collection so invalidation can be scoped to just the one that changed.
type VersionVector map[string]uint64

// ResultCache caches Engine.Search responses across collection versions.
type ResultCache struct {
	entries *lru.Cache[string, cacheEntry]
	group   singleflight.Group
}

type cacheEntry struct {
	results  []*search.SearchResult
	versions VersionVector
}

// NewResultCache creates a result cache holding up to size entries.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache{entries: c}, nil
}

// Get returns a cached result set if present and every referenced
// collection's version still matches what the entry was computed with.
func (rc *ResultCache) Get(key string, current VersionVector) ([]*search.SearchResult, bool) {
	entry, ok := rc.entries.Get(key)
	if !ok {
		return nil, false
	}
	for collection, version := range entry.versions {
		if current[collection] != version {
			rc.entries.Remove(key)
			return nil, false
		}
	}
	return entry.results, true
}

// GetOrCompute returns the cached result for key, or computes it via fn,
// coalescing concurrent callers for the same key into a single computation.
func (rc *ResultCache) GetOrCompute(ctx context.Context, key string, current VersionVector, fn func(ctx context.Context) ([]*search.SearchResult, error)) ([]*search.SearchResult, error) {
	if results, ok := rc.Get(key, current); ok {
		return results, nil
	}

	v, err, _ := rc.group.Do(key, func() (interface{}, error) {
		results, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		rc.entries.Add(key, cacheEntry{results: results, versions: cloneVersions(current)})
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*search.SearchResult), nil
}

// Invalidate drops every cached entry referencing the given collection. It
// is O(n) in the number of cached entries; called on collection version
// bumps, which are infrequent relative to reads.
func (rc *ResultCache) Invalidate(collection string) {
	for _, key := range rc.entries.Keys() {
		entry, ok := rc.entries.Peek(key)
		if !ok {
			continue
		}
		if _, referenced := entry.versions[collection]; referenced {
			rc.entries.Remove(key)
		}
	}
}

// Len returns the number of entries currently cached.
func (rc *ResultCache) Len() int {
	return rc.entries.Len()
}

func cloneVersions(v VersionVector) VersionVector {
	out := make(VersionVector, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Key builds a deterministic cache key from a query and its options, stable
// across calls with the same logical request regardless of slice ordering.
func Key(collections []string, query string, opts search.SearchOptions) string {
	sorted := append([]string(nil), collections...)
	sort.Strings(sorted)

	tags := append([]string(nil), opts.Tags...)
	sort.Strings(tags)
	scopes := append([]string(nil), opts.Scopes...)
	sort.Strings(scopes)

	var sb strings.Builder
	sb.WriteString(strings.Join(sorted, ","))
	sb.WriteByte('|')
	sb.WriteString(query)
	sb.WriteByte('|')
	fmt.Fprintf(&sb, "limit=%d;docType=%s;tags=%s;scopes=%s;bm25only=%t;vectoronly=%t;rerank=%t;simthreshold=%.4f;adjacent=%d",
		opts.Limit, opts.DocType, strings.Join(tags, ","), strings.Join(scopes, ","),
		opts.BM25Only, opts.VectorOnly, opts.RerankResults, opts.SimilarityThreshold, opts.AdjacentChunks)
	if opts.Weights != nil {
		fmt.Fprintf(&sb, ";w=%.4f:%.4f", opts.Weights.BM25, opts.Weights.Semantic)
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
