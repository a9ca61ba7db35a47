package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/search"
)

func TestResultCache_GetOrCompute_MissThenHit(t *testing.T) {
	rc, err := NewResultCache(16)
	require.NoError(t, err)

	var calls int32
	compute := func(ctx context.Context) ([]*search.SearchResult, error) {
		atomic.AddInt32(&calls, 1)
		return []*search.SearchResult{{Chunk: &registry.ChunkRecord{ID: "c1"}}}, nil
	}

	versions := VersionVector{"docs": 1}
	key := Key([]string{"docs"}, "rollout plan", search.SearchOptions{Limit: 10})

	results, err := rc.GetOrCompute(context.Background(), key, versions, compute)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = rc.GetOrCompute(context.Background(), key, versions, compute)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call should hit cache, not recompute")
}

func TestResultCache_Get_StaleVersionMisses(t *testing.T) {
	rc, err := NewResultCache(16)
	require.NoError(t, err)

	key := "some-key"
	computed := []*search.SearchResult{{Chunk: &registry.ChunkRecord{ID: "c1"}}}
	_, err = rc.GetOrCompute(context.Background(), key, VersionVector{"docs": 1}, func(ctx context.Context) ([]*search.SearchResult, error) {
		return computed, nil
	})
	require.NoError(t, err)

	_, ok := rc.Get(key, VersionVector{"docs": 2})
	assert.False(t, ok, "a version bump should invalidate the cached entry")
}

func TestResultCache_Invalidate_DropsReferencingEntries(t *testing.T) {
	rc, err := NewResultCache(16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = rc.GetOrCompute(ctx, "a", VersionVector{"docs": 1}, func(ctx context.Context) ([]*search.SearchResult, error) {
		return []*search.SearchResult{{Chunk: &registry.ChunkRecord{ID: "a1"}}}, nil
	})
	require.NoError(t, err)
	_, err = rc.GetOrCompute(ctx, "b", VersionVector{"other": 1}, func(ctx context.Context) ([]*search.SearchResult, error) {
		return []*search.SearchResult{{Chunk: &registry.ChunkRecord{ID: "b1"}}}, nil
	})
	require.NoError(t, err)

	rc.Invalidate("docs")

	_, ok := rc.Get("a", VersionVector{"docs": 1})
	assert.False(t, ok, "entries referencing the invalidated collection should be dropped")
	_, ok = rc.Get("b", VersionVector{"other": 1})
	assert.True(t, ok, "entries not referencing the invalidated collection should survive")
}

func TestKey_StableAcrossSliceOrdering(t *testing.T) {
	opts1 := search.SearchOptions{Limit: 5, Tags: []string{"a", "b"}, Scopes: []string{"docs/x", "docs/y"}}
	opts2 := search.SearchOptions{Limit: 5, Tags: []string{"b", "a"}, Scopes: []string{"docs/y", "docs/x"}}

	k1 := Key([]string{"docs", "archive"}, "q", opts1)
	k2 := Key([]string{"archive", "docs"}, "q", opts2)
	assert.Equal(t, k1, k2)
}

func TestKey_DiffersOnQuery(t *testing.T) {
	opts := search.SearchOptions{Limit: 5}
	k1 := Key([]string{"docs"}, "rollout plan", opts)
	k2 := Key([]string{"docs"}, "incident review", opts)
	assert.NotEqual(t, k1, k2)
}

func TestRerankCache_SetAndGet(t *testing.T) {
	rc, err := NewRerankCache(16)
	require.NoError(t, err)

	rc.Set("query", "doc-1:00001", 0.87)
	score, ok := rc.Get("query", "doc-1:00001")
	require.True(t, ok)
	assert.InDelta(t, 0.87, score, 1e-9)

	_, ok = rc.Get("query", "doc-1:00002")
	assert.False(t, ok)
}

func TestRerankCache_EvictDocument_DropsOnlyThatDocsChunks(t *testing.T) {
	rc, err := NewRerankCache(16)
	require.NoError(t, err)

	rc.Set("q", "doc-1:00001", 0.5)
	rc.Set("q", "doc-1:00002", 0.6)
	rc.Set("q", "doc-2:00001", 0.9)

	rc.EvictDocument("doc-1")

	_, ok := rc.Get("q", "doc-1:00001")
	assert.False(t, ok)
	_, ok = rc.Get("q", "doc-1:00002")
	assert.False(t, ok)
	score, ok := rc.Get("q", "doc-2:00001")
	require.True(t, ok)
	assert.InDelta(t, 0.9, score, 1e-9)
}

func TestRerankCache_LRUEviction(t *testing.T) {
	rc, err := NewRerankCache(2)
	require.NoError(t, err)

	rc.Set("q", "a", 1)
	rc.Set("q", "b", 2)
	rc.Set("q", "c", 3)

	assert.LessOrEqual(t, rc.Len(), 2)
}
