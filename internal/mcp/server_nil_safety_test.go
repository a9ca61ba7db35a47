package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsearchd/docsearchd/internal/config"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/search"
)

// Nil Safety Tests - These test that the MCP server handles nil values
// and error conditions gracefully without panicking.

// =============================================================================
// Nil Embedder Tests
// =============================================================================

// TestServer_NilEmbedder_CreatesSuccessfully tests that server works without
// embedder (embedder is optional).
func TestServer_NilEmbedder_CreatesSuccessfully(t *testing.T) {
	engine := &MockSearchEngine{}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", nil, cfg, "")

	require.NoError(t, err)
	require.NotNil(t, srv)
}

// TestServer_NilEmbedder_SearchStillWorks tests that search works even
// without an embedder.
func TestServer_NilEmbedder_SearchStillWorks(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{
					Chunk: &registry.ChunkRecord{
						ID:       "test-1",
						Content:  "Test content",
						FilePath: "test.md",
					},
					Score: 0.9,
				},
			}, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", nil, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test query",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result)
}

// TestServer_NilEmbedder_CollectionStatusStillWorks tests that
// collection_status reports gracefully without an embedder.
func TestServer_NilEmbedder_CollectionStatusStillWorks(t *testing.T) {
	engine := &MockSearchEngine{}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", nil, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "collection_status", map[string]any{})

	require.NoError(t, err)
	require.NotNil(t, result)
	status := result.(*CollectionStatusOutput)
	assert.Equal(t, "none", status.Embeddings.ActualProvider)
	assert.Equal(t, "unavailable", status.Embeddings.Status)
}

// =============================================================================
// Search Engine Error Handling Tests
// =============================================================================

// TestServer_SearchEngineError_ReturnsErrorNotPanic tests that search engine
// errors are properly propagated as errors, not panics.
func TestServer_SearchEngineError_ReturnsErrorNotPanic(t *testing.T) {
	searchErr := errors.New("search engine failure")
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return nil, searchErr
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test query",
	})

	require.Error(t, err, "Search engine error should be returned as error")
}

// TestServer_SearchEngineNilResults_ReturnsEmptyGracefully tests that nil
// results from search engine are handled gracefully.
func TestServer_SearchEngineNilResults_ReturnsEmptyGracefully(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return nil, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test query",
	})

	require.NoError(t, err)
	assert.Contains(t, result, "No results found")
}

// TestServer_SearchResultsWithNilChunks_FilteredOut tests that results
// with nil chunks are filtered out gracefully.
func TestServer_SearchResultsWithNilChunks_FilteredOut(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{Chunk: nil, Score: 0.9},
				{Chunk: &registry.ChunkRecord{ID: "valid", Content: "Valid content", FilePath: "test.md"}, Score: 0.8},
				nil,
				{Chunk: nil, Score: 0.7},
			}, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test query",
	})

	require.NoError(t, err)
	resultStr := result.(string)
	assert.Contains(t, resultStr, "Valid content")
}

// =============================================================================
// Concurrent Access Tests
// =============================================================================

// TestServer_ConcurrentSearch_NoRace tests that concurrent search operations
// don't cause race conditions or panics.
func TestServer_ConcurrentSearch_NoRace(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{
				{Chunk: &registry.ChunkRecord{ID: "test", Content: "Test"}, Score: 0.9},
			}, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search", map[string]any{
				"query": "concurrent test",
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent search failed: %v", err)
	}
}

// TestServer_ConcurrentToolCalls_NoRace tests that concurrent tool calls
// of different types don't cause race conditions.
func TestServer_ConcurrentToolCalls_NoRace(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{}, nil
		},
		StatsFn: func() *search.EngineStats {
			return &search.EngineStats{VectorCount: 100}
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 100)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "search", map[string]any{
				"query": "test",
			})
			if err != nil {
				errs <- err
			}
		}()
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.CallTool(context.Background(), "collection_status", map[string]any{})
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent tool call failed: %v", err)
	}
}

// =============================================================================
// Context Cancellation Tests
// =============================================================================

// TestServer_CancelledContext_ReturnsError tests that cancelled contexts
// are handled gracefully.
func TestServer_CancelledContext_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return []*search.SearchResult{}, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = srv.CallTool(ctx, "search", map[string]any{
		"query": "test",
	})

	require.Error(t, err)
}

// =============================================================================
// Collection Status Nil Safety Tests
// =============================================================================

// TestServer_CollectionStatus_UnknownCollection_ReturnsError tests that
// querying status for a collection the registry doesn't know about fails
// cleanly instead of panicking.
func TestServer_CollectionStatus_UnknownCollection_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{}
	reg, err := registry.New(nil)
	require.NoError(t, err)
	// Note: no collection created, so "docs" is unknown to the registry.
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "collection_status", map[string]any{})

	require.Error(t, err)
}

// =============================================================================
// Invalid Arguments Tests
// =============================================================================

// TestServer_NilArguments_HandledGracefully tests that nil arguments map
// is handled gracefully.
func TestServer_NilArguments_HandledGracefully(t *testing.T) {
	engine := &MockSearchEngine{}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search", nil)

	require.Error(t, err, "Nil arguments should return error for search")
}

// TestServer_EmptyQuery_ReturnsError tests that empty query returns
// an error instead of panicking.
func TestServer_EmptyQuery_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search", map[string]any{
		"query": "",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

// TestServer_WhitespaceQuery_Rejected tests that whitespace-only query
// is rejected with a validation error.
func TestServer_WhitespaceQuery_Rejected(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{}, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	result, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query": "   ",
	})

	require.Error(t, err, "Whitespace query should be rejected")
	require.Empty(t, result, "Result should be empty when validation fails")
	assert.Contains(t, err.Error(), "query cannot be empty or whitespace only")
}

// TestServer_WrongArgumentType_ReturnsError tests that wrong argument types
// return errors instead of panicking.
func TestServer_WrongArgumentType_ReturnsError(t *testing.T) {
	engine := &MockSearchEngine{}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search", map[string]any{
		"query": 123,
	})

	require.Error(t, err)
}

// TestServer_NegativeLimit_HandledGracefully tests that negative limit
// is handled gracefully.
func TestServer_NegativeLimit_HandledGracefully(t *testing.T) {
	engine := &MockSearchEngine{
		SearchFn: func(ctx context.Context, query string, opts search.SearchOptions) ([]*search.SearchResult, error) {
			return []*search.SearchResult{}, nil
		},
	}
	reg := newTestRegistryWithCollection(t, "docs")
	cfg := config.NewConfig()

	srv, err := NewServer(engine, reg, "docs", &MockEmbedder{}, cfg, "")
	require.NoError(t, err)

	_, err = srv.CallTool(context.Background(), "search", map[string]any{
		"query": "test",
		"limit": -10,
	})

	require.NoError(t, err)
}
