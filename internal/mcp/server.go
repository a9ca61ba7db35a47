// Package mcp implements the Model Context Protocol (MCP) server for docsearchd.
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docsearchd/docsearchd/internal/async"
	"github.com/docsearchd/docsearchd/internal/config"
	"github.com/docsearchd/docsearchd/internal/embed"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/search"
	"github.com/docsearchd/docsearchd/pkg/version"
)

// Server is the MCP server for docsearchd, bridging AI clients (Claude
// Code, Cursor) with the hybrid document search engine.
type Server struct {
	mcp        *mcp.Server
	engine     search.SearchEngine
	registry   *registry.Registry
	collection string
	embedder   embed.Embedder // used for capability signaling; may be nil
	config     *config.Config
	logger     *slog.Logger

	rootPath string

	// Background ingestion progress (nil if not indexing).
	indexProgress *async.IndexProgress

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// ResourceInfo contains information about a resource.
type ResourceInfo struct {
	URI      string
	Name     string
	MIMEType string
}

// ResourceContent contains the content of a resource.
type ResourceContent struct {
	URI      string
	Content  string
	MIMEType string
}

// NewServer creates a new MCP server bound to one collection. The embedder
// parameter is used for capability signaling only - clients can query the
// actual embedder state via collection_status to adjust search strategies.
func NewServer(engine search.SearchEngine, reg *registry.Registry, collection string, embedder embed.Embedder, cfg *config.Config, rootPath string) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if collection == "" {
		return nil, errors.New("collection name is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		engine:     engine,
		registry:   reg,
		collection: collection,
		embedder:   embedder,
		config:     cfg,
		rootPath:   rootPath,
		logger:     slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "docsearchd",
			Version: version.Version,
		},
		nil, // ServerOptions - capabilities are inferred from registered tools/resources
	)

	s.registerTools()

	return s, nil
}

// SetIndexProgress sets the ingestion progress tracker for background
// indexing, enabling collection_status to report live progress.
func (s *Server) SetIndexProgress(progress *async.IndexProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexProgress = progress
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "docsearchd", version.Version
}

// Capabilities returns whether tools and resources are enabled.
func (s *Server) Capabilities() (hasTools, hasResources bool) {
	return true, true
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search",
			Description: "Hybrid lexical + semantic search over the indexed document collection. Preserves section hierarchy so you understand WHERE in the document a match appears.",
		},
		{
			Name:        "collection_status",
			Description: "Check whether the collection's index is ready and which embedder is active. Use before searching to verify the index is complete.",
		},
	}
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch name {
	case "search":
		return s.handleSearchTool(ctx, args)
	case "collection_status":
		return s.handleCollectionStatusTool(ctx, args)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// handleSearchTool handles the search tool invocation, returning
// markdown-formatted results.
func (s *Server) handleSearchTool(ctx context.Context, args map[string]any) (string, error) {
	s.mu.RLock()
	progress := s.indexProgress
	s.mu.RUnlock()

	if progress != nil && progress.IsIndexing() {
		snap := progress.Snapshot()
		return fmt.Sprintf("## Indexing in Progress\n\n"+
			"**Progress:** %.1f%% (%d/%d files)\n"+
			"**Stage:** %s\n\n"+
			"Search results may be incomplete or unavailable. Please try again in a moment.",
			snap.ProgressPct, snap.FilesProcessed, snap.FilesTotal, snap.Stage), nil
	}

	start := time.Now()
	requestID := generateRequestID()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	if strings.TrimSpace(query) == "" {
		return "", NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	limit := clampLimit(0, 10, 1, 50)
	if l, ok := args["limit"].(float64); ok {
		limit = clampLimit(int(l), 10, 1, 50)
	}

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	opts := search.SearchOptions{Limit: limit}
	if docType, ok := args["doc_type"].(string); ok {
		opts.DocType = docType
	}
	if tags, ok := args["tags"].([]interface{}); ok {
		for _, t := range tags {
			if str, ok := t.(string); ok {
				opts.Tags = append(opts.Tags, str)
			}
		}
	}
	if scope, ok := args["scope"].([]interface{}); ok {
		for _, sc := range scope {
			if str, ok := sc.(string); ok {
				opts.Scopes = append(opts.Scopes, str)
			}
		}
	}

	results, err := s.engine.Search(ctx, query, opts)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	return FormatSearchResults(query, results), nil
}

// handleCollectionStatusTool handles the collection_status tool invocation.
func (s *Server) handleCollectionStatusTool(ctx context.Context, _ map[string]any) (*CollectionStatusOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	s.logger.Info("collection_status started", slog.String("request_id", requestID))

	output, err := s.buildCollectionStatus(ctx)
	if err != nil {
		return nil, MapError(err)
	}

	duration := time.Since(start)
	s.logger.Info("collection_status completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration))

	return output, nil
}

func (s *Server) buildCollectionStatus(ctx context.Context) (*CollectionStatusOutput, error) {
	coll, err := s.registry.GetCollection(s.collection)
	if err != nil {
		return nil, err
	}
	stats, err := s.registry.Snapshot(s.collection)
	if err != nil {
		return nil, err
	}

	var actualProvider, actualModel, semanticQuality, status string
	var dimensions int
	var isFallbackActive bool

	if s.embedder != nil {
		actualModel = s.embedder.ModelName()
		dimensions = s.embedder.Dimensions()
		isFallbackActive = actualModel == "static" || dimensions == embed.StaticDimensions

		if isFallbackActive {
			actualProvider = "static"
			semanticQuality = "low"
		} else {
			actualProvider = "embedding-model"
			semanticQuality = "high"
		}

		if s.embedder.Available(ctx) {
			status = "ready"
		} else {
			status = "unavailable"
		}
	} else {
		actualProvider = "none"
		actualModel = "none"
		isFallbackActive = true
		semanticQuality = "none"
		status = "unavailable"
	}

	output := &CollectionStatusOutput{
		Collection: CollectionInfo{Name: coll.Name, Description: coll.Description},
		Stats: CollectionStats{
			DocumentCount:  stats.DocumentCount,
			ChunkCount:     stats.ChunkCount,
			TombstonedDocs: stats.TombstonedDocs,
			Version:        stats.Version,
		},
		Embeddings: EmbeddingInfo{
			Provider:         s.config.Embeddings.Provider,
			Model:            s.config.Embeddings.Model,
			Status:           status,
			ActualProvider:   actualProvider,
			ActualModel:      actualModel,
			Dimensions:       dimensions,
			IsFallbackActive: isFallbackActive,
			SemanticQuality:  semanticQuality,
		},
	}

	s.mu.RLock()
	progress := s.indexProgress
	s.mu.RUnlock()

	if progress != nil {
		snap := progress.Snapshot()
		output.Indexing = &IndexingProgress{
			Status:         snap.Status,
			Stage:          snap.Stage,
			FilesTotal:     snap.FilesTotal,
			FilesProcessed: snap.FilesProcessed,
			ChunksIndexed:  snap.ChunksIndexed,
			ProgressPct:    snap.ProgressPct,
			ElapsedSeconds: snap.ElapsedSeconds,
			ErrorMessage:   snap.ErrorMessage,
		}
	}

	return output, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid lexical + semantic search over the indexed document collection. Preserves section hierarchy so you understand WHERE in the document a match appears.",
	}, s.mcpSearchHandler)
	s.logger.Debug("registered tool", slog.String("name", "search"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "collection_status",
		Description: "Check whether the collection's index is ready and which embedder is active. Use before searching to verify the index is complete.",
	}, s.mcpCollectionStatusHandler)
	s.logger.Debug("registered tool", slog.String("name", "collection_status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 2))
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := search.SearchOptions{
		Limit:   10,
		DocType: input.DocType,
		Tags:    input.Tags,
		Scopes:  input.Scope,
	}
	if input.Limit > 0 {
		opts.Limit = input.Limit
	}

	results, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		if r.Chunk != nil {
			output.Results = append(output.Results, ToSearchResultOutput(r))
		}
	}

	return nil, output, nil
}

// mcpCollectionStatusHandler is the MCP SDK handler for the
// collection_status tool.
func (s *Server) mcpCollectionStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ CollectionStatusInput) (
	*mcp.CallToolResult,
	*CollectionStatusOutput,
	error,
) {
	output, err := s.buildCollectionStatus(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, output, nil
}

// ListResources returns all available resources.
func (s *Server) ListResources(ctx context.Context, cursor string) ([]ResourceInfo, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.registry.ListDocuments(s.collection)
	if err != nil {
		return nil, "", err
	}

	resources := make([]ResourceInfo, 0, len(docs))
	for _, d := range docs {
		resources = append(resources, ResourceInfo{
			URI:      fmt.Sprintf("file://%s", d.RelativePath),
			Name:     d.RelativePath,
			MIMEType: MimeTypeForPath(d.RelativePath),
		})
	}

	return resources, "", nil // no pagination for now
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !strings.HasPrefix(uri, "file://") {
		return nil, NewResourceNotFoundError(uri)
	}
	relativePath := strings.TrimPrefix(uri, "file://")

	result, err := s.handleReadResource(ctx, relativePath)
	if err != nil {
		return nil, err
	}
	if len(result.Contents) == 0 {
		return nil, NewResourceNotFoundError(uri)
	}

	return &ResourceContent{
		URI:      uri,
		Content:  result.Contents[0].Text,
		MIMEType: result.Contents[0].MIMEType,
	}, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		s.logger.Debug("using stdio transport for JSON-RPC")
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	case "sse":
		return fmt.Errorf("SSE transport not yet implemented")
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources.
func (s *Server) Close() error {
	// The MCP server doesn't have a Close method; it stops when context is canceled.
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
