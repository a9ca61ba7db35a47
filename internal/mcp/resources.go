package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MaxResourceSize is the maximum file size for resources (1MB).
const MaxResourceSize = 1024 * 1024

// RegisterResources loads every document in the server's collection and
// registers it as an MCP resource, keyed by its file:// URI.
func (s *Server) RegisterResources(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rootPath == "" {
		return fmt.Errorf("rootPath must be set before registering resources")
	}

	docs, err := s.registry.ListDocuments(s.collection)
	if err != nil {
		return fmt.Errorf("list documents for %s: %w", s.collection, err)
	}
	registered := 0
	for _, doc := range docs {
		s.registerDocumentResource(doc.RelativePath)
		registered++
	}

	s.logger.Info("registered resources", "count", registered)
	return nil
}

// registerDocumentResource registers a single document as an MCP resource.
func (s *Server) registerDocumentResource(relativePath string) {
	uri := fmt.Sprintf("file://%s", relativePath)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        filepath.Base(relativePath),
			URI:         uri,
			Description: relativePath,
			MIMEType:    MimeTypeForPath(relativePath),
		},
		s.makeFileHandler(relativePath),
	)
}

// makeFileHandler creates a read handler for a specific document path.
func (s *Server) makeFileHandler(path string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return s.handleReadResource(ctx, path)
	}
}

// handleReadResource reads document content with path validation.
func (s *Server) handleReadResource(ctx context.Context, relativePath string) (*mcp.ReadResourceResult, error) {
	if !s.isValidPath(relativePath) {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid path: %s", relativePath))
	}

	fullPath := filepath.Join(s.rootPath, relativePath)

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MCPError{
				Code:    ErrCodeFileNotFound,
				Message: fmt.Sprintf("document not found: %s", relativePath),
			}
		}
		return nil, MapError(err)
	}

	if info.Size() > MaxResourceSize {
		return nil, &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("document too large: %d bytes (max %d)", info.Size(), MaxResourceSize),
		}
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, MapError(err)
	}

	uri := fmt.Sprintf("file://%s", relativePath)
	mimeType := MimeTypeForPath(relativePath)

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: mimeType,
				Text:     string(content),
			},
		},
	}, nil
}

// isValidPath validates that a path is safe to access: relative, and
// without ".." traversal components.
func (s *Server) isValidPath(path string) bool {
	if path == "" {
		return false
	}

	if filepath.IsAbs(path) {
		return false
	}

	if len(path) >= 2 && path[1] == ':' {
		return false
	}

	cleaned := filepath.Clean(path)

	if strings.HasPrefix(cleaned, "..") {
		return false
	}

	parts := strings.Split(cleaned, string(filepath.Separator))
	for _, part := range parts {
		if part == ".." {
			return false
		}
	}

	return true
}
