// Package chunk splits cleaned document text into overlapping,
// token-budgeted passages for embedding and BM25 indexing.
package chunk

import (
	"context"
	"time"
)

// Token budget defaults: a larger target window than a typical
// code-oriented chunker, since prose chunks tolerate (and benefit
// from) more context than a function body does.
const (
	DefaultMaxChunkTokens = 1024
	DefaultOverlapTokens  = 128
	MinChunkTokens        = 100
	TokensPerChar         = 4 // rough approximation: 4 chars = 1 token
)

// ContentType mirrors content.ContentType for the subset of types the
// chunker treats distinctly (markdown gets header-aware splitting;
// everything else gets token-window splitting).
type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// Chunk is a retrievable passage of a document.
type Chunk struct {
	ID          string // "<external_id>:<5-digit zero-padded index>", invariant I6
	Index       uint32 // dense 0-based position within the document
	ExternalID  string
	FilePath    string
	Content     string
	Breadcrumb  string // heading trail for markdown chunks, e.g. "Title > Section"
	ContentType ContentType
	StartLine   int
	EndLine     int
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FileInput is input for the Chunker interface.
type FileInput struct {
	Path        string
	ExternalID  string
	Content     []byte
	ContentType ContentType
}

// Chunker splits a document into token-budgeted chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}
