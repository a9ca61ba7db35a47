// Package store provides per-collection lexical (BM25/Bleve) and vector
// (HNSW) indexes: the retrieval primitives the query pipeline searches
// over. Document/collection bookkeeping lives in internal/registry.
package store

import (
	"context"
	"fmt"
)

// ContentType represents the type of content a chunk was derived from.
type ContentType string

const (
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeHTML     ContentType = "html"
	ContentTypeText     ContentType = "text"
	ContentTypeJSON     ContentType = "json"
	ContentTypeYAML     ContentType = "yaml"
	ContentTypeTOML     ContentType = "toml"
	ContentTypeRST      ContentType = "rst"
	ContentTypeAsciidoc ContentType = "adoc"
	ContentTypeOrg      ContentType = "org"
)

// Document represents a unit of text to be indexed in BM25. ID is the
// chunk ID (<external_id>:<5-digit-index>), shared with the vector store.
type Document struct {
	ID      string
	Content string
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about a BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using the BM25 algorithm, scoped to a
// single collection.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures a BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// StopWords is a list of words filtered out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int

	// MaxTokenLength is the maximum token length to index (default: 40).
	MaxTokenLength int
}

// DefaultBM25Config returns the default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
		MaxTokenLength: 40,
	}
}

// DefaultStopWords contains common English stop words filtered from
// document prose during BM25 tokenization.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "were", "will", "with", "this", "these", "those",
	"or", "but", "if", "then", "than",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures a vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension, fixed per embedder.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean).
	Metric string

	// M is the HNSW max connections per layer (default: 32).
	M int

	// EfConstruction is the HNSW build-time search width (default: 128).
	EfConstruction int

	// EfSearch is the HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for a vector store of
// the given dimensionality.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using the HNSW algorithm, scoped
// to a single collection.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between the
// store and the embedder producing new vectors.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex the collection with the new embedder)", e.Expected, e.Got)
}

// CurrentSchemaVersion is the current on-disk index schema version.
const CurrentSchemaVersion = 1

// IndexInfo contains diagnostic information about a collection's index.
type IndexInfo struct {
	Collection      string
	Location        string
	IndexModel      string
	IndexDimensions int
	ChunkCount      int
	DocumentCount   int
	IndexSizeBytes  int64
	BM25SizeBytes   int64
	VectorSizeBytes int64
	CurrentModel    string
	CurrentDimensions int
	Compatible      bool
}
