// Package search provides hybrid search combining BM25 and semantic search.
// Results are fused via normalize-then-weighted-sum scoring (see fusion.go).
package search

import (
	"context"
	"time"

	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/store"
)

// SearchEngine provides hybrid search combining BM25 and semantic search.
// Indexing is owned by internal/ingest.Orchestrator; the engine only reads
// from the collection's stores and registry.
type SearchEngine interface {
	// Search executes a hybrid search query and returns ranked results.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error)

	// Stats returns engine statistics.
	Stats() *EngineStats

	// Close releases all resources.
	Close() error
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results to return (default: 10, max: 100).
	Limit int

	// Filter restricts results by content type: "all", "docs".
	Filter string

	// DocType restricts results to a single document type (adr, blueprint,
	// whitepaper, roadmap, review, generic). Empty means no filtering.
	DocType string

	// Tags restricts results to documents carrying every listed tag.
	Tags []string

	// CreatedAfter/CreatedBefore restrict results to documents whose
	// UpdatedAt falls within the given bounds. Nil means unbounded.
	CreatedAfter  *time.Time
	CreatedBefore *time.Time

	// Weights overrides the default BM25/semantic weights.
	Weights *Weights

	// Scopes restricts results to files within these path prefixes.
	// Multiple scopes use OR logic (matches if file is within ANY scope).
	// Empty slice means no scope filtering.
	Scopes []string

	// BM25Only forces keyword-only search, skipping semantic/vector search entirely.
	BM25Only bool

	// AdjacentChunks specifies how many chunks before/after to retrieve for context.
	// 0 = disabled (default), 1 = fetch 1 before + 1 after, 2 = fetch 2 each.
	AdjacentChunks int

	// Explain enables detailed search explanation mode.
	Explain bool

	// VectorOnly forces semantic-only search, skipping BM25 entirely.
	// Mutually exclusive with BM25Only; BM25Only takes precedence if both are set.
	VectorOnly bool

	// RerankResults gates cross-encoder reranking behind the caller's request
	// rather than running it unconditionally whenever a reranker is configured.
	RerankResults bool

	// SimilarityThreshold drops results scoring below this value (0 disables
	// filtering).
	SimilarityThreshold float64

	// IncludeHighlights controls whether Snippet gets matched-term markers.
	IncludeHighlights bool
}

// Weights configures the relative importance of BM25 vs semantic search.
type Weights struct {
	// BM25 is the weight for keyword search (0-1, default: 0.4).
	BM25 float64

	// Semantic is the weight for vector search (0-1, default: 0.6).
	Semantic float64
}

// DefaultWeights returns the default search weights per the fusion stage's
// defaults (w_vec = 0.6, w_bm25 = 0.4).
func DefaultWeights() Weights {
	return Weights{
		BM25:     DefaultBM25Weight,
		Semantic: DefaultVectorWeight,
	}
}

// SearchResult represents a single search result with scores and metadata.
type SearchResult struct {
	// Chunk carries the full chunk content and document context, looked up
	// from the registry by chunk ID after fusion.
	Chunk *registry.ChunkRecord

	// Score is the combined normalized score (0-1).
	Score float64

	// BM25Score is the individual BM25 score (normalized).
	BM25Score float64

	// VecScore is the individual vector similarity score (0-1).
	VecScore float64

	// BM25Rank is the position in BM25 results (1-indexed, 0 if absent).
	BM25Rank int

	// VecRank is the position in vector results (1-indexed, 0 if absent).
	VecRank int

	// Highlights contains text ranges where query terms matched.
	Highlights []Range

	// InBothLists indicates the result appeared in both BM25 and vector results.
	InBothLists bool

	// MatchedTerms contains the BM25 query terms that matched this result.
	MatchedTerms []string

	// AdjacentContext contains chunks before/after this result for context.
	AdjacentContext AdjacentContext

	// Explain contains detailed search decision information when opts.Explain=true.
	// Only populated on the first result to avoid duplication.
	Explain *ExplainData

	// FromSignals records which retrieval signals contributed this result.
	FromSignals *FromSignals

	// Scores breaks out the raw per-signal and fused scores.
	Scores Scores

	// Snippet is a truncated, whitespace-collapsed excerpt of the chunk
	// content, optionally carrying highlight markers around matched terms.
	Snippet string

	// SectionPath is the chunk's heading breadcrumb.
	SectionPath string

	// URL addresses the chunk within its source file.
	URL string

	// CustomMetadata carries caller-defined document metadata passed through
	// from the registry.
	CustomMetadata map[string]string
}

// FromSignals records which retrieval signals and query variants produced a
// result.
type FromSignals struct {
	// BM25 indicates the result appeared in the BM25 candidate list.
	BM25 bool

	// Vector indicates the result appeared in the vector candidate list.
	Vector bool

	// QueryExpansion indicates paraphrase expansion was used for this search.
	QueryExpansion bool

	// Variants lists the query variants used for this search (not per-chunk
	// variant attribution, just the set considered).
	Variants []string
}

// Scores breaks out the raw per-signal scores behind a result's fused score.
type Scores struct {
	BM25Raw             float64
	VectorRaw           float64
	Fused               float64
	NormalizationMethod NormalizationMethod
}

// QueryMeta describes how a search's pipeline ran.
type QueryMeta struct {
	RawQuery                string
	NormalizedQuery         string
	Limit                   int
	QueryEnhancementApplied bool
	Variants                []string
	// RankingMethod is one of "hybrid", "hybrid+rerank", "bm25_only", "vector_only".
	RankingMethod     string
	BM25ResultCount   int
	VectorResultCount int
	Partial           bool
	ExecutionTime     time.Duration
}

// SearchResponse bundles search results with metadata about how the pipeline
// produced them.
type SearchResponse struct {
	Results []*SearchResult
	Meta    QueryMeta
}

// DetailedSearchEngine is an optional capability: engines that can report
// QueryMeta alongside results implement it. Callers that only need the
// results (and don't want to special-case stub engines in tests) use
// SearchEngine; callers that want metadata type-assert to this interface.
type DetailedSearchEngine interface {
	SearchEngine
	SearchDetailed(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

// AdjacentContext contains surrounding chunks for context continuity. This
// improves "how does X work" queries by providing implementation context
// that may span multiple chunks of the same document.
type AdjacentContext struct {
	// Before contains chunks appearing before this one in the same document.
	// Sorted by proximity (closest first).
	Before []*registry.ChunkRecord

	// After contains chunks appearing after this one in the same document.
	// Sorted by proximity (closest first).
	After []*registry.ChunkRecord
}

// Range represents a text range for highlighting.
type Range struct {
	// Start is the starting character offset (0-indexed).
	Start int

	// End is the ending character offset (exclusive).
	End int
}

// EngineStats provides statistics about the search engine.
type EngineStats struct {
	// BM25Stats contains BM25 index statistics.
	BM25Stats *store.IndexStats

	// VectorCount is the number of vectors in the store.
	VectorCount int
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int

	// DefaultWeights are the default BM25/semantic weights.
	DefaultWeights Weights

	// Normalization selects the per-list score normalization method used
	// before fusion: "minmax" or "zscore".
	Normalization NormalizationMethod

	// ZScoreScale tunes sigmoid sharpness when Normalization is
	// NormalizeZScore; ignored otherwise.
	ZScoreScale int

	// SearchTimeout is the maximum search duration (default: 5s).
	SearchTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:   10,
		MaxLimit:       100,
		DefaultWeights: DefaultWeights(),
		Normalization:  NormalizeMinMax,
		ZScoreScale:    DefaultZScoreScale,
		SearchTimeout:  5 * time.Second,
	}
}

// QueryType represents the classification category for a search query.
type QueryType string

const (
	// QueryTypeLexical indicates the query needs exact/keyword matching.
	// Used for: error codes, identifiers, quoted phrases, file paths.
	QueryTypeLexical QueryType = "LEXICAL"

	// QueryTypeSemantic indicates the query is natural language seeking meaning.
	// Used for: questions, conceptual queries, explanations.
	QueryTypeSemantic QueryType = "SEMANTIC"

	// QueryTypeMixed indicates the query benefits from both approaches.
	// Used for: multi-word technical queries, default fallback.
	QueryTypeMixed QueryType = "MIXED"
)

// Classifier determines optimal search weights for a query.
// Implementations may use ML models, pattern matching, or hybrid approaches.
type Classifier interface {
	// Classify analyzes a query and returns its type and optimal weights.
	// On error, implementations should return (QueryTypeMixed, DefaultWeights(), err).
	Classify(ctx context.Context, query string) (QueryType, Weights, error)
}

// WeightsForQueryType returns the predefined weights for a query type.
func WeightsForQueryType(qt QueryType) Weights {
	switch qt {
	case QueryTypeLexical:
		return Weights{BM25: 0.85, Semantic: 0.15}
	case QueryTypeSemantic:
		return Weights{BM25: 0.20, Semantic: 0.80}
	default:
		return DefaultWeights()
	}
}

// ExplainData contains detailed search decision information.
type ExplainData struct {
	// Query is the original search query.
	Query string

	// BM25ResultCount is the number of results from BM25 search.
	BM25ResultCount int

	// VectorResultCount is the number of results from vector search.
	VectorResultCount int

	// Weights are the BM25/semantic weights used for fusion.
	Weights Weights

	// Normalization is the score normalization method used for fusion.
	Normalization NormalizationMethod

	// BM25Only indicates if vector search was skipped.
	BM25Only bool

	// MultiQueryDecomposed indicates if the query was decomposed into sub-queries.
	MultiQueryDecomposed bool

	// SubQueries contains the decomposed sub-queries (if MultiQueryDecomposed is true).
	SubQueries []string
}
