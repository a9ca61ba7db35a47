// Package wire defines the REST/JSON-RPC request and response shapes shared
// by the two protocol adapters, so both speak the same contract over their
// respective transports.
package wire

import (
	"time"

	"github.com/docsearchd/docsearchd/internal/search"
)

// SearchFilters narrows a search request to one or more collections and/or
// document attributes.
type SearchFilters struct {
	CollectionName  string    `json:"collection_name,omitempty"`
	CollectionNames []string  `json:"collection_names,omitempty"`
	DocumentType    string    `json:"document_type,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAfter    *time.Time `json:"created_after,omitempty"`
	CreatedBefore   *time.Time `json:"created_before,omitempty"`
}

// SearchRequest is the wire shape for a search call across REST and JSON-RPC.
type SearchRequest struct {
	Query               string        `json:"query"`
	Limit               int           `json:"limit,omitempty"`
	Filters             SearchFilters `json:"filters,omitempty"`
	SearchType          string        `json:"search_type,omitempty"` // "hybrid" | "bm25_only" | "vector_only"
	IncludeMetadata     bool          `json:"include_metadata,omitempty"`
	IncludeHighlights   bool          `json:"include_highlights,omitempty"`
	IncludeEmbeddings   bool          `json:"include_embeddings,omitempty"`
	SimilarityThreshold *float64      `json:"similarity_threshold,omitempty"`
	RerankResults       bool          `json:"rerank_results,omitempty"`
}

// ToSearchOptions converts a wire request into engine-facing SearchOptions.
func (r SearchRequest) ToSearchOptions() search.SearchOptions {
	opts := search.SearchOptions{
		Limit:             r.Limit,
		DocType:           r.Filters.DocumentType,
		Tags:              r.Filters.Tags,
		CreatedAfter:      r.Filters.CreatedAfter,
		CreatedBefore:     r.Filters.CreatedBefore,
		IncludeHighlights: r.IncludeHighlights,
		RerankResults:     r.RerankResults,
	}
	switch r.SearchType {
	case "bm25_only":
		opts.BM25Only = true
	case "vector_only":
		opts.VectorOnly = true
	}
	if r.SimilarityThreshold != nil {
		opts.SimilarityThreshold = *r.SimilarityThreshold
	}
	return opts
}

// Collections returns the collections a request names, preferring the plural
// form, falling back to the singular, empty meaning "every collection".
func (r SearchRequest) Collections() []string {
	if len(r.Filters.CollectionNames) > 0 {
		return r.Filters.CollectionNames
	}
	if r.Filters.CollectionName != "" {
		return []string{r.Filters.CollectionName}
	}
	return nil
}

// Scores mirrors search.Scores on the wire.
type Scores struct {
	BM25Raw   float64 `json:"bm25_raw"`
	VectorRaw float64 `json:"vector_raw"`
	Fused     float64 `json:"fused"`
}

// FromSignals mirrors search.FromSignals on the wire.
type FromSignals struct {
	BM25           bool     `json:"bm25"`
	Vector         bool     `json:"vector"`
	QueryExpansion bool     `json:"query_expansion"`
	Variants       []string `json:"variants,omitempty"`
}

// SearchHit is the wire shape for a single search result.
type SearchHit struct {
	DocID          string            `json:"doc_id"`
	ChunkID        string            `json:"chunk_id"`
	DocumentID     string            `json:"document_id"`
	URI            string            `json:"uri"`
	Title          string            `json:"title"`
	DocumentPath   string            `json:"document_path"`
	Content        string            `json:"content,omitempty"`
	Snippet        string            `json:"snippet"`
	SectionPath    string            `json:"section_path,omitempty"`
	HeadingPath    string            `json:"heading_path,omitempty"`
	Scores         Scores            `json:"scores"`
	FinalScore     float64           `json:"final_score"`
	FromSignals    FromSignals       `json:"from_signals"`
	URL            string            `json:"url,omitempty"`
	Collection     string            `json:"collection"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// ToSearchHit converts an engine result into its wire representation.
// collection is the collection the result was retrieved from (single-
// collection deployments pass the configured name).
func ToSearchHit(r *search.SearchResult, collection string, includeMetadata, includeEmbeddings bool) SearchHit {
	hit := SearchHit{
		ChunkID:     r.Chunk.ID,
		DocumentID:  r.Chunk.DocID.ExternalID,
		DocID:       r.Chunk.DocID.String(),
		URI:         r.URL,
		Title:       r.Chunk.DocTitle,
		DocumentPath: r.Chunk.FilePath,
		Snippet:     r.Snippet,
		SectionPath: r.SectionPath,
		HeadingPath: r.Chunk.Breadcrumb,
		FinalScore:  r.Score,
		URL:         r.URL,
		Collection:  collection,
		Scores: Scores{
			BM25Raw:   r.Scores.BM25Raw,
			VectorRaw: r.Scores.VectorRaw,
			Fused:     r.Scores.Fused,
		},
	}
	if r.FromSignals != nil {
		hit.FromSignals = FromSignals{
			BM25:           r.FromSignals.BM25,
			Vector:         r.FromSignals.Vector,
			QueryExpansion: r.FromSignals.QueryExpansion,
			Variants:       r.FromSignals.Variants,
		}
	}
	if includeMetadata {
		hit.Content = r.Chunk.Content
		hit.CustomMetadata = r.CustomMetadata
	}
	// includeEmbeddings has no effect: chunk embeddings live in the vector
	// store, not the registry-backed ChunkRecord, so there is nothing to
	// attach here; the flag is accepted for wire compatibility only.
	_ = includeEmbeddings
	return hit
}

// QueryInfo describes how a query was processed.
type QueryInfo struct {
	Raw      string `json:"raw"`
	Normalized string `json:"normalized"`
	Enhanced bool   `json:"enhanced"`
	Limit    int    `json:"limit"`
}

// SearchMetadata is the wire shape for search_metadata.
type SearchMetadata struct {
	Query                   QueryInfo `json:"query"`
	ExecutionTimeMS         int64     `json:"execution_time_ms"`
	QueryEnhancementApplied bool      `json:"query_enhancement_applied"`
	RankingMethod           string    `json:"ranking_method"`
	ResultSources           map[string]int `json:"result_sources"`
	DebugInfo               map[string]interface{} `json:"debug_info,omitempty"`
}

// SearchResponse is the wire shape returned by both protocol adapters.
type SearchResponse struct {
	Results        []SearchHit    `json:"results"`
	TotalCount     int            `json:"total_count,omitempty"`
	SearchMetadata SearchMetadata `json:"search_metadata"`
}

// ToSearchResponse converts an engine SearchResponse into its wire shape.
func ToSearchResponse(resp *search.SearchResponse, collection string, includeMetadata, includeEmbeddings bool) SearchResponse {
	hits := make([]SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil || r.Chunk == nil {
			continue
		}
		hits = append(hits, ToSearchHit(r, collection, includeMetadata, includeEmbeddings))
	}

	debugInfo := map[string]interface{}{}
	if resp.Meta.Partial {
		debugInfo["partial"] = true
	}
	if len(debugInfo) == 0 {
		debugInfo = nil
	}

	return SearchResponse{
		Results:    hits,
		TotalCount: len(hits),
		SearchMetadata: SearchMetadata{
			Query: QueryInfo{
				Raw:        resp.Meta.RawQuery,
				Normalized: resp.Meta.NormalizedQuery,
				Enhanced:   resp.Meta.QueryEnhancementApplied,
				Limit:      resp.Meta.Limit,
			},
			ExecutionTimeMS:         resp.Meta.ExecutionTime.Milliseconds(),
			QueryEnhancementApplied: resp.Meta.QueryEnhancementApplied,
			RankingMethod:           resp.Meta.RankingMethod,
			ResultSources: map[string]int{
				"bm25":   resp.Meta.BM25ResultCount,
				"vector": resp.Meta.VectorResultCount,
			},
			DebugInfo: debugInfo,
		},
	}
}
