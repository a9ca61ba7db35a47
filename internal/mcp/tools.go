package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"the search query to execute"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	DocType  string   `json:"doc_type,omitempty" jsonschema:"restrict to one document type: adr, blueprint, whitepaper, roadmap, review, generic"`
	Tags     []string `json:"tags,omitempty" jsonschema:"restrict to documents carrying every listed tag"`
	Scope    []string `json:"scope,omitempty" jsonschema:"filter by path prefixes (OR logic)"`
	Collection string `json:"collection,omitempty" jsonschema:"accepted but not used: the search always runs against the server's configured collection"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results"`
}

// SearchResultOutput defines a single search result with context-rich metadata
// explaining why it matched.
type SearchResultOutput struct {
	FilePath     string   `json:"file_path" jsonschema:"document path relative to the collection root"`
	DocTitle     string   `json:"doc_title,omitempty" jsonschema:"title of the containing document"`
	HeadingPath string   `json:"heading_path,omitempty" jsonschema:"section heading breadcrumb within the document"`
	Content      string   `json:"content" jsonschema:"matched content snippet"`
	Score        float64  `json:"score" jsonschema:"relevance score between 0 and 1"`
	DocType      string   `json:"doc_type,omitempty" jsonschema:"document type: adr, blueprint, whitepaper, roadmap, review, generic"`
	MatchReason  string   `json:"match_reason,omitempty" jsonschema:"human-readable explanation of why this result matched"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms that matched this result"`
	InBothLists  bool     `json:"in_both_lists,omitempty" jsonschema:"true if result appeared in both keyword and semantic search"`
}

// CollectionStatusInput defines the input schema for the collection_status tool.
type CollectionStatusInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"accepted but not used: the report always covers the server's configured collection"`
}

// CollectionStatusOutput defines the output schema for the collection_status tool.
type CollectionStatusOutput struct {
	Collection CollectionInfo    `json:"collection"`
	Stats      CollectionStats   `json:"stats"`
	Embeddings EmbeddingInfo     `json:"embeddings"`
	Indexing   *IndexingProgress `json:"indexing,omitempty"`
}

// IndexingProgress contains information about an ongoing ingestion run.
type IndexingProgress struct {
	Status         string  `json:"status"`
	Stage          string  `json:"stage,omitempty"`
	FilesTotal     int     `json:"files_total"`
	FilesProcessed int     `json:"files_processed"`
	ChunksIndexed  int     `json:"chunks_indexed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// CollectionInfo identifies the collection being reported on.
type CollectionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CollectionStats contains registry statistics about a collection.
type CollectionStats struct {
	DocumentCount  int    `json:"document_count"`
	ChunkCount     int    `json:"chunk_count"`
	TombstonedDocs int    `json:"tombstoned_docs"`
	Version        uint64 `json:"version"`
}

// EmbeddingInfo contains information about the embedding configuration.
type EmbeddingInfo struct {
	// Config values
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status"`

	// Runtime state - allows clients to adjust search strategy.
	ActualProvider   string `json:"actual_provider"`
	ActualModel      string `json:"actual_model"`
	Dimensions       int    `json:"dimensions"`
	IsFallbackActive bool   `json:"is_fallback_active"`
	SemanticQuality  string `json:"semantic_quality"`
}
