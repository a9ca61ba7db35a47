package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/docsearchd/docsearchd/internal/embed"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/store"
)

// Engine implements hybrid search combining BM25 and semantic search over
// one collection's stores and registry-tracked chunk records.
type Engine struct {
	bm25       store.BM25Index
	vector     store.VectorStore
	embedder   embed.Embedder
	registry   *registry.Registry
	collection string
	config     EngineConfig
	fusion     *Fusion
	classifier Classifier          // Optional query classifier for dynamic weights
	expander   *QueryExpander      // Code-aware query expansion for BM25
	reranker   Reranker            // Optional cross-encoder reranker
	multiQuery *MultiQuerySearcher // Optional multi-query decomposition
	expansion  ExpansionProvider   // Optional paraphrase expansion provider
	mu         sync.RWMutex
}

// Ensure Engine implements SearchEngine interface.
var _ SearchEngine = (*Engine)(nil)

// Ensure Engine also implements DetailedSearchEngine, the interface
// internal/gateway type-asserts against to recover query metadata.
var _ DetailedSearchEngine = (*Engine)(nil)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithClassifier sets an optional query classifier for dynamic weight selection.
// When set and no explicit weights are provided in SearchOptions, the classifier
// determines optimal BM25/semantic weights based on query characteristics.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithQueryExpansionProvider sets an optional paraphrase expansion provider.
// When set, the hybrid search path requests up to a handful of paraphrases
// of the query (bounded by a short deadline) and fuses results across every
// variant using consensus-weighted multi-query fusion.
func WithQueryExpansionProvider(p ExpansionProvider) EngineOption {
	return func(e *Engine) {
		e.expansion = p
	}
}

// WithQueryExpander sets an optional query expander for BM25 search.
// Expands queries with synonyms to bridge vocabulary gap between query
// and document phrasing. When set, BM25 search uses expanded query while
// vector search uses the original.
func WithQueryExpander(exp *QueryExpander) EngineOption {
	return func(e *Engine) {
		e.expander = exp
	}
}

// WithReranker sets an optional cross-encoder reranker for result refinement.
// When set, results are reranked after fusion but before enrichment.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithMultiQuerySearch enables multi-query decomposition for generic queries.
// Decomposes a generic query into multiple specific sub-queries, runs them
// in parallel, and fuses results. Chunks appearing in multiple sub-query
// results get boosted (consensus).
func WithMultiQuerySearch(decomposer QueryDecomposer) EngineOption {
	return func(e *Engine) {
		if decomposer == nil {
			return
		}
		searchFunc := func(ctx context.Context, query string, opts SearchOptions) ([]*FusedResult, error) {
			return e.singleSearch(ctx, query, opts)
		}
		e.multiQuery = NewMultiQuerySearcher(decomposer, searchFunc)
	}
}

// NewEngine creates a new hybrid search engine for one collection.
// Returns an error if any required dependency is nil.
func NewEngine(
	bm25 store.BM25Index,
	vector store.VectorStore,
	embedder embed.Embedder,
	reg *registry.Registry,
	collection string,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrNilDependency)
	}
	e := &Engine{
		bm25:       bm25,
		vector:     vector,
		embedder:   embedder,
		registry:   reg,
		collection: collection,
		config:     config,
		fusion:     &Fusion{Method: config.Normalization, ZScoreScale: config.ZScoreScale},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search executes a hybrid search combining BM25 and semantic search and
// returns ranked results. It is a thin wrapper over SearchDetailed for
// callers that don't need query metadata.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	resp, err := e.SearchDetailed(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SearchDetailed executes a search and returns both results and metadata
// describing how the pipeline ran: query normalization, expansion variants
// used, result source counts, and ranking method.
//
// If multi-query search is enabled and the query benefits from
// decomposition, this method delegates to MultiQuerySearcher which runs
// multiple sub-queries in parallel and fuses results with consensus boosting.
func (e *Engine) SearchDetailed(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()
	rawQuery := query
	query = normalizeQuery(query)
	if query == "" {
		return &SearchResponse{Meta: QueryMeta{RawQuery: rawQuery, ExecutionTime: time.Since(start)}}, nil
	}

	if e.multiQuery != nil && e.multiQuery.decomposer.ShouldDecompose(query) {
		return e.multiQuerySearch(ctx, query, opts, start)
	}

	if opts.Weights == nil && e.classifier != nil {
		_, weights, err := e.classifier.Classify(ctx, query)
		if err == nil {
			opts.Weights = &weights
		}
		// On error, fall through to applyDefaults which uses DefaultWeights
	}

	opts = e.applyDefaults(opts)

	if opts.BM25Only || e.embedder == nil {
		bm25Results, bm25Err := e.bm25.Search(ctx, query, opts.Limit*2)
		if bm25Err != nil {
			return nil, fmt.Errorf("BM25 search failed: %w", bm25Err)
		}
		fused := e.fuseResults(bm25Results, nil, &Weights{BM25: 1.0, Semantic: 0.0})
		return e.finishPipeline(ctx, finishInput{
			rawQuery: rawQuery, query: query, opts: opts, start: start,
			fused: fused, bm25Count: len(bm25Results), rankingMethod: "bm25_only",
		})
	}

	if opts.VectorOnly {
		embedding, err := e.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("query embedding failed: %w", err)
		}
		vecResults, err := e.vector.Search(ctx, embedding, opts.Limit*2)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
		fused := e.fuseResults(nil, vecResults, &Weights{BM25: 0.0, Semantic: 1.0})
		return e.finishPipeline(ctx, finishInput{
			rawQuery: rawQuery, query: query, opts: opts, start: start,
			fused: fused, vecCount: len(vecResults), rankingMethod: "vector_only",
		})
	}

	expansion := expandQuery(ctx, e.expansion, query, DefaultMaxQueryVariants, DefaultExpansionDeadline)
	if len(expansion.Variants) > 1 {
		return e.expandedSearch(ctx, rawQuery, query, opts, start, expansion)
	}

	bm25Results, vecResults, searchErr := e.parallelSearch(ctx, query, opts.Limit*2)
	partial := false
	if searchErr != nil {
		if bm25Results == nil && vecResults == nil {
			return nil, searchErr
		}
		partial = true // graceful degradation: continue with whichever list succeeded
	}

	fused := e.fuseResults(bm25Results, vecResults, opts.Weights)
	resp, err := e.finishPipeline(ctx, finishInput{
		rawQuery: rawQuery, query: query, opts: opts, start: start,
		fused: fused, bm25Count: len(bm25Results), vecCount: len(vecResults), rankingMethod: "hybrid",
	})
	if err != nil {
		return nil, err
	}
	resp.Meta.Partial = partial
	return resp, nil
}

// expandedSearch fans a query out across its paraphrase variants, fusing
// each variant's hybrid results independently and then combining them with
// consensus-weighted multi-query fusion.
func (e *Engine) expandedSearch(ctx context.Context, rawQuery, query string, opts SearchOptions, start time.Time, expansion QueryExpansionResult) (*SearchResponse, error) {
	subResults := make([]SubQueryResult, 0, len(expansion.Variants))
	var bm25Count, vecCount int

	for i, variant := range expansion.Variants {
		bm25Results, vecResults, searchErr := e.parallelSearch(ctx, variant, opts.Limit*2)
		if searchErr != nil && bm25Results == nil && vecResults == nil {
			continue
		}
		bm25Count += len(bm25Results)
		vecCount += len(vecResults)
		fused := e.fuseResults(bm25Results, vecResults, opts.Weights)
		weight := 1.0
		if i > 0 {
			weight = 0.8 // paraphrases carry slightly less weight than the original query
		}
		subResults = append(subResults, SubQueryResult{
			SubQuery: SubQuery{Query: variant, Weight: weight},
			Results:  fused,
		})
	}

	multiFused := NewMultiVariantFusion().FuseMultiQuery(subResults)
	fused := make([]*FusedResult, len(multiFused))
	for i, mf := range multiFused {
		fused[i] = &mf.FusedResult
	}

	resp, err := e.finishPipeline(ctx, finishInput{
		rawQuery: rawQuery, query: query, opts: opts, start: start,
		fused: fused, bm25Count: bm25Count, vecCount: vecCount, rankingMethod: "hybrid",
	})
	if err != nil {
		return nil, err
	}
	resp.Meta.QueryEnhancementApplied = true
	resp.Meta.Variants = expansion.Variants
	return resp, nil
}

// finishInput bundles the arguments shared by every pipeline tail.
type finishInput struct {
	rawQuery      string
	query         string
	opts          SearchOptions
	start         time.Time
	fused         []*FusedResult
	bm25Count     int
	vecCount      int
	rankingMethod string
}

// finishPipeline runs the common tail shared by every search branch: optional
// reranking, chunk enrichment, adjacent-context enrichment, dedup/diversify,
// similarity-threshold filtering, metadata filtering, truncation, and result
// formatting.
func (e *Engine) finishPipeline(ctx context.Context, in finishInput) (*SearchResponse, error) {
	fused := in.fused
	if in.opts.RerankResults && e.reranker != nil {
		fused = e.rerankResults(ctx, in.query, fused)
		in.rankingMethod += "+rerank"
	}

	enriched, err := e.enrichResults(fused)
	if err != nil {
		return nil, err
	}
	e.enrichResultsWithAdjacent(enriched, in.opts.AdjacentChunks, 5)
	e.attachCustomMetadata(enriched)

	deduped := e.dedupeAndDiversify(enriched)

	if in.opts.SimilarityThreshold > 0 {
		deduped = filterBySimilarity(deduped, in.opts.SimilarityThreshold)
	}

	filtered := ApplyFilters(deduped, in.opts)
	if len(filtered) > in.opts.Limit {
		filtered = filtered[:in.opts.Limit]
	}

	for _, r := range filtered {
		e.formatResult(r, in.opts.IncludeHighlights)
	}

	e.attachExplainData(filtered, in.query, in.opts, in.bm25Count, in.vecCount, nil)

	return &SearchResponse{
		Results: filtered,
		Meta: QueryMeta{
			RawQuery:          in.rawQuery,
			NormalizedQuery:   in.query,
			Limit:             in.opts.Limit,
			RankingMethod:     in.rankingMethod,
			BM25ResultCount:   in.bm25Count,
			VectorResultCount: in.vecCount,
			ExecutionTime:     time.Since(in.start),
		},
	}, nil
}

// filterBySimilarity drops results whose combined score falls below
// threshold. Applied before the metadata filter stage so limit-truncation
// downstream reflects only results that actually clear the bar.
func filterBySimilarity(results []*SearchResult, threshold float64) []*SearchResult {
	kept := results[:0:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// normalizeQuery trims surrounding whitespace and applies Unicode NFC
// normalization so visually identical queries with different codepoint
// sequences (e.g. combining vs. precomposed accents) hash and match the same.
func normalizeQuery(q string) string {
	return strings.TrimSpace(norm.NFC.String(q))
}

// attachExplainData populates ExplainData on the first result when opts.Explain is true.
func (e *Engine) attachExplainData(results []*SearchResult, query string, opts SearchOptions, bm25Count, vecCount int, subQueries []string) {
	if !opts.Explain || len(results) == 0 {
		return
	}

	results[0].Explain = &ExplainData{
		Query:                query,
		BM25ResultCount:      bm25Count,
		VectorResultCount:    vecCount,
		Weights:              *opts.Weights,
		Normalization:        e.fusion.Method,
		BM25Only:             opts.BM25Only,
		MultiQueryDecomposed: len(subQueries) > 0,
		SubQueries:           subQueries,
	}
}

// Delete removes chunks from both BM25 and vector indices. The registry
// remains the source of truth for chunk content; callers (the ingestion
// orchestrator) are responsible for tombstoning the owning document there.
func (e *Engine) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var hasOrphans bool

	if err := e.bm25.Delete(ctx, chunkIDs); err != nil {
		slog.Warn("BM25 delete failed, orphans will remain until repair",
			slog.String("error", err.Error()),
			slog.Int("count", len(chunkIDs)))
		hasOrphans = true
	}

	if e.vector != nil {
		if err := e.vector.Delete(ctx, chunkIDs); err != nil {
			slog.Warn("vector delete failed, orphans will remain until repair",
				slog.String("error", err.Error()),
				slog.Int("count", len(chunkIDs)))
			hasOrphans = true
		}
	}

	if hasOrphans {
		slog.Debug("delete completed with orphan remnants", slog.Int("chunks", len(chunkIDs)))
	}

	return nil
}

// Stats returns engine statistics.
func (e *Engine) Stats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &EngineStats{BM25Stats: e.bm25.Stats()}
	if e.vector != nil {
		stats.VectorCount = e.vector.Count()
	}
	return stats
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error

	if err := e.bm25.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.vector != nil {
		if err := e.vector.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// applyDefaults fills in default values for search options.
func (e *Engine) applyDefaults(opts SearchOptions) SearchOptions {
	if opts.Limit <= 0 {
		opts.Limit = e.config.DefaultLimit
	}
	if opts.Limit > e.config.MaxLimit {
		opts.Limit = e.config.MaxLimit
	}

	if opts.Filter == "" {
		opts.Filter = "all"
	}

	if opts.Weights == nil {
		w := e.config.DefaultWeights
		opts.Weights = &w
	}

	return opts
}

// parallelSearch executes BM25 and vector searches concurrently.
// Returns partial results on single-search failure (graceful degradation).
//
// BM25 uses an expanded query (with synonyms) while vector search uses the
// original query: embedding models handle semantic similarity natively, so
// expansion can hurt precision by adding noise, while BM25 benefits from it
// because it matches exact keywords.
func (e *Engine) parallelSearch(ctx context.Context, query string, limit int) (
	bm25Results []*store.BM25Result,
	vecResults []*store.VectorResult,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var bm25Err, vecErr error

	bm25Query := query
	if e.expander != nil {
		bm25Query = e.expander.Expand(query)
		if bm25Query != query {
			slog.Debug("query expanded for BM25",
				slog.String("original", query),
				slog.String("expanded", bm25Query))
		}
	}

	g.Go(func() error {
		var searchErr error
		bm25Results, searchErr = e.bm25.Search(gctx, bm25Query, limit)
		if searchErr != nil {
			bm25Err = searchErr
		}
		return nil
	})

	g.Go(func() error {
		embedding, embedErr := e.embedder.Embed(gctx, query)
		if embedErr != nil {
			vecErr = embedErr
			return nil
		}

		var searchErr error
		vecResults, searchErr = e.vector.Search(gctx, embedding, limit)
		if searchErr != nil {
			vecErr = searchErr
		}
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, waitErr
	}

	if bm25Err != nil && vecErr != nil {
		return nil, nil, errors.Join(bm25Err, vecErr)
	}

	if bm25Err != nil {
		err = bm25Err
	} else if vecErr != nil {
		err = vecErr
	}

	return bm25Results, vecResults, err
}

// fuseResults combines BM25 and vector results via normalize-then-weighted-sum scoring.
func (e *Engine) fuseResults(
	bm25Results []*store.BM25Result,
	vecResults []*store.VectorResult,
	weights *Weights,
) []*FusedResult {
	return e.fusion.Fuse(bm25Results, vecResults, *weights)
}

// enrichResults fetches full chunk content using batch retrieval for performance.
func (e *Engine) enrichResults(fused []*FusedResult) ([]*SearchResult, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	fusedByID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		fusedByID[f.ChunkID] = f
	}

	chunks, err := e.registry.GetChunkRecords(e.collection, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		f, ok := fusedByID[chunk.ID]
		if !ok {
			continue
		}

		result := &SearchResult{
			Chunk:        chunk,
			Score:        f.FusedScore,
			BM25Score:    f.BM25Score,
			VecScore:     f.VecScore,
			BM25Rank:     f.BM25Rank,
			VecRank:      f.VecRank,
			InBothLists:  f.InBothLists,
			Highlights:   e.calculateHighlights(chunk.Content, f.MatchedTerms),
			MatchedTerms: f.MatchedTerms,
			FromSignals: &FromSignals{
				BM25:   f.BM25Rank > 0,
				Vector: f.VecRank > 0,
			},
			Scores: Scores{
				BM25Raw:             f.BM25Score,
				VectorRaw:           f.VecScore,
				Fused:               f.FusedScore,
				NormalizationMethod: e.fusion.Method,
			},
		}

		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// enrichResultsWithAdjacent fetches adjacent chunks for context continuity.
// For each top-N result, retrieves chunks before/after from the same
// document. This improves "how does X work" queries by providing
// surrounding context.
func (e *Engine) enrichResultsWithAdjacent(results []*SearchResult, adjacentCount int, topN int) {
	if adjacentCount <= 0 || len(results) == 0 {
		return
	}

	enrichCount := len(results)
	if topN > 0 && enrichCount > topN {
		enrichCount = topN
	}

	docToResults := make(map[string][]*SearchResult)
	for i := 0; i < enrichCount; i++ {
		result := results[i]
		if result.Chunk == nil {
			continue
		}
		key := result.Chunk.DocID.ExternalID
		docToResults[key] = append(docToResults[key], result)
	}

	for _, docResults := range docToResults {
		docID := docResults[0].Chunk.DocID
		allChunks, err := e.registry.GetChunkRecordsByDoc(e.collection, docID)
		if err != nil {
			slog.Debug("failed to fetch chunks for adjacent context",
				slog.String("doc", docID.ExternalID),
				slog.String("error", err.Error()))
			continue
		}

		for _, result := range docResults {
			target := result.Chunk

			var before, after []*registry.ChunkRecord
			for _, c := range allChunks {
				if c.ID == target.ID {
					continue
				}
				if c.EndLine < target.StartLine {
					before = append(before, c)
				}
				if c.StartLine > target.EndLine {
					after = append(after, c)
				}
			}

			sort.Slice(before, func(i, j int) bool {
				return before[i].EndLine > before[j].EndLine
			})
			if len(before) > adjacentCount {
				before = before[:adjacentCount]
			}

			sort.Slice(after, func(i, j int) bool {
				return after[i].StartLine < after[j].StartLine
			})
			if len(after) > adjacentCount {
				after = after[:adjacentCount]
			}

			result.AdjacentContext.Before = before
			result.AdjacentContext.After = after
		}
	}
}

// attachCustomMetadata looks up each result's owning document once (batched
// by document) and copies its custom metadata onto the result.
func (e *Engine) attachCustomMetadata(results []*SearchResult) {
	docs := make(map[string]map[string]string)
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		extID := r.Chunk.DocID.ExternalID
		custom, ok := docs[extID]
		if !ok {
			doc, err := e.registry.GetDocument(e.collection, extID)
			if err != nil {
				docs[extID] = nil
				continue
			}
			custom = doc.Custom
			docs[extID] = custom
		}
		r.CustomMetadata = custom
	}
}

// rerankResults applies cross-encoder reranking to improve result relevance.
// Returns original results unchanged if reranker is nil or unavailable.
func (e *Engine) rerankResults(ctx context.Context, query string, fused []*FusedResult) []*FusedResult {
	if e.reranker == nil || len(fused) < 2 {
		return fused
	}

	if !e.reranker.Available(ctx) {
		slog.Debug("reranker unavailable, skipping reranking")
		return fused
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
	}

	chunks, err := e.registry.GetChunkRecords(e.collection, ids)
	if err != nil {
		slog.Warn("failed to fetch chunks for reranking, skipping", slog.String("error", err.Error()))
		return fused
	}

	contentByID := make(map[string]string, len(chunks))
	for _, c := range chunks {
		contentByID[c.ID] = c.Content
	}

	documents := make([]string, 0, len(fused))
	validFused := make([]*FusedResult, 0, len(fused))
	for _, f := range fused {
		content, ok := contentByID[f.ChunkID]
		if ok && content != "" {
			documents = append(documents, content)
			validFused = append(validFused, f)
		}
	}

	if len(documents) == 0 {
		return fused
	}

	reranked, err := e.reranker.Rerank(ctx, query, documents, 0)
	if err != nil {
		slog.Warn("reranking failed, using original order", slog.String("error", err.Error()))
		return fused
	}

	results := make([]*FusedResult, 0, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(validFused) {
			slog.Warn("invalid reranker index, skipping", slog.Int("index", rr.Index))
			continue
		}
		f := validFused[rr.Index]
		f.FusedScore = rr.Score
		results = append(results, f)
	}

	return results
}

// calculateHighlights finds text ranges for matched terms.
func (e *Engine) calculateHighlights(content string, matchedTerms []string) []Range {
	if len(matchedTerms) == 0 || len(content) == 0 {
		return []Range{}
	}

	const maxMatchesPerTerm = 10
	highlights := make([]Range, 0, len(matchedTerms)*3)

	lowerContent := strings.ToLower(content)

	for _, term := range matchedTerms {
		if len(term) == 0 {
			continue
		}

		lowerTerm := strings.ToLower(term)
		start := 0
		matchCount := 0

		for matchCount < maxMatchesPerTerm {
			idx := strings.Index(lowerContent[start:], lowerTerm)
			if idx == -1 {
				break
			}

			absStart := start + idx
			highlights = append(highlights, Range{
				Start: absStart,
				End:   absStart + len(term),
			})

			start = absStart + len(term)
			matchCount++
		}
	}

	if len(highlights) > 1 {
		sort.Slice(highlights, func(i, j int) bool {
			return highlights[i].Start < highlights[j].Start
		})
	}

	return highlights
}

// multiQuerySearch handles multi-query decomposition search: decomposes
// the query, runs sub-queries in parallel, and fuses results. This is a
// distinct, code-search-flavored decomposition feature (heading/raw-term/
// overview sub-queries), kept separate from the paraphrase expansion path.
func (e *Engine) multiQuerySearch(ctx context.Context, query string, opts SearchOptions, start time.Time) (*SearchResponse, error) {
	opts = e.applyDefaults(opts)

	var subQueryStrings []string
	if opts.Explain {
		subQueries := e.multiQuery.decomposer.Decompose(query)
		subQueryStrings = make([]string, len(subQueries))
		for i, sq := range subQueries {
			subQueryStrings[i] = sq.Query
		}
	}

	multiFused, err := e.multiQuery.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	fused := make([]*FusedResult, len(multiFused))
	for i, mf := range multiFused {
		fused[i] = &mf.FusedResult
	}

	resp, err := e.finishPipeline(ctx, finishInput{
		rawQuery: query, query: query, opts: opts, start: start,
		fused: fused, bm25Count: len(fused), vecCount: len(fused), rankingMethod: "hybrid",
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) > 0 && subQueryStrings != nil {
		resp.Results[0].Explain.SubQueries = subQueryStrings
	}

	slog.Debug("multi_query_search_complete",
		slog.String("query", query),
		slog.Int("results", len(resp.Results)),
		slog.Duration("duration", time.Since(start)))

	return resp, nil
}

// singleSearch executes a single hybrid search without multi-query decomposition.
// Used by MultiQuerySearcher for each sub-query. Returns FusedResult slice
// (pre-enrichment) for efficient multi-query fusion.
func (e *Engine) singleSearch(ctx context.Context, query string, opts SearchOptions) ([]*FusedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if opts.Weights == nil && e.classifier != nil {
		_, weights, err := e.classifier.Classify(ctx, query)
		if err == nil {
			opts.Weights = &weights
		}
	}

	opts = e.applyDefaults(opts)

	if opts.BM25Only || e.embedder == nil {
		bm25Results, err := e.bm25.Search(ctx, query, opts.Limit*2)
		if err != nil {
			return nil, fmt.Errorf("BM25 search failed: %w", err)
		}
		return e.fuseResults(bm25Results, nil, &Weights{BM25: 1.0, Semantic: 0.0}), nil
	}

	bm25Results, vecResults, _ := e.parallelSearch(ctx, query, opts.Limit*2)
	fused := e.fuseResults(bm25Results, vecResults, opts.Weights)

	if opts.Filter != "" && opts.Filter != "all" {
		enriched, err := e.enrichResults(fused)
		if err != nil {
			return fused, nil
		}
		filtered := ApplyFilters(enriched, opts)
		fusedFiltered := make([]*FusedResult, len(filtered))
		for i, r := range filtered {
			fusedFiltered[i] = &FusedResult{
				ChunkID:      r.Chunk.ID,
				FusedScore:   r.Score,
				BM25Score:    r.BM25Score,
				VecScore:     r.VecScore,
				InBothLists:  r.InBothLists,
				MatchedTerms: r.MatchedTerms,
			}
		}
		return fusedFiltered, nil
	}

	return fused, nil
}
