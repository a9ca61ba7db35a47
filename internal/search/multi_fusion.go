// Package search provides hybrid search functionality combining BM25 and semantic search.
package search

import (
	"sort"
)

// SubQueryResult represents results from a single sub-query execution.
// Used by MultiVariantFusion to combine results from multiple sub-queries.
type SubQueryResult struct {
	// SubQuery is the sub-query that produced these results.
	SubQuery SubQuery

	// Results are the search results for this sub-query.
	// These are pre-fused results from the hybrid BM25+vector search.
	Results []*FusedResult
}

// MultiFusedResult extends FusedResult with multi-query fusion metadata.
type MultiFusedResult struct {
	FusedResult

	// SubQueryHits is the number of sub-queries this document appeared in.
	// Higher values indicate consensus across multiple query formulations.
	SubQueryHits int
}

// DefaultConsensusBoost is the per-additional-hit multiplier applied when
// a chunk surfaces under more than one query variant.
const DefaultConsensusBoost = 0.1

// MultiVariantFusion combines the already-normalized FusedResult lists
// produced per decomposed sub-query into one ranked list, weighting each
// variant's contribution and rewarding chunks that multiple variants
// agree on.
//
// Algorithm:
//
//	multi_score(d) = (Σ sub_weight_i * fused_score_i(d)) * (1 + boost * (hits - 1))
type MultiVariantFusion struct {
	ConsensusBoost float64 // Boost per additional sub-query hit (default: 0.1)
}

// NewMultiVariantFusion creates a multi-query fusion with default parameters.
func NewMultiVariantFusion() *MultiVariantFusion {
	return &MultiVariantFusion{ConsensusBoost: DefaultConsensusBoost}
}

// NewMultiVariantFusionWithBoost creates a multi-query fusion with a
// custom consensus boost. A negative boost falls back to the default.
func NewMultiVariantFusionWithBoost(consensusBoost float64) *MultiVariantFusion {
	if consensusBoost < 0 {
		consensusBoost = DefaultConsensusBoost
	}
	return &MultiVariantFusion{ConsensusBoost: consensusBoost}
}

// FuseMultiQuery combines results from multiple sub-queries/variants.
//
// The algorithm:
// 1. Aggregate fused scores across all sub-queries (weighted by sub-query weight)
// 2. Track how many sub-queries each document appears in (consensus count)
// 3. Apply consensus boost: documents in multiple sub-queries get boosted
// 4. Sort by final score, with tie-breaking by consensus and original scores
// 5. Normalize scores to 0-1 range
func (f *MultiVariantFusion) FuseMultiQuery(subResults []SubQueryResult) []*MultiFusedResult {
	if len(subResults) == 0 {
		return []*MultiFusedResult{}
	}

	scores := make(map[string]*MultiFusedResult)

	for _, sr := range subResults {
		weight := sr.SubQuery.Weight
		if weight <= 0 {
			weight = 1.0
		}

		for _, result := range sr.Results {
			mr := f.getOrCreate(scores, result.ChunkID)

			mr.FusedScore += weight * result.FusedScore
			mr.SubQueryHits++

			if result.BM25Score > mr.BM25Score {
				mr.BM25Score = result.BM25Score
				mr.MatchedTerms = result.MatchedTerms
			}
			if result.VecScore > mr.VecScore {
				mr.VecScore = result.VecScore
			}
			if result.InBothLists {
				mr.InBothLists = true
			}
			if mr.BM25Rank == 0 || result.BM25Rank < mr.BM25Rank {
				mr.BM25Rank = result.BM25Rank
			}
			if mr.VecRank == 0 || result.VecRank < mr.VecRank {
				mr.VecRank = result.VecRank
			}
		}
	}

	for _, mr := range scores {
		if mr.SubQueryHits > 1 {
			mr.FusedScore *= 1 + f.ConsensusBoost*float64(mr.SubQueryHits-1)
		}
	}

	results := f.toSortedSlice(scores)
	f.normalize(results)

	return results
}

// getOrCreate returns existing result or creates new one.
func (f *MultiVariantFusion) getOrCreate(m map[string]*MultiFusedResult, id string) *MultiFusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &MultiFusedResult{
		FusedResult: FusedResult{ChunkID: id},
	}
	m[id] = r
	return r
}

// toSortedSlice converts map to slice and sorts by multi-variant score with tie-breaking.
func (f *MultiVariantFusion) toSortedSlice(m map[string]*MultiFusedResult) []*MultiFusedResult {
	results := make([]*MultiFusedResult, 0, len(m))
	for _, r := range m {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	return results
}

// compare implements deterministic comparison for sorting.
// Returns true if a should rank before b.
//
// Priority:
//  1. Higher fused score
//  2. More sub-query hits (consensus)
//  3. In both BM25/vector lists
//  4. Higher BM25 score (exact match indicator)
//  5. Lexicographically smaller ChunkID (deterministic)
func (f *MultiVariantFusion) compare(a, b *MultiFusedResult) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if a.SubQueryHits != b.SubQueryHits {
		return a.SubQueryHits > b.SubQueryHits
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.ChunkID < b.ChunkID
}

// normalize scales all fused scores to 0-1 range.
// Uses the maximum score as the reference (becomes 1.0).
func (f *MultiVariantFusion) normalize(results []*MultiFusedResult) {
	if len(results) == 0 {
		return
	}

	maxScore := results[0].FusedScore
	if maxScore == 0 {
		return
	}

	for _, r := range results {
		r.FusedScore = r.FusedScore / maxScore
	}
}
