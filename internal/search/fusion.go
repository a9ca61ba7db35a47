// Package search provides hybrid search functionality combining BM25 and
// semantic search. Results are fused by independently normalizing each
// list's scores, then combining them with a weighted sum.
package search

import (
	"math"
	"sort"

	"github.com/docsearchd/docsearchd/internal/store"
)

// NormalizationMethod selects how raw per-source scores are rescaled to
// [0,1] before fusion.
type NormalizationMethod string

const (
	NormalizeMinMax NormalizationMethod = "minmax"
	NormalizeZScore NormalizationMethod = "zscore"
)

// DefaultVectorWeight and DefaultBM25Weight are the fusion weights used
// when a collection has no override.
const (
	DefaultVectorWeight = 0.6
	DefaultBM25Weight   = 0.4
)

// minmaxEpsilon guards against a zero-width range when every score in a
// list is identical.
const minmaxEpsilon = 1e-9

// FusedResult represents a single result after fusion.
type FusedResult struct {
	ChunkID      string   // Chunk identifier
	FusedScore   float64  // w_bm25*bm25_normalized + w_vec*vector_normalized, in [0,1]
	BM25Score    float64  // Original BM25 score (preserved)
	BM25Rank     int      // Position in BM25 list (1-indexed, 0 if absent)
	VecScore     float64  // Original vector similarity score (preserved)
	VecRank      int      // Position in vector list (1-indexed, 0 if absent)
	InBothLists  bool     // Document appeared in both result lists
	MatchedTerms []string // BM25 matched terms (for highlighting)
}

// DefaultZScoreScale is the neutral sigmoid scale: sigmoid(z) applied
// unscaled.
const DefaultZScoreScale = 60

// Fusion combines BM25 and vector search results into one ranked list by
// normalizing each source independently and summing with configured
// weights. Scores are the actual normalized similarity, not a function
// of rank alone, so a single standout BM25 hit still outweighs a page
// of mediocre vector hits.
type Fusion struct {
	Method NormalizationMethod

	// ZScoreScale tunes sigmoid sharpness for NormalizeZScore. Values
	// below DefaultZScoreScale sharpen the curve, above it flatten it.
	// Unused by NormalizeMinMax.
	ZScoreScale int
}

// NewFusion creates a Fusion using min-max normalization.
func NewFusion() *Fusion {
	return &Fusion{Method: NormalizeMinMax}
}

// NewFusionWithMethod creates a Fusion using the given normalization
// method. An unrecognized method falls back to min-max.
func NewFusionWithMethod(method NormalizationMethod) *Fusion {
	if method != NormalizeMinMax && method != NormalizeZScore {
		method = NormalizeMinMax
	}
	return &Fusion{Method: method, ZScoreScale: DefaultZScoreScale}
}

// NewFusionWithZScoreScale creates a z-score Fusion with a custom sigmoid
// scale. A non-positive scale falls back to DefaultZScoreScale.
func NewFusionWithZScoreScale(scale int) *Fusion {
	if scale <= 0 {
		scale = DefaultZScoreScale
	}
	return &Fusion{Method: NormalizeZScore, ZScoreScale: scale}
}

// Fuse combines BM25 and vector results using the configured
// normalization and weights.
//
// Results are sorted by: FusedScore (desc) → InBothLists (true first) →
// BM25Score (desc) → ChunkID (asc).
func (f *Fusion) Fuse(
	bm25 []*store.BM25Result,
	vec []*store.VectorResult,
	weights Weights,
) []*FusedResult {
	if len(bm25) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	bm25Scores := make([]float64, len(bm25))
	for i, r := range bm25 {
		bm25Scores[i] = r.Score
	}
	vecScores := make([]float64, len(vec))
	for i, r := range vec {
		vecScores[i] = float64(r.Score)
	}

	bm25Norm := f.normalizeScores(bm25Scores)
	vecNorm := f.normalizeScores(vecScores)

	capacity := len(bm25) + len(vec)
	results := make(map[string]*FusedResult, capacity)

	for rank, r := range bm25 {
		res := f.getOrCreate(results, r.DocID)
		res.BM25Score = r.Score
		res.BM25Rank = rank + 1
		res.MatchedTerms = r.MatchedTerms
		res.FusedScore += weights.BM25 * bm25Norm[rank]
	}

	for rank, r := range vec {
		res := f.getOrCreate(results, r.ID)
		res.VecScore = float64(r.Score)
		res.VecRank = rank + 1
		res.FusedScore += weights.Semantic * vecNorm[rank]
		if res.BM25Rank > 0 {
			res.InBothLists = true
		}
	}

	sorted := f.toSortedSlice(results)
	return sorted
}

// normalizeScores rescales raw scores to [0,1] per the configured method.
// A single-element list always normalizes to 1.0.
func (f *Fusion) normalizeScores(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	if len(scores) == 1 {
		out[0] = 1.0
		return out
	}

	switch f.Method {
	case NormalizeZScore:
		scale := f.ZScoreScale
		if scale <= 0 {
			scale = DefaultZScoreScale
		}
		mean, stddev := meanStddev(scores)
		for i, s := range scores {
			z := 0.0
			if stddev > 0 {
				z = (s - mean) / stddev
			}
			out[i] = sigmoid(z * DefaultZScoreScale / float64(scale))
		}
	default: // NormalizeMinMax
		min, max := scores[0], scores[0]
		for _, s := range scores {
			if s < min {
				min = s
			}
			if s > max {
				max = s
			}
		}
		denom := math.Max(max-min, minmaxEpsilon)
		for i, s := range scores {
			out[i] = (s - min) / denom
		}
	}
	return out
}

func meanStddev(scores []float64) (mean, stddev float64) {
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	mean = sum / float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	return mean, math.Sqrt(variance)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// getOrCreate returns existing result or creates new one.
func (f *Fusion) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ChunkID: id}
	m[id] = r
	return r
}

// toSortedSlice converts map to slice and sorts by fused score with tie-breaking.
func (f *Fusion) toSortedSlice(m map[string]*FusedResult) []*FusedResult {
	results := make([]*FusedResult, 0, len(m))
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
//  2. In both lists (true before false)
//  3. Higher BM25 score (exact match indicator)
//  4. Lexicographically smaller ChunkID (deterministic)
func (f *Fusion) compare(a, b *FusedResult) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.ChunkID < b.ChunkID
}
