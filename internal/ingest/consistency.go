package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/store"
)

// InconsistencyType categorizes a detected cross-store issue, per
// invariant I2: chunk_total must equal the BM25 and vector entry counts
// for a collection. With no third source-of-truth store between them,
// a chunk ID present in one but absent from the other is an orphan in
// whichever store still carries it.
type InconsistencyType int

const (
	InconsistencyOrphanBM25 InconsistencyType = iota
	InconsistencyOrphanVector
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanBM25:
		return "orphan_bm25"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is a single detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
	Details string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// ConsistencyChecker validates one collection's BM25 and vector stores:
// Check compares their chunk IDs with each other, and QuickCheck compares
// their counts with the registry's recorded chunk total.
type ConsistencyChecker struct {
	registry   *registry.Registry
	collection string
	bm25       store.BM25Index
	vector     store.VectorStore
}

// NewConsistencyChecker creates a checker for one collection's stores.
func NewConsistencyChecker(reg *registry.Registry, collection string, bm25 store.BM25Index, vector store.VectorStore) *ConsistencyChecker {
	return &ConsistencyChecker{registry: reg, collection: collection, bm25: bm25, vector: vector}
}

// Check scans both stores for orphaned and missing entries relative to
// what bm25/vector themselves report, catching drift a crash or partial
// write can leave behind.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	bm25IDs, err := c.bm25.AllIDs()
	if err != nil {
		slog.Warn("failed to get bm25 ids for consistency check", "error", err)
	}
	vectorIDs := c.vector.AllIDs()

	bm25Set := make(map[string]bool, len(bm25IDs))
	for _, id := range bm25IDs {
		bm25Set[id] = true
	}
	vectorSet := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
	}

	for _, id := range bm25IDs {
		if !vectorSet[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanBM25, ChunkID: id, Details: "present in bm25 but not vector store"})
		}
	}
	for _, id := range vectorIDs {
		if !bm25Set[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, ChunkID: id, Details: "present in vector store but not bm25"})
		}
	}

	return &CheckResult{
		Checked:         len(bm25Set) + len(vectorSet),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair deletes orphaned entries from whichever store carries them.
// There is no text to rebuild the missing side from, so the fix is
// always to drop the stray half rather than reconstruct it; a document
// that needs both sides back has to go through Ingest again.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanBM25, orphanVector []string

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanBM25:
			orphanBM25 = append(orphanBM25, issue.ChunkID)
		case InconsistencyOrphanVector:
			orphanVector = append(orphanVector, issue.ChunkID)
		}
	}

	if len(orphanBM25) > 0 {
		if err := c.bm25.Delete(ctx, orphanBM25); err != nil {
			slog.Warn("failed to delete orphan bm25 entries", "count", len(orphanBM25), "error", err)
		}
	}
	if len(orphanVector) > 0 {
		if err := c.vector.Delete(ctx, orphanVector); err != nil {
			slog.Warn("failed to delete orphan vector entries", "count", len(orphanVector), "error", err)
		}
	}
	return nil
}

// QuickCheck compares only counts: the registry's recorded chunk_total
// for the collection against the BM25 document count and vector count.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	stats, err := c.registry.Snapshot(c.collection)
	if err != nil {
		return false, err
	}

	bm25Stats := c.bm25.Stats()
	bm25Count := 0
	if bm25Stats != nil {
		bm25Count = bm25Stats.DocumentCount
	}
	vectorCount := c.vector.Count()

	consistent := stats.ChunkCount == bm25Count && stats.ChunkCount == vectorCount
	if !consistent {
		slog.Debug("collection chunk counts mismatch",
			"collection", c.collection, "registry", stats.ChunkCount, "bm25", bm25Count, "vector", vectorCount)
	}
	return consistent, nil
}
