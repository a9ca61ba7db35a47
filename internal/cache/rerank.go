package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RerankCache caches pairwise (query, chunk) rerank scores so repeated
// queries against a stable chunk set skip the scoring step entirely.
// Entries are evicted by document prefix on update rather than waiting for
// LRU pressure, since a stale pair score is worse than a cache miss.
type RerankCache struct {
	scores *lru.Cache[string, float64]
}

// NewRerankCache creates a rerank cache holding up to size pair scores.
func NewRerankCache(size int) (*RerankCache, error) {
	if size <= 0 {
		size = DefaultRerankCacheSize
	}
	c, err := lru.New[string, float64](size)
	if err != nil {
		return nil, fmt.Errorf("create rerank cache: %w", err)
	}
	return &RerankCache{scores: c}, nil
}

// Get returns the cached score for a (query, chunkID) pair.
func (rc *RerankCache) Get(query, chunkID string) (float64, bool) {
	return rc.scores.Get(pairKey(query, chunkID))
}

// Set stores the score for a (query, chunkID) pair.
func (rc *RerankCache) Set(query, chunkID string, score float64) {
	rc.scores.Add(pairKey(query, chunkID), score)
}

// EvictDocument drops every cached pair score for chunks belonging to docID.
// Chunk IDs are formatted "<external_id>:<index>", so a prefix match on
// docID+":" catches every chunk of that document without tracking a
// separate reverse index.
func (rc *RerankCache) EvictDocument(docID string) {
	prefix := docID + ":"
	for _, key := range rc.scores.Keys() {
		if hasChunkPrefix(key, prefix) {
			rc.scores.Remove(key)
		}
	}
}

// Len returns the number of cached pair scores.
func (rc *RerankCache) Len() int {
	return rc.scores.Len()
}

func pairKey(query, chunkID string) string {
	return query + "\x00" + chunkID
}

func hasChunkPrefix(key, prefix string) bool {
	idx := indexOfNull(key)
	if idx < 0 {
		return false
	}
	chunkID := key[idx+1:]
	return len(chunkID) >= len(prefix) && chunkID[:len(prefix)] == prefix
}

func indexOfNull(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return -1
}
