package store

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Manager owns one BM25 index and one vector store per collection,
// creating them lazily and persisting them under a per-collection
// subdirectory of the data root. It is the C4/C5 entry point the
// ingestion and query pipelines use instead of talking to bleve/hnsw
// directly.
type Manager struct {
	dataDir    string
	bm25Cfg    BM25Config
	bm25Backend string

	mu    sync.RWMutex
	bm25  map[string]BM25Index
	vecs  map[string]VectorStore
	vecCfg map[string]VectorStoreConfig
}

// NewManager creates a collection store manager rooted at dataDir.
func NewManager(dataDir string, bm25Cfg BM25Config, bm25Backend string) *Manager {
	return &Manager{
		dataDir:     dataDir,
		bm25Cfg:     bm25Cfg,
		bm25Backend: bm25Backend,
		bm25:        make(map[string]BM25Index),
		vecs:        make(map[string]VectorStore),
		vecCfg:      make(map[string]VectorStoreConfig),
	}
}

func (m *Manager) collectionDir(collection string) string {
	return filepath.Join(m.dataDir, "collections", collection)
}

// BM25 returns (creating if necessary) the BM25 index for a collection.
func (m *Manager) BM25(collection string) (BM25Index, error) {
	m.mu.RLock()
	if idx, ok := m.bm25[collection]; ok {
		m.mu.RUnlock()
		return idx, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.bm25[collection]; ok {
		return idx, nil
	}

	basePath := filepath.Join(m.collectionDir(collection), "bm25")
	idx, err := NewBM25IndexWithBackend(basePath, m.bm25Cfg, m.bm25Backend)
	if err != nil {
		return nil, fmt.Errorf("open bm25 index for collection %q: %w", collection, err)
	}
	m.bm25[collection] = idx
	return idx, nil
}

// Vector returns (creating if necessary) the vector store for a
// collection, sized to dimensions. Once created, the dimensionality is
// fixed for the collection's lifetime (ErrDimensionMismatch on drift).
func (m *Manager) Vector(collection string, dimensions int) (VectorStore, error) {
	m.mu.RLock()
	if vs, ok := m.vecs[collection]; ok {
		m.mu.RUnlock()
		return vs, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if vs, ok := m.vecs[collection]; ok {
		return vs, nil
	}

	cfg := DefaultVectorStoreConfig(dimensions)
	vs, err := NewHNSWStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open vector store for collection %q: %w", collection, err)
	}

	path := filepath.Join(m.collectionDir(collection), "vectors.hnsw")
	if fileExists(path) {
		if err := vs.Load(path); err != nil {
			return nil, fmt.Errorf("load vector store for collection %q: %w", collection, err)
		}
	}

	m.vecs[collection] = vs
	m.vecCfg[collection] = cfg
	return vs, nil
}

// Persist flushes both indexes for a collection to disk.
func (m *Manager) Persist(collection string) error {
	m.mu.RLock()
	idx, hasBM25 := m.bm25[collection]
	vs, hasVec := m.vecs[collection]
	m.mu.RUnlock()

	if hasBM25 {
		if err := idx.Save(filepath.Join(m.collectionDir(collection), "bm25")); err != nil {
			return fmt.Errorf("persist bm25 index for collection %q: %w", collection, err)
		}
	}
	if hasVec {
		if err := vs.Save(filepath.Join(m.collectionDir(collection), "vectors.hnsw")); err != nil {
			return fmt.Errorf("persist vector store for collection %q: %w", collection, err)
		}
	}
	return nil
}

// Drop closes and removes a collection's in-memory indexes (the on-disk
// data is removed by the caller as part of collection deletion).
func (m *Manager) Drop(collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.bm25[collection]; ok {
		_ = idx.Close()
		delete(m.bm25, collection)
	}
	if vs, ok := m.vecs[collection]; ok {
		_ = vs.Close()
		delete(m.vecs, collection)
	}
	delete(m.vecCfg, collection)
	return nil
}

// Close shuts down every open collection index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, idx := range m.bm25 {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, vs := range m.vecs {
		if err := vs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
