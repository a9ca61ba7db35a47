package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	docerrors "github.com/docsearchd/docsearchd/internal/errors"
)

// Registry is the C6 Document Registry: an in-memory map of DocId ->
// Document per collection, plus a path index, backed optionally by a
// Store for crash-recovery persistence (see sqlite.go).
//
// It is guarded by one RWMutex per collection rather than a single
// global lock, so that writes to one collection never block reads of
// another (C10's per-collection concurrency model).
type Registry struct {
	mu          sync.RWMutex // guards collections map itself
	collections map[string]*collectionState

	store Store // optional persistence, written synchronously; may be nil
}

type collectionState struct {
	mu        sync.RWMutex
	meta      Collection
	documents map[string]*Document   // keyed by DocId.key()
	byPath    map[string]string      // absolutePath -> DocId.key()
	chunks    map[string]*ChunkRecord // keyed by chunk ID
}

// Store persists registry state; the Registry calls it synchronously as
// collections and documents change. See sqlite.go for the SQLite-backed
// implementation.
type Store interface {
	SaveCollection(c Collection) error
	SaveDocument(d *Document) error
	LoadAll() (map[string]*Collection, map[string][]*Document, error)
	Close() error
}

// New creates an empty registry. If store is non-nil, it is used to
// reconcile state on startup (LoadAll), and later changes to collections
// and documents are written to it synchronously.
func New(store Store) (*Registry, error) {
	r := &Registry{
		collections: make(map[string]*collectionState),
		store:       store,
	}
	if store != nil {
		colls, docs, err := store.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("reconcile registry from store: %w", err)
		}
		for name, c := range colls {
			cs := &collectionState{
				meta:      *c,
				documents: make(map[string]*Document),
				byPath:    make(map[string]string),
				chunks:    make(map[string]*ChunkRecord),
			}
			for _, d := range docs[name] {
				cs.documents[d.DocId.key()] = d
				cs.byPath[d.AbsolutePath] = d.DocId.key()
			}
			r.collections[name] = cs
		}
	}
	return r, nil
}

// CreateCollection registers a new, empty collection. Idempotent: an
// existing collection of the same name is left untouched.
func (r *Registry) CreateCollection(name, description string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cs, ok := r.collections[name]; ok {
		cs.mu.RLock()
		meta := cs.meta
		cs.mu.RUnlock()
		return &meta, nil
	}

	cs := &collectionState{
		meta: Collection{
			Name:        name,
			Description: description,
			CreatedAt:   time.Now(),
			Version:     0,
		},
		documents: make(map[string]*Document),
		byPath:    make(map[string]string),
		chunks:    make(map[string]*ChunkRecord),
	}
	r.collections[name] = cs

	if r.store != nil {
		if err := r.store.SaveCollection(cs.meta); err != nil {
			return nil, docerrors.Wrap(docerrors.ErrCodeRegistryIO, err)
		}
	}
	return &cs.meta, nil
}

// DeleteCollection removes a collection's registry state. The caller is
// responsible for destroying the collection's C4/C5 stores first; the
// registry only destroys a collection's store when empty, per the
// Collection lifecycle.
func (r *Registry) DeleteCollection(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs, ok := r.collections[name]
	if !ok {
		return docerrors.NotFoundError(docerrors.ErrCodeCollectionNotFound, fmt.Sprintf("collection %q not found", name))
	}
	cs.mu.RLock()
	empty := len(cs.documents) == 0
	cs.mu.RUnlock()
	if !empty {
		return docerrors.ConflictError(fmt.Sprintf("collection %q is not empty", name))
	}
	delete(r.collections, name)
	return nil
}

// ListCollections returns a snapshot of all known collections.
func (r *Registry) ListCollections() []Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Collection, 0, len(r.collections))
	for _, cs := range r.collections {
		cs.mu.RLock()
		out = append(out, cs.meta)
		cs.mu.RUnlock()
	}
	return out
}

// Ping reports whether the registry's lock can be acquired, satisfying
// api.Pinger for the REST/JSON-RPC health endpoints. It never fails on
// its own; a real failure would come from a deadlock, which Ping cannot
// detect, so this is a liveness check, not a correctness one.
func (r *Registry) Ping(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return nil
}

// GetCollection returns a snapshot of a single collection.
func (r *Registry) GetCollection(name string) (*Collection, error) {
	cs, err := r.state(name)
	if err != nil {
		return nil, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	meta := cs.meta
	return &meta, nil
}

// ListDocuments returns every non-tombstoned document in a collection, in
// no particular order.
func (r *Registry) ListDocuments(collection string) ([]*Document, error) {
	cs, err := r.state(collection)
	if err != nil {
		return nil, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make([]*Document, 0, len(cs.documents))
	for _, d := range cs.documents {
		if d.Tombstoned {
			continue
		}
		doc := *d
		out = append(out, &doc)
	}
	return out, nil
}

// Version returns a collection's current version, used as the C9 cache
// invalidation key.
func (r *Registry) Version(name string) (uint64, error) {
	cs, err := r.state(name)
	if err != nil {
		return 0, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.meta.Version, nil
}

func (r *Registry) state(name string) (*collectionState, error) {
	r.mu.RLock()
	cs, ok := r.collections[name]
	r.mu.RUnlock()
	if !ok {
		return nil, docerrors.NotFoundError(docerrors.ErrCodeCollectionNotFound, fmt.Sprintf("collection %q not found", name))
	}
	return cs, nil
}

// ResolveOrCreate returns the DocId for absolutePath in collection,
// creating a fresh Document at version 0 if this path has not been seen
// before.
func (r *Registry) ResolveOrCreate(collection, absolutePath, relativePath string) (*Document, error) {
	cs, err := r.state(collection)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if key, ok := cs.byPath[absolutePath]; ok {
		return cs.documents[key], nil
	}

	doc := &Document{
		DocId: DocId{
			Collection: collection,
			ExternalID: ExternalIDFor(absolutePath),
			Version:    0,
		},
		AbsolutePath:  absolutePath,
		RelativePath:  relativePath,
		DocType:       DocTypeGeneric,
		Tags:          make(map[string]struct{}),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
		SchemaVersion: CurrentSchemaVersion,
		Custom:        make(map[string]string),
	}
	cs.documents[doc.DocId.key()] = doc
	cs.byPath[absolutePath] = doc.DocId.key()
	return doc, nil
}

// SetMetadata updates a document's title and doc type, fields the
// ingestion orchestrator derives from content processing after
// ResolveOrCreate has already placed the document in the registry.
func (r *Registry) SetMetadata(docID DocId, title string, docType DocType) error {
	cs, err := r.state(docID.Collection)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	doc, ok := cs.documents[docID.key()]
	if !ok {
		return docerrors.NotFoundError(docerrors.ErrCodeDocumentNotFound, "document not found")
	}
	if doc.Title == "" && title != "" {
		doc.Title = title
	}
	doc.DocType = docType
	return nil
}

// ObserveRevision compares newRev against the document's stored rev_id
// (I5): unchanged content is a Skip, a changed rev_id is a Reindex
// carrying the chunk IDs that must be tombstoned.
func (r *Registry) ObserveRevision(docID DocId, newRev RevID) (ReindexDecision, error) {
	cs, err := r.state(docID.Collection)
	if err != nil {
		return ReindexDecision{}, err
	}

	cs.mu.RLock()
	doc, ok := cs.documents[docID.key()]
	cs.mu.RUnlock()
	if !ok {
		return ReindexDecision{}, docerrors.NotFoundError(docerrors.ErrCodeDocumentNotFound, "document not found")
	}

	if !doc.Tombstoned && doc.RevID == newRev && len(doc.ChunkIDs) > 0 {
		return ReindexDecision{Reindex: false}, nil
	}
	return ReindexDecision{Reindex: true, OldChunkIDs: append([]string(nil), doc.ChunkIDs...)}, nil
}

// RecordChunks commits a document's new chunk inventory after a
// successful dual-write into C4/C5, bumping DocId.Version and the
// document's rev_id bookkeeping (I2, I6).
func (r *Registry) RecordChunks(docID DocId, newRev RevID, chunkIDs []string, chunkTotal uint32) (*Document, error) {
	cs, err := r.state(docID.Collection)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	doc, ok := cs.documents[docID.key()]
	if !ok {
		return nil, docerrors.NotFoundError(docerrors.ErrCodeDocumentNotFound, "document not found")
	}

	doc.DocId.Version++
	doc.RevID = newRev
	doc.ChunkIDs = append([]string(nil), chunkIDs...)
	doc.ChunkTotal = chunkTotal
	doc.Tombstoned = false
	doc.UpdatedAt = time.Now()

	if r.store != nil {
		if err := r.store.SaveDocument(doc); err != nil {
			return nil, docerrors.Wrap(docerrors.ErrCodeRegistryIO, err)
		}
	}
	return doc, nil
}

// Tombstone logically deletes a document (I3), returning the chunk IDs
// that must now be removed from C4/C5.
func (r *Registry) Tombstone(docID DocId) ([]string, error) {
	cs, err := r.state(docID.Collection)
	if err != nil {
		return nil, err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	doc, ok := cs.documents[docID.key()]
	if !ok {
		return nil, docerrors.NotFoundError(docerrors.ErrCodeDocumentNotFound, "document not found")
	}

	old := append([]string(nil), doc.ChunkIDs...)
	doc.Tombstoned = true
	doc.ChunkIDs = nil
	doc.ChunkTotal = 0
	doc.UpdatedAt = time.Now()
	for _, id := range old {
		delete(cs.chunks, id)
	}

	if r.store != nil {
		if err := r.store.SaveDocument(doc); err != nil {
			return nil, docerrors.Wrap(docerrors.ErrCodeRegistryIO, err)
		}
	}
	return old, nil
}

// SaveChunkRecords replaces a document's chunk records after a
// successful RecordChunks call: oldIDs are dropped from the per-chunk
// index and the new records take their place, so a bare chunk_id
// ranking from C4/C5 can be turned back into retrievable text.
func (r *Registry) SaveChunkRecords(collection string, oldIDs []string, records []*ChunkRecord) error {
	cs, err := r.state(collection)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, id := range oldIDs {
		delete(cs.chunks, id)
	}
	for _, rec := range records {
		cs.chunks[rec.ID] = rec
	}
	return nil
}

// GetChunkRecord looks up one chunk's full content by ID.
func (r *Registry) GetChunkRecord(collection, id string) (*ChunkRecord, error) {
	cs, err := r.state(collection)
	if err != nil {
		return nil, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	rec, ok := cs.chunks[id]
	if !ok {
		return nil, docerrors.NotFoundError(docerrors.ErrCodeDocumentNotFound, "chunk not found")
	}
	return rec, nil
}

// GetChunkRecords batch-resolves chunk IDs, skipping any not found
// rather than failing the whole lookup (a stale ranking entry is
// dropped, not fatal).
func (r *Registry) GetChunkRecords(collection string, ids []string) ([]*ChunkRecord, error) {
	cs, err := r.state(collection)
	if err != nil {
		return nil, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	out := make([]*ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := cs.chunks[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetChunkRecordsByDoc returns every chunk currently recorded for one
// document, for adjacent-chunk context lookups.
func (r *Registry) GetChunkRecordsByDoc(collection string, docID DocId) ([]*ChunkRecord, error) {
	cs, err := r.state(collection)
	if err != nil {
		return nil, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	var out []*ChunkRecord
	for _, rec := range cs.chunks {
		if rec.DocID.ExternalID == docID.ExternalID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetDocument looks up a document by DocId within its collection.
func (r *Registry) GetDocument(collection, externalID string) (*Document, error) {
	cs, err := r.state(collection)
	if err != nil {
		return nil, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	key := DocId{Collection: collection, ExternalID: externalID}.key()
	doc, ok := cs.documents[key]
	if !ok {
		return nil, docerrors.NotFoundError(docerrors.ErrCodeDocumentNotFound, "document not found")
	}
	return doc, nil
}

// BumpVersion atomically increments a collection's version, the
// invalidation key the result cache checks on every lookup (I4). Called
// at the end of an ingestion batch, and after each single-file index or
// removal.
func (r *Registry) BumpVersion(collection string) (uint64, error) {
	cs, err := r.state(collection)
	if err != nil {
		return 0, err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.meta.Version++
	cs.meta.DocumentCount = len(cs.documents)
	chunkCount := 0
	for _, d := range cs.documents {
		if !d.Tombstoned {
			chunkCount += int(d.ChunkTotal)
		}
	}
	cs.meta.ChunkCount = chunkCount

	if r.store != nil {
		if err := r.store.SaveCollection(cs.meta); err != nil {
			return 0, docerrors.Wrap(docerrors.ErrCodeRegistryIO, err)
		}
	}
	return cs.meta.Version, nil
}

// Snapshot returns point-in-time stats for a collection.
func (r *Registry) Snapshot(collection string) (Stats, error) {
	cs, err := r.state(collection)
	if err != nil {
		return Stats{}, err
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	tombstoned := 0
	chunks := 0
	for _, d := range cs.documents {
		if d.Tombstoned {
			tombstoned++
		} else {
			chunks += int(d.ChunkTotal)
		}
	}
	return Stats{
		Collection:     collection,
		DocumentCount:  len(cs.documents),
		ChunkCount:     chunks,
		TombstonedDocs: tombstoned,
		Version:        cs.meta.Version,
	}, nil
}
