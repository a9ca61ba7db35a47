package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(nil)
	require.NoError(t, err)
	_, err = r.CreateCollection("docs", "test collection")
	require.NoError(t, err)
	return r
}

func TestResolveOrCreate_IsIdempotentPerPath(t *testing.T) {
	r := newTestRegistry(t)

	doc1, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)
	doc2, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)

	assert.Equal(t, doc1.DocId, doc2.DocId)
	assert.Equal(t, ExternalIDFor("/abs/a.md"), doc1.DocId.ExternalID)
}

func TestSetMetadata_SetsTitleOnceAndAlwaysUpdatesDocType(t *testing.T) {
	r := newTestRegistry(t)
	doc, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)

	require.NoError(t, r.SetMetadata(doc.DocId, "First Title", DocTypeADR))
	got, err := r.GetDocument("docs", doc.DocId.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, "First Title", got.Title)
	assert.Equal(t, DocTypeADR, got.DocType)

	// A later call with a different title must not overwrite an
	// already-set title, but doc type always tracks the latest classify.
	require.NoError(t, r.SetMetadata(doc.DocId, "Second Title", DocTypeRoadmap))
	got, err = r.GetDocument("docs", doc.DocId.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, "First Title", got.Title)
	assert.Equal(t, DocTypeRoadmap, got.DocType)
}

func TestSetMetadata_UnknownDocumentReturnsNotFound(t *testing.T) {
	r := newTestRegistry(t)
	err := r.SetMetadata(DocId{Collection: "docs", ExternalID: "missing"}, "x", DocTypeGeneric)
	assert.Error(t, err)
}

func TestObserveRevision_SkipsUnchangedContent(t *testing.T) {
	r := newTestRegistry(t)
	doc, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)

	_, err = r.RecordChunks(doc.DocId, RevID(42), []string{"id:00000"}, 1)
	require.NoError(t, err)

	decision, err := r.ObserveRevision(doc.DocId, RevID(42))
	require.NoError(t, err)
	assert.False(t, decision.Reindex)

	decision, err = r.ObserveRevision(doc.DocId, RevID(43))
	require.NoError(t, err)
	assert.True(t, decision.Reindex)
	assert.Equal(t, []string{"id:00000"}, decision.OldChunkIDs)
}

func TestTombstone_ClearsChunksAndReturnsOld(t *testing.T) {
	r := newTestRegistry(t)
	doc, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)
	_, err = r.RecordChunks(doc.DocId, RevID(1), []string{"id:00000", "id:00001"}, 2)
	require.NoError(t, err)

	old, err := r.Tombstone(doc.DocId)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id:00000", "id:00001"}, old)

	got, err := r.GetDocument("docs", doc.DocId.ExternalID)
	require.NoError(t, err)
	assert.True(t, got.Tombstoned)
	assert.Empty(t, got.ChunkIDs)
}

func TestChunkRecords_SaveGetAndTombstoneCleanup(t *testing.T) {
	r := newTestRegistry(t)
	doc, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)

	records := []*ChunkRecord{
		{ID: "a:00000", DocID: doc.DocId, FilePath: "a.md", Content: "first chunk"},
		{ID: "a:00001", DocID: doc.DocId, FilePath: "a.md", Content: "second chunk"},
	}
	_, err = r.RecordChunks(doc.DocId, RevID(1), []string{"a:00000", "a:00001"}, 2)
	require.NoError(t, err)
	require.NoError(t, r.SaveChunkRecords("docs", nil, records))

	got, err := r.GetChunkRecord("docs", "a:00000")
	require.NoError(t, err)
	assert.Equal(t, "first chunk", got.Content)

	batch, err := r.GetChunkRecords("docs", []string{"a:00000", "a:00001", "missing:00000"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = r.Tombstone(doc.DocId)
	require.NoError(t, err)
	_, err = r.GetChunkRecord("docs", "a:00000")
	assert.Error(t, err)
}

func TestBumpVersion_RecomputesCollectionStats(t *testing.T) {
	r := newTestRegistry(t)
	doc, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)
	_, err = r.RecordChunks(doc.DocId, RevID(1), []string{"id:00000"}, 1)
	require.NoError(t, err)

	v, err := r.BumpVersion("docs")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)

	stats, err := r.Snapshot("docs")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.ChunkCount)
}

func TestListDocuments_ExcludesTombstoned(t *testing.T) {
	r := newTestRegistry(t)

	doc1, err := r.ResolveOrCreate("docs", "/abs/a.md", "a.md")
	require.NoError(t, err)
	doc2, err := r.ResolveOrCreate("docs", "/abs/b.md", "b.md")
	require.NoError(t, err)

	_, err = r.Tombstone(doc2.DocId)
	require.NoError(t, err)

	docs, err := r.ListDocuments("docs")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc1.DocId, docs[0].DocId)
}
