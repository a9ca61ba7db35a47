// Package ingest walks a collection's source directory, turning each
// file into registry-tracked chunks in the collection's BM25 and vector
// stores: scan -> detect/clean (content) -> chunk -> embed -> write.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsearchd/docsearchd/internal/async"
	"github.com/docsearchd/docsearchd/internal/chunk"
	"github.com/docsearchd/docsearchd/internal/content"
	docerrors "github.com/docsearchd/docsearchd/internal/errors"
	"github.com/docsearchd/docsearchd/internal/embed"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/scanner"
	"github.com/docsearchd/docsearchd/internal/store"
)

// OperationStatus is the lifecycle state of one ingestion run, scoped to
// a single collection and exposed through the REST/RPC/MCP surfaces.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusInProgress OperationStatus = "in_progress"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
	StatusCancelled  OperationStatus = "cancelled"
)

// FileError records a per-file failure that did not abort the whole
// operation.
type FileError struct {
	Path  string
	Error string
}

// Operation tracks one run of Orchestrator.Ingest against a collection.
type Operation struct {
	ID          string
	Collection  string
	Status      OperationStatus
	StartedAt   time.Time
	FinishedAt  time.Time
	FilesTotal  int
	FilesDone   int
	ChunksTotal int
	FileErrors  []FileError
	Err         error
}

// Orchestrator wires the content/chunk/embed/store/registry stages into
// one ingestion pipeline, one per running daemon.
type Orchestrator struct {
	scanner  *scanner.Scanner
	registry *registry.Registry
	stores   *store.Manager
	embedder embed.Embedder
	breaker  *docerrors.CircuitBreaker

	maxDocWorkers int

	mu  sync.Mutex
	ops map[string]*Operation
}

// Config configures an Orchestrator.
type Config struct {
	Scanner       *scanner.Scanner
	Registry      *registry.Registry
	Stores        *store.Manager
	Embedder      embed.Embedder
	MaxDocWorkers int // concurrency.max_concurrent_documents, default 8
}

// New creates an ingestion orchestrator.
func New(cfg Config) *Orchestrator {
	maxWorkers := cfg.MaxDocWorkers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	return &Orchestrator{
		scanner:       cfg.Scanner,
		registry:      cfg.Registry,
		stores:        cfg.Stores,
		embedder:      cfg.Embedder,
		breaker:       docerrors.NewCircuitBreaker("embedder", docerrors.WithMaxFailures(5)),
		maxDocWorkers: maxWorkers,
		ops:           make(map[string]*Operation),
	}
}

// Ingest walks rootDir and indexes every eligible file into collection,
// returning the operation that tracked the run. The scan itself runs
// synchronously; callers that want a background run should invoke this
// from their own goroutine and poll GetOperation.
func (o *Orchestrator) Ingest(ctx context.Context, collection, rootDir string, progress *async.IndexProgress) (*Operation, error) {
	op := &Operation{
		ID:         uuid.NewString(),
		Collection: collection,
		Status:     StatusInProgress,
		StartedAt:  time.Now(),
	}
	o.mu.Lock()
	o.ops[op.ID] = op
	o.mu.Unlock()

	if progress != nil {
		progress.SetStage(async.StageScanning, 0)
	}

	if _, err := o.registry.CreateCollection(collection, ""); err != nil {
		op.Status = StatusFailed
		op.Err = err
		return op, err
	}

	results, err := o.scanner.Scan(ctx, &scanner.ScanOptions{RootDir: rootDir, RespectGitignore: true})
	if err != nil {
		op.Status = StatusFailed
		op.Err = err
		return op, err
	}

	sem := make(chan struct{}, o.maxDocWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for res := range results {
		if res.Error != nil {
			mu.Lock()
			op.FileErrors = append(op.FileErrors, FileError{Error: res.Error.Error()})
			mu.Unlock()
			continue
		}
		file := res.File
		op.FilesTotal++

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			chunksIndexed, err := o.ingestFile(ctx, collection, file.AbsPath, file.Path)
			mu.Lock()
			defer mu.Unlock()
			op.FilesDone++
			op.ChunksTotal += chunksIndexed
			if err != nil {
				op.FileErrors = append(op.FileErrors, FileError{Path: file.Path, Error: err.Error()})
			}
			if progress != nil {
				progress.UpdateFiles(op.FilesDone)
			}
		}()
	}
	wg.Wait()

	if _, err := o.registry.BumpVersion(collection); err != nil {
		op.Status = StatusFailed
		op.Err = err
		return op, err
	}
	if err := o.stores.Persist(collection); err != nil {
		slog.Warn("persist collection stores failed", "collection", collection, "error", err)
	}

	op.Status = StatusCompleted
	op.FinishedAt = time.Now()
	if progress != nil {
		progress.SetReady()
	}
	return op, nil
}

// ingestFile runs one file through detect -> process -> chunk -> embed
// -> write, returning the chunk count written. A changed-but-unindexed
// document replaces its previous chunk set (I5); an unchanged document
// (same rev_id) is skipped entirely.
func (o *Orchestrator) ingestFile(ctx context.Context, collection, absPath, relPath string) (int, error) {
	raw, err := readFileLimited(absPath, 16*1024*1024+1)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", relPath, err)
	}

	ct := content.Detect(absPath, head(raw, 512))
	processed, err := content.Process(ct, raw)
	if err != nil {
		return 0, fmt.Errorf("process %s: %w", relPath, err)
	}
	if !content.ShouldIndex(ct, int64(len(raw)), processed.Cleaned) {
		return 0, nil
	}

	rev := contentRevision(processed.Cleaned)

	doc, err := o.registry.ResolveOrCreate(collection, absPath, relPath)
	if err != nil {
		return 0, err
	}
	docType := content.Classify(relPath, processed.Cleaned)
	if err := o.registry.SetMetadata(doc.DocId, processed.Title, docType); err != nil {
		return 0, err
	}

	decision, err := o.registry.ObserveRevision(doc.DocId, rev)
	if err != nil {
		return 0, err
	}
	if !decision.Reindex {
		return len(doc.ChunkIDs), nil
	}

	chunker := chunkerFor(ct)
	chunks, err := chunker.Chunk(ctx, &chunk.FileInput{
		Path:        relPath,
		ExternalID:  doc.DocId.ExternalID,
		Content:     []byte(processed.Cleaned),
		ContentType: chunkContentType(ct),
	})
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", relPath, err)
	}

	if len(decision.OldChunkIDs) > 0 {
		o.removeChunks(ctx, collection, decision.OldChunkIDs)
	}

	if len(chunks) == 0 {
		if _, err := o.registry.RecordChunks(doc.DocId, rev, nil, 0); err != nil {
			return 0, err
		}
		if err := o.registry.SaveChunkRecords(collection, decision.OldChunkIDs, nil); err != nil {
			return 0, err
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	bm25Docs := make([]*store.Document, len(chunks))
	records := make([]*registry.ChunkRecord, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		texts[i] = c.Content
		ids[i] = c.ID
		bm25Docs[i] = &store.Document{ID: c.ID, Content: c.Content}
		records[i] = &registry.ChunkRecord{
			ID:          c.ID,
			DocID:       doc.DocId,
			FilePath:    relPath,
			Content:     c.Content,
			Breadcrumb:  c.Breadcrumb,
			ContentType: string(c.ContentType),
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			DocTitle:    processed.Title,
			DocType:     docType,
			Tags:        processed.Tags,
			UpdatedAt:   now,
		}
	}

	vectors, err := o.embedChunks(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", relPath, err)
	}

	bm25Idx, err := o.stores.BM25(collection)
	if err != nil {
		return 0, err
	}
	if err := bm25Idx.Index(ctx, bm25Docs); err != nil {
		return 0, fmt.Errorf("bm25 index %s: %w", relPath, err)
	}

	if vectors != nil {
		vecStore, err := o.stores.Vector(collection, o.embedder.Dimensions())
		if err != nil {
			return 0, err
		}
		if err := vecStore.Add(ctx, ids, vectors); err != nil {
			return 0, fmt.Errorf("vector index %s: %w", relPath, err)
		}
	}

	if _, err := o.registry.RecordChunks(doc.DocId, rev, ids, uint32(len(ids))); err != nil {
		return 0, err
	}
	if err := o.registry.SaveChunkRecords(collection, decision.OldChunkIDs, records); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// IndexFile indexes or reindexes a single file into collection, outside of
// a full directory walk. Used by the index-one-file REST/RPC operations.
// Returns the number of chunks written; when the file's content is
// unchanged since the last index, nothing is rewritten and the number of
// chunks already on record for the document is returned.
func (o *Orchestrator) IndexFile(ctx context.Context, collection, absPath, relPath string) (int, error) {
	if _, err := o.registry.CreateCollection(collection, ""); err != nil {
		return 0, err
	}

	chunksIndexed, err := o.ingestFile(ctx, collection, absPath, relPath)
	if err != nil {
		return 0, err
	}

	if _, err := o.registry.BumpVersion(collection); err != nil {
		return chunksIndexed, err
	}
	if err := o.stores.Persist(collection); err != nil {
		slog.Warn("persist collection stores failed", "collection", collection, "error", err)
	}

	return chunksIndexed, nil
}

// DeleteDocument tombstones the document identified by externalID within
// collection, removing its chunks from the BM25 and vector indices.
func (o *Orchestrator) DeleteDocument(ctx context.Context, collection, externalID string) error {
	doc, err := o.registry.GetDocument(collection, externalID)
	if err != nil {
		return err
	}

	chunkIDs, err := o.registry.Tombstone(doc.DocId)
	if err != nil {
		return err
	}
	o.removeChunks(ctx, collection, chunkIDs)

	if _, err := o.registry.BumpVersion(collection); err != nil {
		return err
	}
	if err := o.stores.Persist(collection); err != nil {
		slog.Warn("persist collection stores failed", "collection", collection, "error", err)
	}
	return nil
}

// DeleteByPath tombstones the document at absPath within collection,
// deriving its external_id the same way ingestion does.
func (o *Orchestrator) DeleteByPath(ctx context.Context, collection, absPath string) error {
	return o.DeleteDocument(ctx, collection, registry.ExternalIDFor(absPath))
}

// embedChunks embeds a batch of chunk texts, short-circuiting to nil
// (BM25-only, PartialUpstream) when the embedder's circuit breaker is
// open rather than blocking the whole ingestion run on a dead embedder.
func (o *Orchestrator) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	if o.embedder == nil || !o.breaker.Allow() {
		return nil, nil
	}
	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		o.breaker.RecordFailure()
		return nil, nil
	}
	o.breaker.RecordSuccess()
	return vectors, nil
}

func (o *Orchestrator) removeChunks(ctx context.Context, collection string, chunkIDs []string) {
	if bm25Idx, err := o.stores.BM25(collection); err == nil {
		_ = bm25Idx.Delete(ctx, chunkIDs)
	}
	if o.embedder == nil {
		return
	}
	if vecStore, err := o.stores.Vector(collection, o.embedder.Dimensions()); err == nil {
		_ = vecStore.Delete(ctx, chunkIDs)
	}
}

// GetOperation returns a tracked ingestion operation by ID.
func (o *Orchestrator) GetOperation(id string) (*Operation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	op, ok := o.ops[id]
	return op, ok
}

func chunkerFor(ct content.ContentType) chunk.Chunker {
	if ct == content.ContentTypeMarkdown {
		return chunk.NewMarkdownChunker()
	}
	return chunk.NewTextChunker()
}

func chunkContentType(ct content.ContentType) chunk.ContentType {
	if ct == content.ContentTypeMarkdown {
		return chunk.ContentTypeMarkdown
	}
	return chunk.ContentTypeText
}

func head(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}

func readFileLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

// contentRevision hashes cleaned text into a RevID, used only to detect
// "content changed since last index" (I5) — not a cryptographic digest.
func contentRevision(cleaned string) registry.RevID {
	var h uint64 = 1469598103934665603 // FNV-1a offset basis
	for i := 0; i < len(cleaned); i++ {
		h ^= uint64(cleaned[i])
		h *= 1099511628211
	}
	return registry.RevID(h)
}
