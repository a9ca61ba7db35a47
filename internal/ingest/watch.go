package ingest

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/watcher"
)

func docExternalID(absPath string) string {
	return registry.ExternalIDFor(absPath)
}

// Watch starts a HybridWatcher over rootDir and reindexes individual
// files as debounced change events arrive, instead of re-walking the
// whole collection.
func (o *Orchestrator) Watch(ctx context.Context, collection, rootDir string) error {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return err
	}
	if err := w.Start(ctx, rootDir); err != nil {
		return err
	}
	defer w.Stop()

	db := watcher.NewDebouncer(watcher.DefaultOptions().DebounceWindow)
	defer db.Stop()

	go func() {
		for evs := range w.Events() {
			for _, ev := range evs {
				db.Add(ev)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case events, ok := <-db.Output():
			if !ok {
				return nil
			}
			for _, ev := range events {
				o.handleWatchEvent(ctx, collection, rootDir, ev)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("watch error", "collection", collection, "error", err)
		}
	}
}

func (o *Orchestrator) handleWatchEvent(ctx context.Context, collection, rootDir string, ev watcher.FileEvent) {
	if ev.IsDir {
		return
	}
	absPath := filepath.Join(rootDir, ev.Path)

	switch ev.Operation {
	case watcher.OpDelete:
		doc, err := o.registry.GetDocument(collection, docExternalID(absPath))
		if err != nil {
			return
		}
		chunkIDs, err := o.registry.Tombstone(doc.DocId)
		if err != nil {
			return
		}
		o.removeChunks(ctx, collection, chunkIDs)
		if _, err := o.registry.BumpVersion(collection); err != nil {
			slog.Warn("bump version after delete failed", "collection", collection, "error", err)
		}
	default:
		if _, err := o.ingestFile(ctx, collection, absPath, ev.Path); err != nil {
			slog.Warn("reindex on change failed", "path", ev.Path, "error", err)
			return
		}
		if _, err := o.registry.BumpVersion(collection); err != nil {
			slog.Warn("bump version after reindex failed", "collection", collection, "error", err)
		}
	}
}
