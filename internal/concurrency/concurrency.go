// Package concurrency provides admission control for the daemon: read/write
// semaphores bounding how many searches and ingestions run at once, and a
// striped per-document lock so concurrent writers to the same document
// serialize without blocking writers to unrelated documents.
package concurrency

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrentSearches bounds simultaneous read (search) admissions.
const DefaultMaxConcurrentSearches = 100

// DefaultMaxConcurrentDocuments bounds simultaneous write (ingest) admissions.
const DefaultMaxConcurrentDocuments = 10

// Limiter gates concurrent search and ingest work with independent
// semaphores, mirroring the Engine's existing mutex-guarded access pattern
// but with an explicit, configurable ceiling instead of an implicit one.
type Limiter struct {
	reads  *semaphore.Weighted
	writes *semaphore.Weighted
}

// NewLimiter creates a Limiter with the given read/write admission ceilings.
// A ceiling of 0 falls back to its default.
func NewLimiter(maxReads, maxWrites int) *Limiter {
	if maxReads <= 0 {
		maxReads = DefaultMaxConcurrentSearches
	}
	if maxWrites <= 0 {
		maxWrites = DefaultMaxConcurrentDocuments
	}
	return &Limiter{
		reads:  semaphore.NewWeighted(int64(maxReads)),
		writes: semaphore.NewWeighted(int64(maxWrites)),
	}
}

// AcquireRead blocks until a read slot is available or ctx is done.
func (l *Limiter) AcquireRead(ctx context.Context) error {
	return l.reads.Acquire(ctx, 1)
}

// ReleaseRead returns a read slot.
func (l *Limiter) ReleaseRead() {
	l.reads.Release(1)
}

// AcquireWrite blocks until a write slot is available or ctx is done.
func (l *Limiter) AcquireWrite(ctx context.Context) error {
	return l.writes.Acquire(ctx, 1)
}

// ReleaseWrite returns a write slot.
func (l *Limiter) ReleaseWrite() {
	l.writes.Release(1)
}

// WithRead runs fn after acquiring a read slot, releasing it on return.
func (l *Limiter) WithRead(ctx context.Context, fn func() error) error {
	if err := l.AcquireRead(ctx); err != nil {
		return err
	}
	defer l.ReleaseRead()
	return fn()
}

// WithWrite runs fn after acquiring a write slot, releasing it on return.
func (l *Limiter) WithWrite(ctx context.Context, fn func() error) error {
	if err := l.AcquireWrite(ctx); err != nil {
		return err
	}
	defer l.ReleaseWrite()
	return fn()
}

// DocumentLocks is a striped set of per-document mutexes, so concurrent
// ingestion of two different documents never blocks on a shared lock while
// two writers to the same document still serialize.
type DocumentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDocumentLocks creates an empty striped lock table.
func NewDocumentLocks() *DocumentLocks {
	return &DocumentLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the advisory lock for docID, creating it on first use.
func (d *DocumentLocks) Lock(docID string) {
	d.mu.Lock()
	lock, ok := d.locks[docID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[docID] = lock
	}
	d.mu.Unlock()
	lock.Lock()
}

// Unlock releases the advisory lock for docID.
func (d *DocumentLocks) Unlock(docID string) {
	d.mu.Lock()
	lock, ok := d.locks[docID]
	d.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}

// WithLock runs fn while holding docID's lock.
func (d *DocumentLocks) WithLock(docID string, fn func()) {
	d.Lock(docID)
	defer d.Unlock(docID)
	fn()
}
