// Package registry tracks the stable identity of ingested documents: their
// DocId, content revision, chunk inventory, and tombstones, plus the
// named collections they belong to. It is the system of record C7 (the
// ingestion orchestrator) consults before writing to the vector and BM25
// indices, and the source of the collection version C9 uses to
// invalidate cached search responses.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DocId identifies a document within a collection. external_id is a
// stable hash of the absolute source path; version increments on every
// successful reindex that observes a new content revision.
type DocId struct {
	Collection string
	ExternalID string
	Version    uint64
}

// String renders a DocId as "<collection>/<external_id>@<version>", used
// as a cache/log key, not as a wire format.
func (d DocId) String() string {
	return fmt.Sprintf("%s/%s@%d", d.Collection, d.ExternalID, d.Version)
}

// key identifies a document independent of its version, for the
// registry's internal path/doc index.
func (d DocId) key() string {
	return d.Collection + "\x00" + d.ExternalID
}

// ExternalIDFor computes the stable external_id for an absolute path:
// a hex-encoded SHA-256 digest, per the chunk_id invariant I6.
func ExternalIDFor(absolutePath string) string {
	sum := sha256.Sum256([]byte(absolutePath))
	return hex.EncodeToString(sum[:])
}

// RevID is a 64-bit content hash of the post-processed text, used only
// to detect "needs reindex" (I5); it carries no cryptographic guarantee.
type RevID uint64

// DocType classifies a document's purpose.
type DocType string

const (
	DocTypeADR        DocType = "adr"
	DocTypeBlueprint  DocType = "blueprint"
	DocTypeWhitepaper DocType = "whitepaper"
	DocTypeRoadmap    DocType = "roadmap"
	DocTypeReview     DocType = "review"
	DocTypeGeneric    DocType = "generic"
)

// Document is the registry's record for one ingested file.
type Document struct {
	DocId          DocId
	AbsolutePath   string
	RelativePath   string
	Title          string
	DocType        DocType
	Tags           map[string]struct{}
	ContentType    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	RevID          RevID
	Tombstoned     bool
	SchemaVersion  uint16
	Custom         map[string]string
	ChunkIDs       []string
	ChunkTotal     uint32
}

// TagList returns the document's tags in no particular order.
func (d *Document) TagList() []string {
	out := make([]string, 0, len(d.Tags))
	for t := range d.Tags {
		out = append(out, t)
	}
	return out
}

// CurrentSchemaVersion is the schema version stamped on new documents.
const CurrentSchemaVersion uint16 = 1

// ReindexDecision is the result of observing a new content revision
// against the registry's stored rev_id for a document.
type ReindexDecision struct {
	// Reindex is true when the content revision changed and the
	// document's previous chunks must be tombstoned and replaced.
	Reindex bool

	// OldChunkIDs are the chunk IDs to tombstone in C4/C5 before the
	// new chunks are written. Populated only when Reindex is true and
	// the document previously had chunks.
	OldChunkIDs []string
}

// Collection groups documents under a name; version is bumped atomically
// on every successful upsert or delete batch and is the invalidation key
// for the result cache (C9).
type Collection struct {
	Name          string
	Description   string
	DocumentCount int
	ChunkCount    int
	CreatedAt     time.Time
	Version       uint64
}

// Stats is a point-in-time snapshot of a collection's registry state.
type Stats struct {
	Collection    string
	DocumentCount int
	ChunkCount    int
	TombstonedDocs int
	Version       uint64
}

// ChunkRecord is the full retrievable content for one chunk, indexed by
// ID alongside the BM25/vector entries that share that ID. The search
// pipeline looks these up to turn a bare chunk_id ranking into a
// SearchResult carrying text, position, and document context.
type ChunkRecord struct {
	ID          string
	DocID       DocId
	FilePath    string
	Content     string
	Breadcrumb  string
	ContentType string
	StartLine   int
	EndLine     int
	DocTitle    string
	DocType     DocType
	Tags        []string
	UpdatedAt   time.Time
}
