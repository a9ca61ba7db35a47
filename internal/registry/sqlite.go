package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver, WAL mode for durability
)

// SQLiteStore persists the registry's collections and documents for
// crash recovery. The Registry upserts each change synchronously through
// SaveCollection and SaveDocument; FlushLoop only checkpoints the WAL on
// a fixed interval.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a registry database at
// path, using WAL mode so the embedding daemon and an offline compaction
// tool can both read it concurrently.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	} else {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init registry schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		description TEXT,
		created_at INTEGER,
		version INTEGER
	);

	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT,
		external_id TEXT,
		doc_version INTEGER,
		absolute_path TEXT,
		relative_path TEXT,
		title TEXT,
		doc_type TEXT,
		tags TEXT,
		content_type TEXT,
		created_at INTEGER,
		updated_at INTEGER,
		rev_id INTEGER,
		tombstoned INTEGER,
		schema_version INTEGER,
		custom TEXT,
		chunk_ids TEXT,
		chunk_total INTEGER,
		PRIMARY KEY (collection, external_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveCollection upserts a collection's metadata row.
func (s *SQLiteStore) SaveCollection(c Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO collections (name, description, created_at, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET description=excluded.description, version=excluded.version
	`, c.Name, c.Description, c.CreatedAt.Unix(), c.Version)
	return err
}

// SaveDocument upserts a document's full registry record.
func (s *SQLiteStore) SaveDocument(d *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(d.TagList())
	if err != nil {
		return err
	}
	custom, err := json.Marshal(d.Custom)
	if err != nil {
		return err
	}
	chunkIDs, err := json.Marshal(d.ChunkIDs)
	if err != nil {
		return err
	}

	tombstoned := 0
	if d.Tombstoned {
		tombstoned = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO documents (
			collection, external_id, doc_version, absolute_path, relative_path,
			title, doc_type, tags, content_type, created_at, updated_at, rev_id,
			tombstoned, schema_version, custom, chunk_ids, chunk_total
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(collection, external_id) DO UPDATE SET
			doc_version=excluded.doc_version, title=excluded.title,
			doc_type=excluded.doc_type, tags=excluded.tags,
			content_type=excluded.content_type, updated_at=excluded.updated_at,
			rev_id=excluded.rev_id, tombstoned=excluded.tombstoned,
			custom=excluded.custom, chunk_ids=excluded.chunk_ids,
			chunk_total=excluded.chunk_total
	`,
		d.DocId.Collection, d.DocId.ExternalID, d.DocId.Version, d.AbsolutePath, d.RelativePath,
		d.Title, string(d.DocType), string(tags), d.ContentType, d.CreatedAt.Unix(), d.UpdatedAt.Unix(), d.RevID,
		tombstoned, d.SchemaVersion, string(custom), string(chunkIDs), d.ChunkTotal,
	)
	return err
}

// LoadAll reconstructs every collection and document row, used once at
// startup to reconcile registry state after an unclean shutdown.
func (s *SQLiteStore) LoadAll() (map[string]*Collection, map[string][]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := make(map[string]*Collection)
	rows, err := s.db.Query(`SELECT name, description, created_at, version FROM collections`)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var c Collection
		var createdAt int64
		if err := rows.Scan(&c.Name, &c.Description, &createdAt, &c.Version); err != nil {
			rows.Close()
			return nil, nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0)
		collections[c.Name] = &c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	documents := make(map[string][]*Document)
	docRows, err := s.db.Query(`
		SELECT collection, external_id, doc_version, absolute_path, relative_path,
		       title, doc_type, tags, content_type, created_at, updated_at, rev_id,
		       tombstoned, schema_version, custom, chunk_ids, chunk_total
		FROM documents
	`)
	if err != nil {
		return nil, nil, err
	}
	defer docRows.Close()

	for docRows.Next() {
		var d Document
		var tagsJSON, customJSON, chunkIDsJSON string
		var createdAt, updatedAt int64
		var tombstoned int
		var docType string
		if err := docRows.Scan(
			&d.DocId.Collection, &d.DocId.ExternalID, &d.DocId.Version, &d.AbsolutePath, &d.RelativePath,
			&d.Title, &docType, &tagsJSON, &d.ContentType, &createdAt, &updatedAt, &d.RevID,
			&tombstoned, &d.SchemaVersion, &customJSON, &chunkIDsJSON, &d.ChunkTotal,
		); err != nil {
			return nil, nil, err
		}

		d.DocType = DocType(docType)
		d.CreatedAt = time.Unix(createdAt, 0)
		d.UpdatedAt = time.Unix(updatedAt, 0)
		d.Tombstoned = tombstoned != 0

		var tagList []string
		_ = json.Unmarshal([]byte(tagsJSON), &tagList)
		d.Tags = make(map[string]struct{}, len(tagList))
		for _, t := range tagList {
			d.Tags[t] = struct{}{}
		}

		d.Custom = make(map[string]string)
		_ = json.Unmarshal([]byte(customJSON), &d.Custom)

		_ = json.Unmarshal([]byte(chunkIDsJSON), &d.ChunkIDs)

		documents[d.DocId.Collection] = append(documents[d.DocId.Collection], &d)
	}

	return collections, documents, docRows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// FlushLoop checkpoints the WAL file every interval until stop is
// closed. SaveDocument/SaveCollection already write synchronously, so
// this exists only to bound WAL growth on a long-running daemon; the
// caller starts it in a goroutine after New and stops it on shutdown.
func (s *SQLiteStore) FlushLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			_, _ = s.db.Exec(`PRAGMA wal_checkpoint(PASSIVE)`)
			s.mu.Unlock()
		}
	}
}
