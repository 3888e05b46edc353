package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/docforge/docq-go/internal/rag"
)

// SQLiteIndex is a rag.VectorStore that keeps the full index in memory for
// search and writes every entry through to a local SQLite database so the
// index survives restarts. Reads are always served from memory; the database
// is only touched on Upsert, Delete, and open.
type SQLiteIndex struct {
	// mu serializes writers so memory and disk always apply changes in the
	// same order. Searches take no part in this lock; the memory index has
	// its own read locking.
	mu sync.Mutex
	// mem holds the in-memory working set and performs all searches.
	mem *MemoryIndex
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the local vector index database.
// It resolves to ~/.docq/index.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("index: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docq")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("index: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "index.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteIndex at the given path, runs the
// schema migration, and loads all persisted entries into memory in their
// original insertion order.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	ix := &SQLiteIndex{mem: NewMemoryIndex(), db: db}
	if err := ix.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ix.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ix, nil
}

// migrate creates the schema if it does not already exist.
func (ix *SQLiteIndex) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chunks (
    id          TEXT    PRIMARY KEY,
    source      TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    metadata    TEXT    NOT NULL DEFAULT '{}',
    embedding   BLOB    NOT NULL,
    rank        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_rank ON chunks (rank);
`
	if _, err := ix.db.Exec(ddl); err != nil {
		return fmt.Errorf("index: migrate: %w", err)
	}
	return nil
}

// load reads every persisted entry, oldest insertion first, and replays it
// into the in-memory index so ranks match the persisted order.
func (ix *SQLiteIndex) load() error {
	const q = `SELECT id, source, content, metadata, embedding FROM chunks ORDER BY rank ASC`
	rows, err := ix.db.Query(q)
	if err != nil {
		return fmt.Errorf("index: load: %w", err)
	}
	defer rows.Close()

	ctx := context.Background()
	for rows.Next() {
		var doc rag.Document
		var metaJSON string
		var blob []byte
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &metaJSON, &blob); err != nil {
			return fmt.Errorf("index: load scan: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return fmt.Errorf("index: load metadata for %s: %w", doc.ID, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("index: load vector for %s: %w", doc.ID, err)
		}
		if err := ix.mem.Upsert(ctx, []rag.Document{doc}, [][]float32{vec}); err != nil {
			return fmt.Errorf("index: load replay for %s: %w", doc.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("index: load rows: %w", err)
	}
	return nil
}

// Upsert validates the batch, persists it in a single transaction, and only
// then applies it to the in-memory index — a failed persist never leaves
// memory ahead of disk. Replaced IDs keep their original rank so reload order
// matches the in-memory tie-break order.
func (ix *SQLiteIndex) Upsert(ctx context.Context, docs []rag.Document, embeddings [][]float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.mem.validate(docs, embeddings); err != nil {
		return err
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin upsert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `
INSERT INTO chunks (id, source, content, metadata, embedding, rank)
VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(rank), -1) + 1 FROM chunks))
ON CONFLICT(id) DO UPDATE SET
    source    = excluded.source,
    content   = excluded.content,
    metadata  = excluded.metadata,
    embedding = excluded.embedding`

	for i, doc := range docs {
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("index: marshal metadata for %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q, doc.ID, doc.Source, doc.Content, string(metaJSON), encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("index: persist %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit upsert: %w", err)
	}

	// Pre-validated above, so this cannot fail and diverge from disk.
	return ix.mem.Upsert(ctx, docs, embeddings)
}

// Search delegates to the in-memory index.
func (ix *SQLiteIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]rag.Document, error) {
	return ix.mem.Search(ctx, queryEmbedding, topK)
}

// Delete removes entries from disk in a single transaction, then from memory,
// so a failed disk delete never leaves memory missing entries that would
// reappear on reload.
func (ix *SQLiteIndex) Delete(ctx context.Context, ids []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin delete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("index: delete %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit delete: %w", err)
	}

	return ix.mem.Delete(ctx, ids)
}

// DeleteDocument removes every chunk of the given document from memory and
// disk. The chunk IDs are resolved from the in-memory working set, which
// mirrors the persisted rows.
func (ix *SQLiteIndex) DeleteDocument(ctx context.Context, documentID string) error {
	ids := ix.mem.documentChunkIDs(documentID)
	if len(ids) == 0 {
		return nil
	}
	return ix.Delete(ctx, ids)
}

// Len returns the number of entries currently in the index.
func (ix *SQLiteIndex) Len() int { return ix.mem.Len() }

// Dim returns the pinned dimensionality, or 0 for an empty index.
func (ix *SQLiteIndex) Dim() int { return ix.mem.Dim() }

// Ping verifies the database connection for readiness probes.
func (ix *SQLiteIndex) Ping(ctx context.Context) error {
	if err := ix.db.PingContext(ctx); err != nil {
		return fmt.Errorf("index: ping: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (ix *SQLiteIndex) Close() error {
	if err := ix.db.Close(); err != nil {
		return fmt.Errorf("index: close: %w", err)
	}
	return nil
}

// encodeVector packs a float32 slice as little-endian bytes for BLOB storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding blob of %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
