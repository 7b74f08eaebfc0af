package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/empire-labs/chad/internal/domain"
)

// SQLiteStore keeps the collection in a single local database file.
// The active generation is cached in memory for searching; the cache is
// rebuilt after every swap. Reads are lock-free relative to ingestion
// except for the pointer exchange.
type SQLiteStore struct {
	db         *sql.DB
	collection string
	dimensions int

	mu       sync.RWMutex
	snapshot []Entry
	closed   bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS generations (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	dimensions INTEGER NOT NULL,
	active     INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	generation_id INTEGER NOT NULL REFERENCES generations(id) ON DELETE CASCADE,
	chunk_id      TEXT NOT NULL,
	document_id   TEXT NOT NULL,
	source        TEXT NOT NULL,
	position      INTEGER NOT NULL,
	content       TEXT NOT NULL,
	embedding     BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_generation ON chunks(generation_id);
`

// OpenSQLite opens (creating if needed) the collection database at
// path. If an active generation exists with a different dimensionality
// than configured, opening fails: the stored vectors were produced by a
// different embedding model.
func OpenSQLite(path, collection string, dimensions int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open collection db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collection schema: %w", err)
	}

	s := &SQLiteStore{db: db, collection: collection, dimensions: dimensions}

	var storedDims int
	err = db.QueryRow(
		`SELECT dimensions FROM generations WHERE collection = ? AND active = 1`,
		collection,
	).Scan(&storedDims)
	switch {
	case err == sql.ErrNoRows:
		// Fresh collection; nothing to verify.
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("failed to inspect collection: %w", err)
	case storedDims != dimensions:
		db.Close()
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeConfiguration,
			fmt.Sprintf("collection %q was built with %d-dimension embeddings, configured model produces %d", collection, storedDims, dimensions),
			domain.ErrDimensionMismatch,
		)
	}

	if err := s.reloadSnapshot(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Replace writes all entries as a new generation, flips the active
// pointer in the same transaction, then prunes superseded generations.
func (s *SQLiteStore) Replace(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if len(e.Embedding) != s.dimensions {
			return domain.NewDomainErrorWithCause(
				domain.ErrCodeConfiguration,
				fmt.Sprintf("chunk %s has %d-dimension embedding, collection expects %d", e.Chunk.ID, len(e.Embedding), s.dimensions),
				domain.ErrDimensionMismatch,
			)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin generation write: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO generations (collection, dimensions, active, created_at) VALUES (?, ?, 0, ?)`,
		s.collection, s.dimensions, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}
	genID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generation id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (generation_id, chunk_id, document_id, source, position, content, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			genID, e.Chunk.ID, e.Chunk.DocumentID, e.Chunk.Source, e.Chunk.Index,
			e.Chunk.Content, encodeVector(normalize(e.Embedding)),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", e.Chunk.ID, err)
		}
	}

	// The swap and the write commit together: readers see either the
	// old complete generation or the new complete one.
	if _, err := tx.ExecContext(ctx,
		`UPDATE generations SET active = CASE WHEN id = ? THEN 1 ELSE 0 END WHERE collection = ?`,
		genID, s.collection,
	); err != nil {
		return fmt.Errorf("failed to activate generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}

	// Prune outside the swap transaction; stale generations are
	// unreachable once the pointer moved.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM generations WHERE collection = ? AND active = 0`, s.collection,
	); err != nil {
		return fmt.Errorf("failed to prune old generations: %w", err)
	}

	return s.reloadSnapshot(ctx)
}

// Search scans the cached active generation. Results come back ordered
// by descending similarity; equal scores keep insertion order.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(query) != s.dimensions {
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeConfiguration,
			fmt.Sprintf("query vector has %d dimensions, collection expects %d", len(query), s.dimensions),
			domain.ErrDimensionMismatch,
		)
	}

	s.mu.RLock()
	snapshot := s.snapshot
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return nil, domain.ErrCollectionClosed
	}
	if len(snapshot) == 0 {
		return nil, nil
	}

	q := normalize(query)
	results := make([]domain.RetrievedChunk, 0, len(snapshot))
	for _, e := range snapshot {
		results = append(results, domain.RetrievedChunk{
			Chunk: e.Chunk,
			Score: dot(q, e.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, domain.ErrCollectionClosed
	}
	return len(s.snapshot), nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.snapshot = nil
	s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) reloadSnapshot(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.chunk_id, c.document_id, c.source, c.position, c.content, c.embedding
		 FROM chunks c
		 JOIN generations g ON g.id = c.generation_id
		 WHERE g.collection = ? AND g.active = 1
		 ORDER BY c.id`,
		s.collection,
	)
	if err != nil {
		return fmt.Errorf("failed to load collection snapshot: %w", err)
	}
	defer rows.Close()

	var snapshot []Entry
	for rows.Next() {
		var (
			e    Entry
			blob []byte
		)
		if err := rows.Scan(&e.Chunk.ID, &e.Chunk.DocumentID, &e.Chunk.Source, &e.Chunk.Index, &e.Chunk.Content, &blob); err != nil {
			return fmt.Errorf("failed to scan chunk row: %w", err)
		}
		e.Embedding = decodeVector(blob)
		snapshot = append(snapshot, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read collection snapshot: %w", err)
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
