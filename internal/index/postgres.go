package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/empire-labs/chad/internal/domain"
)

// PostgresStore keeps the collection in pgvector. It serves the same
// generation-swap contract as the sqlite backend; cosine distance is
// computed by the database (`<=>`), so normalization is left to
// pgvector and scores are reported as 1 - distance.
type PostgresStore struct {
	pool       *pgxpool.Pool
	collection string
	dimensions int
}

// OpenPostgres verifies the stored collection (if any) against the
// configured dimensionality and returns the store. The schema must
// already exist (migrations run at startup).
func OpenPostgres(ctx context.Context, pool *pgxpool.Pool, collection string, dimensions int) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, collection: collection, dimensions: dimensions}

	var storedDims int
	err := pool.QueryRow(ctx,
		`SELECT dimensions FROM generations WHERE collection = $1 AND active`,
		collection,
	).Scan(&storedDims)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Fresh collection.
	case err != nil:
		return nil, fmt.Errorf("failed to inspect collection: %w", err)
	case storedDims != dimensions:
		return nil, domain.NewDomainErrorWithCause(
			domain.ErrCodeConfiguration,
			fmt.Sprintf("collection %q was built with %d-dimension embeddings, configured model produces %d", collection, storedDims, dimensions),
			domain.ErrDimensionMismatch,
		)
	}

	return s, nil
}

func (s *PostgresStore) Replace(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if len(e.Embedding) != s.dimensions {
			return domain.NewDomainErrorWithCause(
				domain.ErrCodeConfiguration,
				fmt.Sprintf("chunk %s has %d-dimension embedding, collection expects %d", e.Chunk.ID, len(e.Embedding), s.dimensions),
				domain.ErrDimensionMismatch,
			)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin generation write: %w", err)
	}
	defer tx.Rollback(ctx)

	var genID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO generations (collection, dimensions, active, created_at)
		 VALUES ($1, $2, FALSE, $3) RETURNING id`,
		s.collection, s.dimensions, time.Now().UTC(),
	).Scan(&genID); err != nil {
		return fmt.Errorf("failed to create generation: %w", err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chunks (generation_id, chunk_id, document_id, source, position, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			genID, e.Chunk.ID, e.Chunk.DocumentID, e.Chunk.Source, e.Chunk.Index,
			e.Chunk.Content, pgvector.NewVector(e.Embedding),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", e.Chunk.ID, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE generations SET active = (id = $1) WHERE collection = $2`,
		genID, s.collection,
	); err != nil {
		return fmt.Errorf("failed to activate generation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM generations WHERE collection = $1 AND NOT active`, s.collection,
	); err != nil {
		return fmt.Errorf("failed to prune old generations: %w", err)
	}

	return nil
}

func (s *PostgresStore) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error) {
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

	vec := pgvector.NewVector(query)
	rows, err := s.pool.Query(ctx,
		`SELECT c.chunk_id, c.document_id, c.source, c.position, c.content,
		        1.0 - (c.embedding <=> $1) AS score
		 FROM chunks c
		 JOIN generations g ON g.id = c.generation_id
		 WHERE g.collection = $2 AND g.active
		 ORDER BY c.embedding <=> $1, c.id
		 LIMIT $3`,
		vec, s.collection, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection: %w", err)
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0, k)
	for rows.Next() {
		var r domain.RetrievedChunk
		var score float64
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Source, &r.Chunk.Index, &r.Chunk.Content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		r.Score = float32(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}

	return results, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks c
		 JOIN generations g ON g.id = c.generation_id
		 WHERE g.collection = $1 AND g.active`,
		s.collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
