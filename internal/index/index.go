// Package index persists chunk embeddings and serves nearest-neighbor
// search over them. Two backends share one contract: a local sqlite
// file (default) and pgvector when a database URL is configured.
//
// Similarity is cosine, computed as the inner product of normalized
// vectors. Ties are broken by chunk insertion order so identical
// queries always rank identically.
package index

import (
	"context"
	"math"

	"github.com/empire-labs/chad/internal/domain"
)

// Entry is one (chunk, embedding) pair written during ingestion.
type Entry struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// Store is the vector index contract. Replace installs a complete new
// collection generation; readers never observe a partially written one.
type Store interface {
	// Replace writes entries as a fresh generation and atomically
	// swaps it in as the active collection.
	Replace(ctx context.Context, entries []Entry) error

	// Search returns up to k chunks ordered by descending cosine
	// similarity to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error)

	// Count reports the number of chunks in the active generation.
	Count(ctx context.Context) (int, error)

	Close() error
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot is cosine similarity when both inputs are normalized.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
