package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/empire-labs/chad/internal/domain"
	"github.com/empire-labs/chad/internal/index"
)

// RetrievalConfig controls how grounding passages are selected.
type RetrievalConfig struct {
	K int
	// MinSimilarity filters out passages below the cosine threshold.
	// Zero disables the filter. When everything is filtered, the
	// caller gets an empty result, not the best bad match.
	MinSimilarity float32
}

// Retriever embeds a query and returns the most relevant passages
// from the active collection.
type Retriever struct {
	client EmbeddingClient
	store  index.Store
	cfg    RetrievalConfig
}

func NewRetriever(client EmbeddingClient, store index.Store, cfg RetrievalConfig) *Retriever {
	return &Retriever{client: client, store: store, cfg: cfg}
}

// Retrieve returns at most K chunks ordered by descending similarity.
// An empty result means the knowledge base had nothing relevant, which
// is not an error. An embedding failure is: the caller must be able to
// tell "no match" apart from "retrieval broke".
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	vec, err := r.client.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.EmbeddingFailed(err)
	}

	results, err := r.store.Search(ctx, vec, r.cfg.K)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if r.cfg.MinSimilarity > 0 {
		filtered := results[:0]
		for _, res := range results {
			if res.Score >= r.cfg.MinSimilarity {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}

	return results, nil
}
