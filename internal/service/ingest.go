package service

import (
	"context"
	"fmt"
	"log"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/empire-labs/chad/internal/domain"
	"github.com/empire-labs/chad/internal/index"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentLoader reads the knowledge-base sources to ingest.
type DocumentLoader interface {
	Load() ([]domain.Document, error)
}

// SkippedChunk records a chunk that failed to embed after retries.
type SkippedChunk struct {
	ChunkID  string
	Document string
	Err      error
}

// IngestReport summarizes a refresh run. Skipped chunks degrade the
// run but do not fail it: partial knowledge beats a failed refresh of
// an otherwise serving index.
type IngestReport struct {
	Documents int
	Chunks    int
	Embedded  int
	Skipped   []SkippedChunk
}

func (r *IngestReport) Degraded() bool {
	return len(r.Skipped) > 0
}

// IngestService rebuilds the vector collection from the document
// store: chunk, embed, write a fresh generation, swap it in.
type IngestService struct {
	loader      DocumentLoader
	client      EmbeddingClient
	store       index.Store
	chunkCfg    ChunkConfig
	concurrency int

	// newBackoff produces the per-chunk retry policy. Overridden in
	// tests to skip the waits.
	newBackoff func() backoff.BackOff
}

const (
	defaultIngestConcurrency = 4
	embedAttempts            = 3
)

func NewIngestService(loader DocumentLoader, client EmbeddingClient, store index.Store, chunkCfg ChunkConfig) *IngestService {
	return &IngestService{
		loader:      loader,
		client:      client,
		store:       store,
		chunkCfg:    chunkCfg,
		concurrency: defaultIngestConcurrency,
		newBackoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), embedAttempts-1)
		},
	}
}

// Run performs a full refresh. The active collection keeps serving
// until the new generation is complete; the swap is atomic.
func (s *IngestService) Run(ctx context.Context) (*IngestReport, error) {
	docs, err := s.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	var chunks []domain.Chunk
	for _, doc := range docs {
		for i, content := range chunkText(doc.Text, s.chunkCfg) {
			chunks = append(chunks, domain.NewChunk(doc, i, content))
		}
	}

	report := &IngestReport{Documents: len(docs), Chunks: len(chunks)}

	if len(chunks) == 0 {
		if err := s.store.Replace(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to write empty collection: %w", err)
		}
		return report, nil
	}

	// Embed with bounded concurrency; embeddings land in their chunk's
	// slot so collection order stays deterministic.
	embeddings := make([][]float32, len(chunks))
	skipped := make([]SkippedChunk, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, embedErr := s.embedWithRetry(gctx, chunks[i].Content)
			if embedErr != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				skipped[i] = SkippedChunk{
					ChunkID:  chunks[i].ID,
					Document: chunks[i].DocumentID,
					Err:      embedErr,
				}
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]index.Entry, 0, len(chunks))
	for i := range chunks {
		if embeddings[i] != nil {
			entries = append(entries, index.Entry{Chunk: chunks[i], Embedding: embeddings[i]})
			continue
		}
		report.Skipped = append(report.Skipped, skipped[i])
		log.Printf("ingest: skipping chunk %s from %s: %v", skipped[i].ChunkID, skipped[i].Document, skipped[i].Err)
	}
	report.Embedded = len(entries)

	if len(entries) == 0 {
		return report, domain.EmbeddingFailed(fmt.Errorf("all %d chunks failed to embed", len(chunks)))
	}

	if err := s.store.Replace(ctx, entries); err != nil {
		return report, fmt.Errorf("failed to install new collection generation: %w", err)
	}

	return report, nil
}

func (s *IngestService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	op := func() error {
		var err error
		vec, err = s.client.GenerateEmbedding(ctx, text)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(s.newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return vec, nil
}
