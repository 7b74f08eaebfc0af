package service

import (
	"context"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empire-labs/chad/internal/domain"
)

func newTestIngest(loader DocumentLoader, embedder EmbeddingClient, store *fakeIndexStore) *IngestService {
	svc := NewIngestService(loader, embedder, store, ChunkConfig{MaxChars: 80, Overlap: 10, BoundaryTolerance: 20})
	svc.newBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, embedAttempts-1)
	}
	return svc
}

func testDocs() []domain.Document {
	return []domain.Document{
		{ID: "services.md", Source: "https://empirelabs.com.au/services", Text: "We build automation systems. We design dashboards. We help with grants and R&D incentives for Australian businesses."},
		{ID: "about.md", Source: "https://empirelabs.com.au/about", Text: "Empire Labs is a consultancy focused on practical outcomes."},
	}
}

func TestIngest_Success(t *testing.T) {
	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{docs: testDocs()}, newFakeEmbedder(4), store)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Documents)
	assert.Greater(t, report.Chunks, 1)
	assert.Equal(t, report.Chunks, report.Embedded)
	assert.False(t, report.Degraded())

	entries := store.active()
	require.Len(t, entries, report.Chunks)
	for _, e := range entries {
		assert.NotEmpty(t, e.Chunk.ID)
		assert.Len(t, e.Embedding, 4)
	}
}

func TestIngest_Idempotent(t *testing.T) {
	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{docs: testDocs()}, newFakeEmbedder(4), store)
	ctx := context.Background()

	_, err := svc.Run(ctx)
	require.NoError(t, err)
	first := store.active()

	_, err = svc.Run(ctx)
	require.NoError(t, err)
	second := store.active()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Chunk.ID, second[i].Chunk.ID)
		assert.Equal(t, first[i].Chunk.Content, second[i].Chunk.Content)
		assert.Equal(t, first[i].Embedding, second[i].Embedding)
	}
}

func TestIngest_SkipsPersistentlyFailingChunk(t *testing.T) {
	docs := []domain.Document{
		{ID: "a.md", Source: "a", Text: "good passage one"},
		{ID: "b.md", Source: "b", Text: "broken passage"},
	}
	embedder := newFakeEmbedder(4)
	embedder.failFor["broken passage"] = -1

	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{docs: docs}, embedder, store)

	report, err := svc.Run(context.Background())
	require.NoError(t, err, "a degraded refresh still succeeds")

	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 1, report.Embedded)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "b.md", report.Skipped[0].Document)
	assert.True(t, report.Degraded())

	entries := store.active()
	require.Len(t, entries, 1)
	assert.Equal(t, "good passage one", entries[0].Chunk.Content)
}

func TestIngest_RetriesTransientFailure(t *testing.T) {
	docs := []domain.Document{{ID: "a.md", Source: "a", Text: "flaky passage"}}
	embedder := newFakeEmbedder(4)
	embedder.failFor["flaky passage"] = 2 // fails twice, succeeds on third attempt

	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{docs: docs}, embedder, store)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.False(t, report.Degraded())
}

func TestIngest_AllChunksFail(t *testing.T) {
	embedder := newFakeEmbedder(4)
	embedder.failAll = true

	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{docs: testDocs()}, embedder, store)

	report, err := svc.Run(context.Background())
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeEmbedding, derr.Code)

	assert.Nil(t, store.active(), "a fully failed run must not replace the serving collection")
	assert.Equal(t, report.Chunks, len(report.Skipped))
}

func TestIngest_EmptyKnowledgeBase(t *testing.T) {
	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{}, newFakeEmbedder(4), store)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Documents)
	assert.Zero(t, report.Chunks)
	require.Len(t, store.generations, 1, "an empty kb still rebuilds to an empty collection")
}

func TestIngest_ChunkOrderingStable(t *testing.T) {
	long := strings.Repeat("Sentence about services. ", 30)
	docs := []domain.Document{{ID: "long.md", Source: "long", Text: long}}

	store := &fakeIndexStore{}
	svc := newTestIngest(&staticLoader{docs: docs}, newFakeEmbedder(4), store)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	entries := store.active()
	require.Greater(t, len(entries), 1)
	for i, e := range entries {
		assert.Equal(t, i, e.Chunk.Index, "entries arrive in document order")
	}
}
