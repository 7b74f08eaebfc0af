package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/empire-labs/chad/internal/domain"
	"github.com/empire-labs/chad/internal/index"
	"github.com/empire-labs/chad/internal/llm"
)

// fakeEmbedder returns a deterministic vector derived from the input
// text so equality checks across runs are meaningful. Specific inputs
// can be made to fail, persistently or a limited number of times.
type fakeEmbedder struct {
	mu        sync.Mutex
	dims      int
	failAll   bool
	failFor   map[string]int // text -> remaining failures (-1 = always)
	callCount int
}

func newFakeEmbedder(dims int) *fakeEmbedder {
	return &fakeEmbedder{dims: dims, failFor: make(map[string]int)}
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++

	if f.failAll {
		return nil, errors.New("embedding backend unreachable")
	}
	if remaining, ok := f.failFor[text]; ok {
		if remaining == -1 {
			return nil, errors.New("embedding backend unreachable")
		}
		if remaining > 0 {
			f.failFor[text] = remaining - 1
			return nil, errors.New("embedding backend unreachable")
		}
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32((seed>>(i%24))&0xff) + 1
	}
	return vec, nil
}

// fakeIndexStore records Replace calls and serves canned search
// results.
type fakeIndexStore struct {
	mu            sync.Mutex
	generations   [][]index.Entry
	searchResults []domain.RetrievedChunk
	searchErr     error
	replaceErr    error
}

func (f *fakeIndexStore) Replace(ctx context.Context, entries []index.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.generations = append(f.generations, entries)
	return nil
}

func (f *fakeIndexStore) Search(ctx context.Context, query []float32, k int) ([]domain.RetrievedChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if k > len(f.searchResults) {
		k = len(f.searchResults)
	}
	return f.searchResults[:k], nil
}

func (f *fakeIndexStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.generations) == 0 {
		return 0, nil
	}
	return len(f.generations[len(f.generations)-1]), nil
}

func (f *fakeIndexStore) Close() error { return nil }

func (f *fakeIndexStore) active() []index.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.generations) == 0 {
		return nil
	}
	return f.generations[len(f.generations)-1]
}

// staticLoader serves a fixed document set.
type staticLoader struct {
	docs []domain.Document
	err  error
}

func (l *staticLoader) Load() ([]domain.Document, error) {
	return l.docs, l.err
}

// fakeChatClient records the prompts it receives.
type fakeChatClient struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]llm.Message
}

func (f *fakeChatClient) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, messages)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChatClient) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

// fakeRetriever serves canned grounding results.
type fakeRetriever struct {
	results []domain.RetrievedChunk
	err     error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error) {
	return f.results, f.err
}

func retrievedChunk(source, content string, score float32) domain.RetrievedChunk {
	return domain.RetrievedChunk{
		Chunk: domain.Chunk{
			ID:      fmt.Sprintf("chunk-%s", source),
			Source:  source,
			Content: content,
		},
		Score: score,
	}
}
