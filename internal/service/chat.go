package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/empire-labs/chad/internal/domain"
	"github.com/empire-labs/chad/internal/llm"
	"github.com/empire-labs/chad/internal/session"
)

// ChatClient defines the interface for chat completions.
type ChatClient interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// GroundingRetriever supplies passages for a query. Nil results mean
// the knowledge base had no relevant match.
type GroundingRetriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.RetrievedChunk, error)
}

// ChatInput is one user request.
type ChatInput struct {
	Message   string
	SessionID string
	// IncludeSources adds the grounding source list to the output
	// (admin debug feature).
	IncludeSources bool
}

// ChatOutput is the reply plus the session id the client must present
// on the next turn.
type ChatOutput struct {
	Reply     string
	SessionID string
	Sources   []string
}

// ChatService orchestrates one request: resolve session, retrieve
// grounding, assemble the prompt, call the model, record the exchange.
type ChatService struct {
	retriever GroundingRetriever
	sessions  session.Store
	client    ChatClient
	prompt    *PromptBuilder

	emptyReplyFallback string

	locks keyedMutex
	now   func() time.Time
}

func NewChatService(retriever GroundingRetriever, sessions session.Store, client ChatClient, prompt *PromptBuilder, emptyReplyFallback string) *ChatService {
	return &ChatService{
		retriever:          retriever,
		sessions:           sessions,
		client:             client,
		prompt:             prompt,
		emptyReplyFallback: emptyReplyFallback,
		locks:              keyedMutex{locks: make(map[string]*refLock)},
		now:                time.Now,
	}
}

// Handle runs one orchestration step. Requests for the same session id
// are serialized so concurrent turns cannot interleave history;
// different sessions proceed independently. The session is only
// mutated after the model call succeeds.
func (s *ChatService) Handle(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}

	if input.SessionID != "" {
		unlock := s.locks.lock(input.SessionID)
		defer unlock()
	}

	sess, err := s.sessions.GetOrCreate(ctx, input.SessionID)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to resolve session", err)
	}

	var retrieved []domain.RetrievedChunk
	if s.retriever != nil {
		retrieved, err = s.retriever.Retrieve(ctx, message)
		if err != nil {
			// Distinct from "nothing relevant found": the backend
			// broke, and the caller needs to know.
			return nil, err
		}
		if len(retrieved) == 0 {
			log.Printf("chat: no grounding passages for session %s, answering ungrounded", sess.ID)
		}
	}

	messages := s.prompt.Build(sess.Turns, retrieved, message)

	reply, err := s.client.Complete(ctx, messages)
	if err != nil {
		return nil, domain.LLMFailed(err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = s.emptyReplyFallback
	}

	now := s.now()
	if err := s.sessions.Append(ctx, sess.ID,
		domain.Turn{Role: domain.RoleUser, Content: message, Timestamp: now},
		domain.Turn{Role: domain.RoleAssistant, Content: reply, Timestamp: now},
	); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to record exchange", err)
	}

	out := &ChatOutput{Reply: reply, SessionID: sess.ID}
	if input.IncludeSources {
		out.Sources = sourceList(retrieved)
	}
	return out, nil
}

func sourceList(retrieved []domain.RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(retrieved))
	var sources []string
	for _, r := range retrieved {
		if _, ok := seen[r.Chunk.Source]; ok {
			continue
		}
		seen[r.Chunk.Source] = struct{}{}
		sources = append(sources, r.Chunk.Source)
	}
	return sources
}

// keyedMutex serializes work per session key. Entries are reference
// counted and removed when the last holder releases, so the map does
// not grow with the total number of sessions ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
