package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/empire-labs/chad/internal/domain"
	"github.com/empire-labs/chad/internal/session"
)

func newTestChat(retriever GroundingRetriever, client ChatClient) (*ChatService, *session.MemoryStore) {
	sessions := session.NewMemoryStore(12, time.Hour)
	svc := NewChatService(retriever, sessions, client, NewPromptBuilder("", 0), "Understood. What outcome are you aiming for?")
	return svc, sessions
}

func TestHandle_GroundedReply(t *testing.T) {
	retriever := &fakeRetriever{results: []domain.RetrievedChunk{
		retrievedChunk("https://empirelabs.com.au/services", "We build automation.", 0.9),
	}}
	client := &fakeChatClient{reply: "We build automation systems for Australian businesses."}
	svc, sessions := newTestChat(retriever, client)

	out, err := svc.Handle(context.Background(), ChatInput{Message: "What do you do?"})
	require.NoError(t, err)

	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, "We build automation systems for Australian businesses.", out.Reply)

	prompt := client.lastPrompt()
	require.NotEmpty(t, prompt)
	assert.Contains(t, prompt[1].Content, "We build automation.", "retrieved context reaches the model")

	sess, err := sessions.GetOrCreate(context.Background(), out.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, domain.RoleUser, sess.Turns[0].Role)
	assert.Equal(t, "What do you do?", sess.Turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, sess.Turns[1].Role)
}

func TestHandle_SessionContinuity(t *testing.T) {
	client := &fakeChatClient{reply: "R1"}
	svc, _ := newTestChat(&fakeRetriever{}, client)
	ctx := context.Background()

	first, err := svc.Handle(ctx, ChatInput{Message: "What do you do?"})
	require.NoError(t, err)

	client.reply = "R2"
	second, err := svc.Handle(ctx, ChatInput{Message: "And for compliance?", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	prompt := client.lastPrompt()
	var sawFirstQuestion, sawFirstReply bool
	for _, m := range prompt {
		if m.Content == "What do you do?" {
			sawFirstQuestion = true
		}
		if m.Content == "R1" {
			sawFirstReply = true
		}
	}
	assert.True(t, sawFirstQuestion, "turn 2 prompt includes turn 1's question")
	assert.True(t, sawFirstReply, "turn 2 prompt includes turn 1's reply")
}

func TestHandle_UnknownSessionIDGetsFreshSession(t *testing.T) {
	client := &fakeChatClient{reply: "hello"}
	svc, _ := newTestChat(&fakeRetriever{}, client)

	out, err := svc.Handle(context.Background(), ChatInput{Message: "hi", SessionID: "stale-after-restart"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.SessionID)
	assert.NotEqual(t, "stale-after-restart", out.SessionID)
}

func TestHandle_EmptyRetrievalStillReplies(t *testing.T) {
	client := &fakeChatClient{reply: "General answer."}
	svc, _ := newTestChat(&fakeRetriever{results: nil}, client)

	out, err := svc.Handle(context.Background(), ChatInput{Message: "Something obscure"})
	require.NoError(t, err)
	assert.Equal(t, "General answer.", out.Reply)

	prompt := client.lastPrompt()
	require.Len(t, prompt, 2, "no context message when retrieval found nothing")
}

func TestHandle_RetrievalDisabled(t *testing.T) {
	client := &fakeChatClient{reply: "Ungrounded answer."}
	svc, _ := newTestChat(nil, client)

	out, err := svc.Handle(context.Background(), ChatInput{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Ungrounded answer.", out.Reply)
}

func TestHandle_EmbeddingFailureLeavesSessionUntouched(t *testing.T) {
	client := &fakeChatClient{reply: "ok"}
	svc, sessions := newTestChat(&fakeRetriever{}, client)
	ctx := context.Background()

	seed, err := svc.Handle(ctx, ChatInput{Message: "first"})
	require.NoError(t, err)

	svc.retriever = &fakeRetriever{err: domain.EmbeddingFailed(errors.New("backend down"))}
	_, err = svc.Handle(ctx, ChatInput{Message: "second", SessionID: seed.SessionID})
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeEmbedding, derr.Code)

	sess, err := sessions.GetOrCreate(ctx, seed.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2, "failed exchange must not mutate history")
}

func TestHandle_LLMFailureLeavesSessionUntouched(t *testing.T) {
	client := &fakeChatClient{reply: "ok"}
	svc, sessions := newTestChat(&fakeRetriever{}, client)
	ctx := context.Background()

	seed, err := svc.Handle(ctx, ChatInput{Message: "first"})
	require.NoError(t, err)

	client.err = errors.New("upstream timeout")
	_, err = svc.Handle(ctx, ChatInput{Message: "second", SessionID: seed.SessionID})
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeLLM, derr.Code)

	sess, err := sessions.GetOrCreate(ctx, seed.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2, "only the successful first exchange is recorded")
}

func TestHandle_EmptyMessageRejected(t *testing.T) {
	svc, _ := newTestChat(&fakeRetriever{}, &fakeChatClient{reply: "x"})

	_, err := svc.Handle(context.Background(), ChatInput{Message: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestHandle_EmptyModelReplyUsesFallback(t *testing.T) {
	client := &fakeChatClient{reply: "   "}
	svc, _ := newTestChat(&fakeRetriever{}, client)

	out, err := svc.Handle(context.Background(), ChatInput{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Understood. What outcome are you aiming for?", out.Reply)
}

func TestHandle_SourcesOnlyWhenRequested(t *testing.T) {
	retriever := &fakeRetriever{results: []domain.RetrievedChunk{
		retrievedChunk("https://empirelabs.com.au/services", "a", 0.9),
		retrievedChunk("https://empirelabs.com.au/services", "b", 0.8),
		retrievedChunk("https://empirelabs.com.au/grants", "c", 0.7),
	}}
	svc, _ := newTestChat(retriever, &fakeChatClient{reply: "x"})
	ctx := context.Background()

	out, err := svc.Handle(ctx, ChatInput{Message: "hi"})
	require.NoError(t, err)
	assert.Nil(t, out.Sources)

	out, err = svc.Handle(ctx, ChatInput{Message: "hi", IncludeSources: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://empirelabs.com.au/services", "https://empirelabs.com.au/grants"}, out.Sources, "sources are deduplicated in rank order")
}

func TestHandle_ConcurrentDistinctSessions(t *testing.T) {
	client := &fakeChatClient{reply: "reply"}
	svc, sessions := newTestChat(&fakeRetriever{}, client)
	ctx := context.Background()

	a, err := svc.Handle(ctx, ChatInput{Message: "seed-a"})
	require.NoError(t, err)
	b, err := svc.Handle(ctx, ChatInput{Message: "seed-b"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, id := range []string{a.SessionID, b.SessionID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _ = svc.Handle(ctx, ChatInput{Message: "msg for " + id, SessionID: id})
			}(id)
		}
	}
	wg.Wait()

	for _, tc := range []struct{ id, seed string }{
		{a.SessionID, "seed-a"},
		{b.SessionID, "seed-b"},
	} {
		sess, err := sessions.GetOrCreate(ctx, tc.id)
		require.NoError(t, err)
		for _, turn := range sess.Turns {
			if turn.Role == domain.RoleUser && turn.Content != tc.seed {
				assert.Contains(t, turn.Content, tc.id, "session %s only holds its own turns", tc.id)
			}
		}
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	km := keyedMutex{locks: make(map[string]*refLock)}

	unlock := km.lock("s1")
	assert.Len(t, km.locks, 1)
	unlock()
	assert.Empty(t, km.locks, "lock entries are dropped when released")
}
