package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewChunk_DeterministicID(t *testing.T) {
	doc := Document{ID: "kb/services.md", Source: "https://empirelabs.com.au/services", Text: "ignored"}

	a := NewChunk(doc, 0, "We build automation dashboards.")
	b := NewChunk(doc, 0, "We build automation dashboards.")
	c := NewChunk(doc, 1, "We build automation dashboards.")

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.ID, 40)
	assert.Equal(t, "kb/services.md", a.DocumentID)
	assert.Equal(t, 1, c.Index)
}

func TestNewChunk_ShortContent(t *testing.T) {
	doc := Document{ID: "kb/home.md", Source: "kb/home.md"}
	chunk := NewChunk(doc, 0, "hi")
	assert.Equal(t, "hi", chunk.Content)
	assert.NotEmpty(t, chunk.ID)
}

func TestSessionTrim(t *testing.T) {
	s := &Session{ID: "s1"}
	for i := 0; i < 10; i++ {
		s.Turns = append(s.Turns, Turn{Role: RoleUser, Content: "m", Timestamp: time.Now()})
	}

	s.Trim(4)
	assert.Len(t, s.Turns, 4)

	s.Trim(0)
	assert.Len(t, s.Turns, 4, "zero window disables trimming")
}

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := LLMFailed(cause)

	assert.Contains(t, err.Error(), "LLM_ERROR")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, cause))
}

func TestDomainError_WithoutCause(t *testing.T) {
	assert.Equal(t, "[VALIDATION_ERROR] message must not be empty", ErrEmptyMessage.Error())
	assert.Nil(t, errors.Unwrap(ErrEmptyMessage))
}
