// Package llm wraps an OpenAI-compatible backend for chat completions
// and embeddings. Locally this is Ollama's /v1 endpoint; in the cloud
// it is OpenRouter. Both speak the same wire protocol.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoChoices is returned when the backend produces no completion choices
	ErrNoChoices = errors.New("no completion choices returned")
)

// Message is one prompt message in provider-neutral form.
type Message struct {
	Role    string
	Content string
}

// ChatAPI is the provider surface used for completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// EmbeddingAPI is the provider surface used for embeddings.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Config holds client construction options.
type Config struct {
	BaseURL string
	APIKey  string

	ChatModel      string
	EmbedModel     string
	Temperature    float32
	MaxReplyTokens int

	// EmbedDimensions is the expected embedding width. A response with
	// a different width is a configuration problem (wrong model), not
	// something to tolerate silently.
	EmbedDimensions int
}

// Client exposes chat and embedding calls against one backend.
type Client struct {
	chat  ChatAPI
	embed EmbeddingAPI
	cfg   Config
}

// New creates a client for the configured OpenAI-compatible base URL.
func New(cfg Config) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but go-openai requires a non-empty
		// Authorization header value.
		apiKey = "ollama"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	api := openai.NewClientWithConfig(clientCfg)
	return &Client{chat: api, embed: api, cfg: cfg}
}

// NewWithAPIs creates a client over explicit API implementations, used
// by tests to substitute fakes.
func NewWithAPIs(chat ChatAPI, embed EmbeddingAPI, cfg Config) *Client {
	return &Client{chat: chat, embed: embed, cfg: cfg}
}

// Complete sends the assembled prompt and returns the reply text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    reqMessages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

// GenerateEmbedding generates an embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.embed.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.cfg.EmbedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	embedding := resp.Data[0].Embedding
	if c.cfg.EmbedDimensions > 0 && len(embedding) != c.cfg.EmbedDimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), c.cfg.EmbedDimensions)
	}

	return embedding, nil
}
