package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Host  string `envconfig:"HOST" default:"127.0.0.1"`
	Port  string `envconfig:"PORT" default:"8000"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// LLM provider. The base URL must expose an OpenAI-compatible API:
	// Ollama's /v1 endpoint locally, or OpenRouter in the cloud.
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:"http://127.0.0.1:11434/v1"`
	LLMAPIKey  string `envconfig:"LLM_API_KEY"`
	ChatModel  string `envconfig:"CHAT_MODEL" default:"llama3.1"`
	EmbedModel string `envconfig:"EMBED_MODEL" default:"nomic-embed-text"`

	// EmbedDimensions must match the embedding model. 768 is
	// nomic-embed-text; a stored collection built with a different
	// dimensionality is rejected at startup.
	EmbedDimensions int     `envconfig:"EMBED_DIMENSIONS" default:"768"`
	Temperature     float32 `envconfig:"TEMPERATURE" default:"0.2"`
	MaxReplyTokens  int     `envconfig:"MAX_REPLY_TOKENS" default:"800"`

	// ContextTokenBudget bounds the retrieved-context portion of the
	// assembled prompt, not the whole model context window.
	ContextTokenBudget int `envconfig:"CONTEXT_TOKEN_BUDGET" default:"2048"`

	RAGEnabled    bool    `envconfig:"RAG_ENABLED" default:"true"`
	RAGDBPath     string  `envconfig:"RAG_DB_PATH" default:"rag.db"`
	Collection    string  `envconfig:"COLLECTION" default:"empirelabs_kb"`
	KBDir         string  `envconfig:"KB_DIR" default:"kb"`
	RetrievalK    int     `envconfig:"RETRIEVAL_K" default:"6"`
	MinSimilarity float32 `envconfig:"MIN_SIMILARITY" default:"0"`
	ChunkMaxChars int     `envconfig:"CHUNK_MAX_CHARS" default:"1200"`
	ChunkOverlap  int     `envconfig:"CHUNK_OVERLAP" default:"150"`

	MaxSessionTurns      int           `envconfig:"MAX_SESSION_TURNS" default:"12"`
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`

	// APIKey protects /api/chat when set (x-api-key header). AdminKey
	// unlocks the debug-sources response field.
	APIKey   string `envconfig:"API_KEY"`
	AdminKey string `envconfig:"ADMIN_KEY"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Optional external backends. DatabaseURL switches the vector index
	// from the local sqlite file to pgvector; RedisAddr moves sessions
	// out of process memory.
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	EmptyReplyFallback string `envconfig:"EMPTY_REPLY_FALLBACK" default:"Understood. What outcome are you aiming for?"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CHAD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks the invariants that make a running service meaningless
// if violated. Anything caught here is a fatal configuration error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		return fmt.Errorf("config: LLM_BASE_URL must not be empty")
	}
	if strings.TrimSpace(c.ChatModel) == "" {
		return fmt.Errorf("config: CHAT_MODEL must not be empty")
	}
	if c.RAGEnabled {
		if strings.TrimSpace(c.EmbedModel) == "" {
			return fmt.Errorf("config: EMBED_MODEL must not be empty when retrieval is enabled")
		}
		if c.EmbedDimensions <= 0 {
			return fmt.Errorf("config: EMBED_DIMENSIONS must be positive, got %d", c.EmbedDimensions)
		}
		if c.ChunkOverlap >= c.ChunkMaxChars {
			return fmt.Errorf("config: CHUNK_OVERLAP (%d) must be smaller than CHUNK_MAX_CHARS (%d)", c.ChunkOverlap, c.ChunkMaxChars)
		}
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("config: RETRIEVAL_K must be positive, got %d", c.RetrievalK)
	}
	if c.MaxSessionTurns <= 0 {
		return fmt.Errorf("config: MAX_SESSION_TURNS must be positive, got %d", c.MaxSessionTurns)
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

func (c *Config) HasPostgres() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}
