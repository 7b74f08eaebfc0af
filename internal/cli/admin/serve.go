package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/empire-labs/chad/internal/api/handlers"
	"github.com/empire-labs/chad/internal/config"
	"github.com/empire-labs/chad/internal/database"
	"github.com/empire-labs/chad/internal/index"
	"github.com/empire-labs/chad/internal/jobs"
	"github.com/empire-labs/chad/internal/llm"
	"github.com/empire-labs/chad/internal/server"
	"github.com/empire-labs/chad/internal/service"
	"github.com/empire-labs/chad/internal/session"
	"github.com/empire-labs/chad/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API server",
		Long:  "Start the Chad API server with the configured retrieval and session backends",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides CHAD_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup (postgres backend only)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	client := llm.New(llm.Config{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		ChatModel:       cfg.ChatModel,
		EmbedModel:      cfg.EmbedModel,
		Temperature:     cfg.Temperature,
		MaxReplyTokens:  cfg.MaxReplyTokens,
		EmbedDimensions: cfg.EmbedDimensions,
	})

	var retriever service.GroundingRetriever
	if cfg.RAGEnabled {
		store, cleanup, err := openIndexStore(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		retriever = service.NewRetriever(client, store, service.RetrievalConfig{
			K:             cfg.RetrievalK,
			MinSimilarity: cfg.MinSimilarity,
		})
	} else {
		log.Println("retrieval disabled, serving ungrounded replies")
	}

	sessions, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	sweeper := jobs.NewWorker(jobs.NewSessionSweeper(sessions), cfg.SessionSweepInterval)
	go sweeper.Start(ctx)

	chatSvc := service.NewChatService(
		retriever,
		sessions,
		client,
		service.NewPromptBuilder("", cfg.ContextTokenBudget),
		cfg.EmptyReplyFallback,
	)

	router := server.NewRouter(server.RouterConfig{
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		ChatHandler:    handlers.NewChatHandler(chatSvc, cfg.AdminKey),
		HealthHandler:  handlers.NewHealthHandler(cfg.RAGEnabled, cfg.ChatModel),
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	go func() {
		log.Printf("starting server on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// openIndexStore picks the vector backend: pgvector when DATABASE_URL
// is set, the local sqlite file otherwise.
func openIndexStore(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (index.Store, func(), error) {
	if cfg.HasPostgres() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store, err := index.OpenPostgres(ctx, pool, cfg.Collection, cfg.EmbedDimensions)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() {
			store.Close()
			pool.Close()
		}, nil
	}

	store, err := index.OpenSQLite(cfg.RAGDBPath, cfg.Collection, cfg.EmbedDimensions)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

// openSessionStore picks the session backend: redis when REDIS_ADDR is
// set, process memory otherwise.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if !cfg.HasRedis() {
		return session.NewMemoryStore(cfg.MaxSessionTurns, cfg.SessionTTL), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Println("connected to redis")
	return session.NewRedisStore(client, cfg.MaxSessionTurns, cfg.SessionTTL), nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}
