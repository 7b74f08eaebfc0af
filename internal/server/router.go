package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/empire-labs/chad/internal/api/handlers"
	"github.com/empire-labs/chad/internal/api/middleware"
)

type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string
	ChatHandler    *handlers.ChatHandler
	HealthHandler  *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 64 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			middleware.APIKeyHeader,
			handlers.DebugSourcesHeader,
			handlers.DebugAdminHeader,
		},
		MaxAge: 300,
	}))

	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/demo", handlers.Demo)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKey))

		r.Post("/api/chat", cfg.ChatHandler.Chat)
	})

	return r
}
