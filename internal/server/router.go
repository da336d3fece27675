package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/specwise/specchat/internal/api"
	"github.com/specwise/specchat/internal/api/handlers"
	"github.com/specwise/specchat/internal/api/middleware"
)

type RouterConfig struct {
	SpecHandler   *handlers.SpecHandler
	SearchHandler *handlers.SearchHandler
	ChatHandler   *handlers.ChatHandler
	MaxBodyBytes  int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxBodyBytes))

		r.Route("/specs", func(r chi.Router) {
			r.Post("/", cfg.SpecHandler.Upload)
			r.Get("/", cfg.SpecHandler.List)
			r.Get("/{id}", cfg.SpecHandler.Get)
			r.Delete("/{id}", cfg.SpecHandler.Delete)
			r.Get("/{id}/export", cfg.SpecHandler.Export)
		})

		r.Post("/search", cfg.SearchHandler.Search)
	})

	r.Get("/ws/chat", cfg.ChatHandler.Serve)

	return r
}
