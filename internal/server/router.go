package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-ai/mnemo/internal/api"
	"github.com/mnemo-ai/mnemo/internal/api/handlers"
	"github.com/mnemo-ai/mnemo/internal/api/middleware"
)

type RouterConfig struct {
	ItemHandler     *handlers.ItemHandler
	SearchHandler   *handlers.SearchHandler
	ChatHandler     *handlers.ChatHandler
	MemoryHandler   *handlers.MemoryHandler
	ToolsHandler    *handlers.ToolsHandler
	DocumentHandler *handlers.DocumentHandler
	StatsHandler    *handlers.StatsHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 10 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/items", func(r chi.Router) {
		r.Post("/", cfg.ItemHandler.Create)
		r.Get("/", cfg.ItemHandler.List)
		r.Get("/{id}", cfg.ItemHandler.Get)
		r.Put("/{id}", cfg.ItemHandler.Update)
		r.Delete("/{id}", cfg.ItemHandler.Delete)
	})
	r.Get("/tags", cfg.ItemHandler.Tags)

	r.Post("/search", cfg.SearchHandler.Search)
	r.Post("/chat", cfg.ChatHandler.Chat)
	r.Get("/memory/{conversationID}/window", cfg.MemoryHandler.Window)

	r.Route("/tools", func(r chi.Router) {
		r.Get("/", cfg.ToolsHandler.List)
		r.Post("/dispatch", cfg.ToolsHandler.Dispatch)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Ingest)
		r.Get("/{id}/download", cfg.DocumentHandler.GetDownloadURL)
	})

	r.Get("/stats", cfg.StatsHandler.Get)

	return r
}
