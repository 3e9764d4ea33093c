package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasktracker/internal/api/middleware"
	"github.com/rs/cors"
)

// RouterConfig holds what NewRouter needs.
type RouterConfig struct {
	Handler        *AdminHandler
	Tokens         middleware.TokenValidator
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the admin router. /health and /metrics are public; every
// /api/v1 route requires a bearer token.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewTraceMiddleware(log))

	authMiddleware := middleware.NewAuthMiddleware(cfg.Tokens)
	h := cfg.Handler

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/chats/{chatID}/process", h.ProcessChat)
		r.Post("/chats/{chatID}/parse", h.ParseChat)
		r.Get("/chats/{chatID}/pending", h.ListPending)
		r.Post("/passes", h.RunPass)
		r.Post("/recount", h.Recount)
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Post("/staff", h.AddStaff)
		r.Delete("/staff/{userID}", h.RemoveStaff)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", "error", err)
		}
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if len(cfg.AllowedOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	})
	return c.Handler(r)
}
