package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Ravindra162/prepAI-sub000/internal/api"
	"github.com/Ravindra162/prepAI-sub000/internal/config"
	"github.com/Ravindra162/prepAI-sub000/internal/metrics"
	"github.com/Ravindra162/prepAI-sub000/internal/store"
)

// New builds the gateway router. devBackend, when non-nil, is the built-in
// development interview backend served at /interview.
func New(cfg *config.Config, registry *store.Registry, archive *store.Archive, devBackend http.Handler, log *zap.Logger) http.Handler {
	h := api.NewHandlers(cfg, registry, archive, log)
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware("interview-gateway"))

	r.Get("/api/v1/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Post("/api/v1/token", h.IssueToken)
	r.Get("/api/v1/sessions", h.ListSessions)
	r.Get("/api/v1/sessions/{id}", h.GetSession)
	r.Get("/api/v1/archives", h.RecentArchives)
	r.Get("/api/v1/archives/{id}", h.GetArchive)

	r.Get("/ws/interview", h.InterviewWS)

	if devBackend != nil {
		r.Handle("/interview", devBackend)
	}

	return r
}
