package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pluginhub/pluginhub/internal/auth"
	"github.com/pluginhub/pluginhub/internal/middleware"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// NewRouter creates and configures the API router. svc is wrapped so that
// source updates never overlap with running queries.
func NewRouter(authService *auth.Service, svc PluginService, validator *plugins.ManifestValidator, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "api")
	svc = Synchronized(svc)
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	systemHandler := NewSystemHandler(authService, svc)
	pluginsHandler := NewPluginsHandler(svc, logger)
	sourcesHandler := NewSourcesHandler(svc, logger)
	manifestsHandler := NewManifestsHandler(validator)

	// Public routes (no auth required)
	r.Get("/health", systemHandler.Health)
	r.Get("/ready", systemHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", systemHandler.Login)

		r.Get("/sources", sourcesHandler.List)
		r.Get("/plugins/latest", pluginsHandler.Latest)
		r.Get("/plugins/{id}/versions", pluginsHandler.Versions)
		r.Post("/manifests/validate", manifestsHandler.Validate)

		// Protected routes (require JWT)
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(authService))
			r.Put("/sources", sourcesHandler.Replace)
		})
	})

	return r
}
