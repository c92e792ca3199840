package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sproutwatch/sproutwatch/internal/api/handlers"
	"github.com/sproutwatch/sproutwatch/internal/api/middleware"
	"github.com/sproutwatch/sproutwatch/internal/config"
	"github.com/sproutwatch/sproutwatch/internal/metrics"
)

// NewRouter creates the HTTP router with all API routes. live serves the
// WebSocket feed.
func NewRouter(cfg *config.Config, h *handlers.Handlers, live http.Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.NewAPIKeyAuth(cfg.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Get("/active", h.GetActiveProfile)
			r.Put("/active", h.SelectProfile)
		})

		r.Get("/readings/latest", h.LatestReading)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/activity", h.ListActivity)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/water", h.Water)
			r.Post("/light", h.ToggleLight)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", h.SendMessage)
			r.Get("/messages", h.ListMessages)
			r.Delete("/messages", h.ResetMessages)
		})

		r.Route("/probe", func(r chi.Router) {
			r.Get("/", h.LastProbe)
			r.Post("/", h.RunProbe)
		})

		r.Handle("/live", live)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "sproutwatch",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "sproutwatch",
		})
	}
}
