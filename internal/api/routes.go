package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/reachify/beacon/internal/config"
)

// SetupRoutes assembles the router. Health stays outside the /api group so
// load balancer checks do not mix with the tracked surface.
func SetupRoutes(cfg *config.ServerConfig, h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/send-email", h.SendEmail)
		r.Get("/click", h.HandleClick)
		r.Get("/pixel/{id}", h.HandlePixel)
		r.Get("/tracking-status", h.TrackingStatus)
		r.Get("/tracking/{id}", h.TrackingByID)
	})

	return r
}
