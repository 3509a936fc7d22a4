package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dialogkit/dialogkit/internal/middleware"
	"github.com/dialogkit/dialogkit/pkg/logger"
)

// RouteConfig carries the host-supplied settings the HTTP surface needs.
type RouteConfig struct {
	// JWTSecret verifies the host-issued caller tokens.
	JWTSecret string
	// RateLimitRequests and RateLimitWindow bound per-tenant request rates.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// DeleteScope, when non-empty, is the JWT scope required to delete
	// conversations.
	DeleteScope string
}

// Routes assembles the module's full HTTP surface. Hosts embed the module by
// mounting the returned router; standalone deployments serve it directly.
func Routes(cfg RouteConfig, agent *AgentHandler, hist *HistoryHandler, health *HealthHandler, log *logger.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/agent", func(r chi.Router) {
			r.Post("/message", agent.Message)
			r.Get("/suggestions", agent.Suggestions)
			r.Post("/conversations", agent.Start)
		})

		r.Route("/history/conversations", func(r chi.Router) {
			r.Get("/", hist.List)
			r.Get("/search", hist.Search)
			r.Post("/import", hist.Import)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", hist.Get)
				r.Get("/export", hist.Export)

				if cfg.DeleteScope != "" {
					r.With(middleware.RequireScope(cfg.DeleteScope)).Delete("/", hist.Delete)
				} else {
					r.Delete("/", hist.Delete)
				}
			})
		})
	})

	return r
}
