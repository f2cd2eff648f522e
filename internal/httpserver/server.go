// Package httpserver assembles the gateway's chi router: middleware chain,
// route groups, and the *http.Server that serves them.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lumenpay/gateway/internal/config"
	"github.com/lumenpay/gateway/internal/intake"
	"github.com/lumenpay/gateway/internal/logger"
	"github.com/lumenpay/gateway/internal/metrics"
	"github.com/lumenpay/gateway/internal/ratelimit"
)

// Server wires the intake handlers, middleware, and the underlying
// *http.Server.
type Server struct {
	httpServer *http.Server
}

// New builds the HTTP server with a configured router.
func New(cfg *config.Config, h *intake.Handlers, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) *Server {
	router := chi.NewRouter()
	ConfigureRouter(router, cfg, h, metricsCollector, appLogger)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      router,
		},
	}
}

// ConfigureRouter attaches the gateway's routes to an existing router.
func ConfigureRouter(router chi.Router, cfg *config.Config, h *intake.Handlers, metricsCollector *metrics.Metrics, appLogger zerolog.Logger) {
	if router == nil {
		return
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"Location"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	router.Use(securityHeadersMiddleware)
	router.Use(logger.Middleware(appLogger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	rateLimitCfg := ratelimit.Config{
		GlobalEnabled: cfg.RateLimit.GlobalEnabled,
		GlobalLimit:   cfg.RateLimit.GlobalLimit,
		GlobalWindow:  cfg.RateLimit.GlobalWindow.Duration,
		PerIPEnabled:  cfg.RateLimit.PerIPEnabled,
		PerIPLimit:    cfg.RateLimit.PerIPLimit,
		PerIPWindow:   cfg.RateLimit.PerIPWindow.Duration,
		Metrics:       metricsCollector,
	}
	router.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	router.Use(ratelimit.IPLimiter(rateLimitCfg))

	// Lightweight endpoints: health checks, metrics, job introspection.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(5 * time.Second))
		r.Get("/health", h.Health)
		r.Get("/health/db", h.HealthDB)
		r.Get("/health/redis", h.HealthRedis)
		r.Get("/test/jobs/status", h.TestJobsStatus)
		r.Handle("/metrics", promhttp.Handler())
	})

	// Payment/refund/webhook endpoints: longer timeout to cover DB
	// transactions and (for subscription creation) secret generation.
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Post("/payments", h.CreatePayment)
		r.Get("/payments/{id}", h.GetPayment)
		r.Post("/payments/{id}/refund", h.CreateRefund)

		r.Post("/webhooks", h.CreateSubscription)
		r.Get("/webhooks", h.ListSubscriptions)
		r.Get("/webhooks/{id}", h.GetSubscription)
		r.Patch("/webhooks/{id}", h.UpdateSubscription)
		r.Delete("/webhooks/{id}", h.DeleteSubscription)
		r.Get("/webhooks/{id}/events", h.GetSubscriptionEvents)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
