package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/catalog"
	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/fetcher"
	"github.com/skinarb/skinarb/internal/refresh"
	"github.com/skinarb/skinarb/internal/settings"
	"github.com/skinarb/skinarb/pkg/healthprobe"
	"github.com/skinarb/skinarb/pkg/types"
)

// Server exposes the query surface, the control endpoints, health checks
// and metrics.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port   string
	Logger *zap.Logger
	Probe  *healthprobe.Probe

	Orchestrator *refresh.Orchestrator
	Scheduler    *refresh.Scheduler
	Settings     *settings.Store
	Credentials  *credentials.Store
	Breaker      *circuitbreaker.UpstreamBreaker
	Snapshots    *catalog.Snapshots

	// Probers run the minimal credential test request per marketplace.
	Probers map[types.Marketplace]fetcher.PageClient
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	h := &handlers{
		logger:       cfg.Logger,
		orchestrator: cfg.Orchestrator,
		scheduler:    cfg.Scheduler,
		settings:     cfg.Settings,
		credentials:  cfg.Credentials,
		breaker:      cfg.Breaker,
		snapshots:    cfg.Snapshots,
		probers:      cfg.Probers,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.Probe.Live())
	r.Get("/ready", cfg.Probe.Ready())

	r.Route("/api", func(r chi.Router) {
		// The websocket route must not inherit the request timeout
		r.Get("/ws", h.handleStatusStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/items", h.handleItems)
			r.Get("/status", h.handleStatus)
			r.Get("/statistics", h.handleStatistics)

			r.Post("/update", h.handleUpdate)
			r.Post("/update/incremental", h.handleUpdateIncremental)
			r.Post("/cancel", h.handleCancel)

			r.Get("/settings", h.handleGetSettings)
			r.Post("/settings", h.handlePostSettings)
			r.Get("/price_range", h.handleGetPriceRange)
			r.Post("/price_range", h.handlePostPriceRange)
			r.Get("/buff_price_range", h.handleGetBuyPriceRange)
			r.Post("/buff_price_range", h.handlePostBuyPriceRange)

			r.Get("/tokens/status", h.handleTokensStatus)
			r.Post("/tokens/{marketplace}", h.handleTokensUpdate)
			r.Post("/tokens/test/{marketplace}", h.handleTokensTest)
		})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // Websocket streams stay open
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		logger: cfg.Logger,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
