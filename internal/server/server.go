// Package server is the HTTP and WebSocket API the operator uses to tune,
// toggle and observe the automation engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbengine/internal/server/handler"
	"github.com/alanyoungcy/arbengine/internal/server/middleware"
	"github.com/alanyoungcy/arbengine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // if empty, authentication is disabled
	RateLimitPerSec float64
	RateLimitBurst  int
}

// Handlers aggregates the HTTP handlers the server registers. History and
// Audit are optional and only present when Postgres is configured.
type Handlers struct {
	Health     *handler.HealthHandler
	Automation *handler.AutomationHandler
	History    *handler.HistoryHandler
	Audit      *handler.AuditHandler
	Metrics    http.Handler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. wsHub may be nil
// when no signal bus is configured.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	a := handlers.Automation
	mux.HandleFunc("GET /api/automation/config", a.GetConfig)
	mux.HandleFunc("PATCH /api/automation/config", a.UpdateConfig)
	mux.HandleFunc("POST /api/automation/config/reset", a.ResetConfig)
	mux.HandleFunc("GET /api/automation/stats", a.GetStats)
	mux.HandleFunc("POST /api/automation/stats/reset", a.ResetStats)
	mux.HandleFunc("GET /api/automation/log", a.GetLog)
	mux.HandleFunc("POST /api/automation/toggle", a.Toggle)
	mux.HandleFunc("POST /api/automation/scan", a.Scan)

	if handlers.History != nil {
		mux.HandleFunc("GET /api/automation/history", handlers.History.List)
		mux.HandleFunc("GET /api/automation/history/{id}", handlers.History.Get)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/automation/audit", handlers.Audit.List)
	}
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	h = middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		handler: h,
		logger:  logger.With(slog.String("component", "server")),
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
