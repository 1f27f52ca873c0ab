// Package api exposes the research service over HTTP: the REST routes for
// submitting and inspecting searches, the WebSocket upgrade endpoint, and
// the Prometheus scrape endpoint. All error responses share one JSON shape
// rendered by the outermost middleware.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/events"
	"github.com/openprobe/deepsearch/pkg/metrics"
	"github.com/openprobe/deepsearch/pkg/orchestrator"
	"github.com/openprobe/deepsearch/pkg/session"
)

// Server is the HTTP front of the application. It owns the echo router and
// the http.Server wrapped around it; lifecycle is Start/StartWithListener
// then Shutdown.
type Server struct {
	cfg           config.ServerConfig
	searchService *orchestrator.Service
	store         *session.Store
	connManager   *events.ConnectionManager
	metrics       *metrics.Metrics
	echo          *echo.Echo
	http          *http.Server
	startTime     time.Time
	logger        *slog.Logger
}

// New builds the server and registers all routes and middleware.
func New(cfg config.ServerConfig, svc *orchestrator.Service, store *session.Store, cm *events.ConnectionManager, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:           cfg,
		searchService: svc,
		store:         store,
		connManager:   cm,
		metrics:       m,
		startTime:     time.Now().UTC(),
		logger:        slog.With("component", "api"),
	}

	e := echo.New()

	// Order matters: the logger observes the final status, the error body
	// renderer must see every error (including panics converted by the
	// recovery layer), and the header middleware runs before handlers write.
	e.Use(s.requestLogger())
	e.Use(s.renderErrors())
	e.Use(recoverPanics())
	e.Use(corsMiddleware(cfg.CORSOrigins))
	e.Use(securityHeaders())

	s.registerRoutes(e)

	s.echo = e
	s.http = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	e.POST("/api/v1/search", s.startSearchHandler)
	e.GET("/api/v1/search/:id/status", s.searchStatusHandler)
	e.GET("/api/v1/search/:id", s.getSearchHandler)
	e.POST("/api/v1/search/:id/cancel", s.cancelSearchHandler)
	e.POST("/api/v1/new-chat", s.newChatHandler)

	e.GET("/health", s.healthHandler)
	e.GET("/stats", s.statsHandler)
	e.GET("/ws", s.wsHandler)
	e.GET("/metrics", s.metricsHandler)
}

// metricsHandler serves the Prometheus registry.
func (s *Server) metricsHandler(c *echo.Context) error {
	s.metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.StartWithListener(ln)
}

// StartWithListener serves on an already-bound listener. Tests use this
// with an ephemeral port. Returns nil after a clean Shutdown.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
