package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/openprobe/deepsearch/pkg/version"
)

// healthHandler handles GET /health.
// Always healthy while the process serves requests: collaborators (LLM,
// search, sandbox) are excluded so an external outage cannot get this
// instance restarted.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:        "healthy",
		Version:       version.GitCommit,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	})
}

// statsHandler handles GET /stats with a point-in-time census of
// sessions, WebSocket clients, and running searches.
func (s *Server) statsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &StatsResponse{
		Sessions:       s.store.Stats(),
		Connections:    s.connManager.ActiveConnections(),
		RunningTasks:   s.searchService.ActiveRuns(),
		ActiveSearches: s.searchService.RunningIDs(),
	})
}
