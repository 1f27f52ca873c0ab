package api

import (
	"fmt"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/session"
)

// startSearchHandler handles POST /api/v1/search.
// Accepts the query, registers a session, and returns immediately; the
// research run proceeds in the background and reports over the WebSocket.
func (s *Server) startSearchHandler(c *echo.Context) error {
	var req StartSearchRequest
	if err := c.Bind(&req); err != nil {
		return &apiError{status: http.StatusBadRequest, code: string(models.KindInvalidQuery), detail: "invalid request body"}
	}

	id, err := s.searchService.StartSearch(req.Query)
	if err != nil {
		return mapServiceError(err, "")
	}

	return c.JSON(http.StatusOK, &StartSearchResponse{
		SearchID: id,
		Status:   "started",
		Message:  "Search initiated",
	})
}

// searchStatusHandler handles GET /api/v1/search/:id/status.
func (s *Server) searchStatusHandler(c *echo.Context) error {
	id := c.Param("id")
	sess, ok := s.store.Get(id)
	if !ok {
		return mapServiceError(session.ErrNotFound, id)
	}

	return c.JSON(http.StatusOK, &SearchStatusResponse{
		SearchID:    sess.ID,
		Status:      string(sess.Status),
		CurrentStep: currentStepLabel(sess),
		Progress:    progressEstimate(sess),
	})
}

// getSearchHandler handles GET /api/v1/search/:id and returns the full
// session record including steps, sources, and the final answer.
func (s *Server) getSearchHandler(c *echo.Context) error {
	id := c.Param("id")
	sess, ok := s.store.Get(id)
	if !ok {
		return mapServiceError(session.ErrNotFound, id)
	}
	return c.JSON(http.StatusOK, sess)
}

// cancelSearchHandler handles POST /api/v1/search/:id/cancel.
func (s *Server) cancelSearchHandler(c *echo.Context) error {
	id := c.Param("id")

	// The reason body is optional; a missing or malformed body cancels
	// just the same.
	var req CancelSearchRequest
	_ = c.Bind(&req)

	if err := s.searchService.CancelSearch(c.Request().Context(), id); err != nil {
		return mapServiceError(err, id)
	}

	s.logger.Info("Search cancelled by request", "search_id", id, "reason", strings.TrimSpace(req.Reason))
	return c.JSON(http.StatusOK, &CancelSearchResponse{
		Status:  "cancelled",
		Message: fmt.Sprintf("Search %s cancelled successfully", id),
	})
}

// newChatHandler handles POST /api/v1/new-chat. Cancels every running
// search, waits for them to settle, clears the store, and tells
// connected clients to reset.
func (s *Server) newChatHandler(c *echo.Context) error {
	cleared := s.searchService.ResetAll(c.Request().Context())
	s.logger.Info("New chat session started", "cleared_sessions", cleared)

	return c.JSON(http.StatusOK, &NewChatResponse{
		Status:  "reset",
		Message: "Previous session cleared, ready for new search",
	})
}

// currentStepLabel names what the session is doing right now: the last
// running step wins, a running session without one is "processing", and a
// finished one reads "completed".
func currentStepLabel(sess *models.Session) string {
	label := "idle"
	if len(sess.Steps) == 0 {
		return label
	}
	for i := len(sess.Steps) - 1; i >= 0; i-- {
		if sess.Steps[i].Status == models.StepRunning {
			return sess.Steps[i].Title
		}
	}
	switch sess.Status {
	case models.StatusRunning:
		label = "processing"
	case models.StatusCompleted:
		label = "completed"
	}
	return label
}

// progressEstimate maps completed steps onto a 0..100 scale. Plans are
// assumed to have at least four steps so early progress does not jump,
// and running sessions cap at 95 until the final answer lands.
func progressEstimate(sess *models.Session) *int {
	if len(sess.Steps) == 0 {
		return nil
	}

	completed := 0
	for _, st := range sess.Steps {
		if st.Status == models.StepCompleted {
			completed++
		}
	}
	total := len(sess.Steps)
	if total < 4 {
		total = 4
	}
	p := completed * 100 / total
	if p > 95 {
		p = 95
	}
	if sess.Status == models.StatusCompleted {
		p = 100
	}
	return &p
}
