package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/openprobe/deepsearch/pkg/models"
	"github.com/openprobe/deepsearch/pkg/orchestrator"
	"github.com/openprobe/deepsearch/pkg/session"
)

// apiError carries everything the error body needs. Handlers return it
// (usually via mapServiceError) and renderErrors turns it into JSON.
type apiError struct {
	status   int
	code     string
	detail   string
	searchID string
}

func (e *apiError) Error() string {
	return e.detail
}

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error, searchID string) error {
	var runErr *orchestrator.RunError
	if errors.As(err, &runErr) {
		switch runErr.Kind {
		case models.KindInvalidQuery:
			return &apiError{status: http.StatusBadRequest, code: string(runErr.Kind), detail: runErr.Msg, searchID: searchID}
		case models.KindCapacity:
			return &apiError{status: http.StatusTooManyRequests, code: string(runErr.Kind), detail: runErr.Msg, searchID: searchID}
		}
	}
	if errors.Is(err, session.ErrNotFound) {
		return &apiError{status: http.StatusNotFound, code: "not_found", detail: "search session not found", searchID: searchID}
	}
	if errors.Is(err, orchestrator.ErrNotRunning) {
		return &apiError{status: http.StatusConflict, code: "not_running", detail: "search is not running", searchID: searchID}
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err, "search_id", searchID)
	return &apiError{status: http.StatusInternalServerError, code: "internal_error", detail: "internal server error", searchID: searchID}
}

// renderErrors converts any error flowing out of the handler chain into
// the uniform error body. Unmatched routes surface here as echo's own
// HTTPError values.
func (s *Server) renderErrors() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			resp := &ErrorResponse{Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
			status := http.StatusInternalServerError

			var ae *apiError
			var he *echo.HTTPError
			var sc echo.HTTPStatusCoder
			switch {
			case errors.As(err, &ae):
				status = ae.status
				resp.Detail = ae.detail
				resp.ErrorCode = ae.code
				resp.SearchID = ae.searchID
			case errors.As(err, &he):
				status = he.Code
				resp.Detail = fmt.Sprintf("%v", he.Message)
				resp.ErrorCode = codeForStatus(status)
			case errors.As(err, &sc):
				status = sc.StatusCode()
				resp.Detail = err.Error()
				resp.ErrorCode = codeForStatus(status)
			default:
				resp.Detail = "internal server error"
				resp.ErrorCode = "internal_error"
				s.logger.Error("Unhandled request error", "error", err, "path", c.Request().URL.Path)
			}

			return c.JSON(status, resp)
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	default:
		return "internal_error"
	}
}
