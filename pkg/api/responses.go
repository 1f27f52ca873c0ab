package api

import "github.com/openprobe/deepsearch/pkg/session"

// StartSearchResponse is returned by POST /api/v1/search.
type StartSearchResponse struct {
	SearchID string `json:"search_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// SearchStatusResponse is the lightweight polling shape for
// GET /api/v1/search/:id/status. Progress is absent until the first step
// exists.
type SearchStatusResponse struct {
	SearchID    string `json:"search_id"`
	Status      string `json:"status"`
	CurrentStep string `json:"current_step"`
	Progress    *int   `json:"progress,omitempty"`
}

// CancelSearchResponse is returned by POST /api/v1/search/:id/cancel.
type CancelSearchResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewChatResponse is returned by POST /api/v1/new-chat.
type NewChatResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	Sessions       session.Stats `json:"sessions"`
	Connections    int           `json:"connections"`
	RunningTasks   int           `json:"running_tasks"`
	ActiveSearches []string      `json:"active_searches"`
}

// ErrorResponse is the uniform error body for every non-2xx response.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
	Timestamp string `json:"timestamp"`
	SearchID  string `json:"search_id,omitempty"`
}
