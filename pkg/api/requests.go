package api

// StartSearchRequest is the HTTP request body for POST /api/v1/search.
type StartSearchRequest struct {
	Query string `json:"query"`
}

// CancelSearchRequest is the optional body for POST /api/v1/search/:id/cancel.
type CancelSearchRequest struct {
	Reason string `json:"reason,omitempty"`
}
