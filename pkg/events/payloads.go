package events

import (
	"time"

	"github.com/openprobe/deepsearch/pkg/models"
)

// ConnectionData confirms the upgrade and hands the client its ID.
type ConnectionData struct {
	Connected  bool      `json:"connected"`
	ClientID   string    `json:"client_id"`
	ServerTime time.Time `json:"server_time"`
}

// HeartbeatData keeps idle connections warm and reports the client count.
type HeartbeatData struct {
	ServerTime  time.Time `json:"server_time"`
	ClientCount int       `json:"client_count"`
}

// StepUpdateData mirrors one research step as stored on the session.
type StepUpdateData struct {
	StepID   string               `json:"step_id"`
	StepType models.StepType      `json:"step_type"`
	Status   models.StepStatus    `json:"status"`
	Title    string               `json:"title"`
	Content  string               `json:"content"`
	Metadata *models.StepMetadata `json:"metadata,omitempty"`
}

// SearchCompleteData announces a finished search. Result and FinalAnswer
// carry the same text; older clients read result, newer ones final_answer.
type SearchCompleteData struct {
	SearchID    string  `json:"search_id"`
	Result      string  `json:"result"`
	TotalSteps  int     `json:"total_steps"`
	Duration    float64 `json:"duration"` // seconds
	FinalAnswer string  `json:"final_answer"`
}

// ErrorData reports a failed or cancelled search to clients.
type ErrorData struct {
	Error       string           `json:"error"`
	StepID      string           `json:"step_id,omitempty"`
	Recoverable bool             `json:"recoverable"`
	ErrorCode   models.ErrorKind `json:"error_code,omitempty"`
}

// SessionResetData tells clients to drop local session state.
type SessionResetData struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// PongData answers a client ping.
type PongData struct {
	Message string `json:"message"`
}

// NewStepUpdate builds a step_update envelope from a session step.
func NewStepUpdate(searchID string, step models.Step) Envelope {
	meta := step.Metadata
	if meta.Empty() {
		meta = nil
	}
	return Envelope{
		Type:      EventStepUpdate,
		Timestamp: time.Now().UTC(),
		SearchID:  searchID,
		Data: StepUpdateData{
			StepID:   step.ID,
			StepType: step.Type,
			Status:   step.Status,
			Title:    step.Title,
			Content:  step.Content,
			Metadata: meta,
		},
	}
}

// NewSearchComplete builds the terminal success envelope for a search.
func NewSearchComplete(searchID, answer string, totalSteps int, duration time.Duration) Envelope {
	return Envelope{
		Type:      EventSearchComplete,
		Timestamp: time.Now().UTC(),
		SearchID:  searchID,
		Data: SearchCompleteData{
			SearchID:    searchID,
			Result:      answer,
			TotalSteps:  totalSteps,
			Duration:    duration.Seconds(),
			FinalAnswer: answer,
		},
	}
}

// NewError builds an error envelope. Recoverable means the client may
// start a new search on the same connection.
func NewError(searchID, message, stepID string, recoverable bool, code models.ErrorKind) Envelope {
	return Envelope{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		SearchID:  searchID,
		Data: ErrorData{
			Error:       message,
			StepID:      stepID,
			Recoverable: recoverable,
			ErrorCode:   code,
		},
	}
}

// NewSessionReset builds the envelope broadcast when sessions are cleared.
func NewSessionReset(reason string) Envelope {
	return Envelope{
		Type:      EventSessionReset,
		Timestamp: time.Now().UTC(),
		Data: SessionResetData{
			Message: "Session has been reset",
			Reason:  reason,
		},
	}
}

func newConnection(clientID string) Envelope {
	now := time.Now().UTC()
	return Envelope{
		Type:      EventConnection,
		Timestamp: now,
		Data: ConnectionData{
			Connected:  true,
			ClientID:   clientID,
			ServerTime: now,
		},
	}
}

func newHeartbeat(clientCount int) Envelope {
	now := time.Now().UTC()
	return Envelope{
		Type:      EventHeartbeat,
		Timestamp: now,
		Data: HeartbeatData{
			ServerTime:  now,
			ClientCount: clientCount,
		},
	}
}

func newPong() Envelope {
	return Envelope{
		Type:      EventPong,
		Timestamp: time.Now().UTC(),
		Data:      PongData{Message: "pong"},
	}
}
