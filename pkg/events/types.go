// Package events pushes research progress to WebSocket clients.
//
// Every event goes to every connected client; session-scoped events
// carry a search_id and clients filter locally. All events for one
// search are broadcast from the goroutine running that search, so a
// client observes them in emission order.
package events

import "time"

// EventType is the wire discriminator for server → client messages.
type EventType string

const (
	// EventConnection greets a client right after the upgrade.
	EventConnection EventType = "connection"

	// EventHeartbeat is sent periodically while clients are connected.
	EventHeartbeat EventType = "heartbeat"

	// EventStepUpdate reports a research step transition.
	EventStepUpdate EventType = "step_update"

	// EventSearchComplete carries the final answer for a search.
	EventSearchComplete EventType = "search_complete"

	// EventError reports a failed or cancelled search.
	EventError EventType = "error"

	// EventSessionReset tells clients their session state was cleared.
	EventSessionReset EventType = "session_reset"

	// EventPong answers a client ping. Sent to that client only.
	EventPong EventType = "pong"
)

// Envelope is the server → client message frame.
type Envelope struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SearchID  string    `json:"search_id,omitempty"`
	Data      any       `json:"data"`
}

// ClientMessage is the client → server message frame. Only the type is
// meaningful today; "subscribe"/"unsubscribe" are accepted for forward
// compatibility and ignored.
type ClientMessage struct {
	Type     string `json:"type"`
	SearchID string `json:"search_id,omitempty"`
}
