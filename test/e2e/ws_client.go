package e2e

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

// WSEvent is one envelope received over the event stream.
type WSEvent struct {
	Type     string
	SearchID string
	Raw      json.RawMessage
	Parsed   map[string]any
	Received time.Time
}

// Data returns the envelope's data object. Never nil, so assertions can
// index into it directly.
func (e WSEvent) Data() map[string]any {
	if d, ok := e.Parsed["data"].(map[string]any); ok {
		return d
	}
	return map[string]any{}
}

// WSClient is a test client for the event stream. It reads every frame
// into an in-memory list the moment it arrives; assertions poll that
// list rather than the socket, so no event is ever lost between waits.
type WSClient struct {
	t      *testing.T
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}
	once   sync.Once

	mu     sync.Mutex
	events []WSEvent
}

// WSConnect dials the stream and starts the background reader. The
// client closes itself when the test ends.
func WSConnect(t *testing.T, wsURL string) *WSClient {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	require.NoError(t, err, "dial %s", wsURL)

	c := &WSClient{
		t:      t,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(c.Close)
	return c
}

func (c *WSClient) readLoop() {
	defer close(c.doneCh)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}
		ev := WSEvent{Raw: json.RawMessage(data), Received: time.Now()}
		var parsed map[string]any
		if err := json.Unmarshal(data, &parsed); err == nil {
			ev.Parsed = parsed
			ev.Type, _ = parsed["type"].(string)
			ev.SearchID, _ = parsed["search_id"].(string)
		}
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

// Send writes one JSON message to the server.
func (c *WSClient) Send(v any) {
	c.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(c.t, err)

	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, data))
}

// Events returns a snapshot of everything received so far.
func (c *WSClient) Events() []WSEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WSEvent, len(c.events))
	copy(out, c.events)
	return out
}

// EventsByType filters the snapshot by envelope type.
func (c *WSClient) EventsByType(eventType string) []WSEvent {
	var out []WSEvent
	for _, ev := range c.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// EventsForSearch filters the snapshot by search ID.
func (c *WSClient) EventsForSearch(searchID string) []WSEvent {
	var out []WSEvent
	for _, ev := range c.Events() {
		if ev.SearchID == searchID {
			out = append(out, ev)
		}
	}
	return out
}

// WaitForEvent blocks until an event matching the predicate has been
// received, scanning from the start of the stream. It fails the test on
// timeout.
func (c *WSClient) WaitForEvent(predicate func(WSEvent) bool, timeout time.Duration) WSEvent {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		for _, ev := range c.Events() {
			if predicate(ev) {
				return ev
			}
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("timed out after %v waiting for event; received %s", timeout, c.typeSummary())
			return WSEvent{}
		}
		time.Sleep(25 * time.Millisecond)
	}
}

// WaitForEventType waits for the first event of the given type.
func (c *WSClient) WaitForEventType(eventType string, timeout time.Duration) WSEvent {
	c.t.Helper()
	return c.WaitForEvent(func(ev WSEvent) bool { return ev.Type == eventType }, timeout)
}

// CollectUntil waits for the predicate to match, then returns the whole
// stream up to and including the matching event.
func (c *WSClient) CollectUntil(predicate func(WSEvent) bool, timeout time.Duration) []WSEvent {
	c.t.Helper()
	c.WaitForEvent(predicate, timeout)

	events := c.Events()
	for i, ev := range events {
		if predicate(ev) {
			return events[:i+1]
		}
	}
	return events
}

func (c *WSClient) typeSummary() string {
	events := c.Events()
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	data, _ := json.Marshal(types)
	return string(data)
}

// Close tears down the connection and waits for the reader to exit.
func (c *WSClient) Close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.conn.CloseNow()
		select {
		case <-c.doneCh:
		case <-time.After(2 * time.Second):
		}
	})
}
