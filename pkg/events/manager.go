package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/openprobe/deepsearch/pkg/config"
)

// Connection tracks one WebSocket client.
type Connection struct {
	ID          string
	ConnectedAt time.Time

	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionManager owns all WebSocket clients and fans events out to
// them. Events are not persisted; a client that connects mid-search
// picks up from the next step_update.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	heartbeatInterval time.Duration
	writeTimeout      time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	logger *slog.Logger
}

// NewConnectionManager creates a manager. Call Start to begin the
// heartbeat loop.
func NewConnectionManager(cfg config.EventsConfig) *ConnectionManager {
	return &ConnectionManager{
		connections:       make(map[string]*Connection),
		heartbeatInterval: cfg.HeartbeatInterval,
		writeTimeout:      cfg.WriteTimeout,
		logger:            slog.With("component", "events"),
	}
}

// Start launches the heartbeat loop. Calling Start twice is a no-op.
func (m *ConnectionManager) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.heartbeatLoop(ctx)
	m.logger.Info("Connection manager started", "heartbeat_interval", m.heartbeatInterval)
}

// Stop ends the heartbeat loop and closes every client connection.
func (m *ConnectionManager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.closeAll()
	m.logger.Info("Connection manager stopped")
}

func (m *ConnectionManager) heartbeatLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := m.ActiveConnections()
			if count == 0 {
				continue
			}
			m.Broadcast(newHeartbeat(count))
		}
	}
}

// HandleConnection owns a client from after the upgrade until it
// disconnects. It registers the connection, greets it, then serves the
// read loop. Blocks until the client goes away or ctx is cancelled.
func (m *ConnectionManager) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	c := &Connection{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		ctx:         connCtx,
		cancel:      cancel,
	}

	m.register(c)
	defer m.unregister(c)

	if err := m.send(c, newConnection(c.ID)); err != nil {
		m.logger.Warn("Failed to send connection event", "client_id", c.ID, "error", err)
		return
	}

	for {
		_, data, err := conn.Read(connCtx)
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Warn("Invalid client message", "client_id", c.ID, "error", err)
			continue
		}
		m.handleClientMessage(c, msg)
	}
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		if err := m.send(c, newPong()); err != nil {
			m.logger.Warn("Failed to send pong", "client_id", c.ID, "error", err)
		}
	case "subscribe", "unsubscribe":
		// Reserved. Every client receives every event today; filtering
		// by search_id happens client side.
		m.logger.Debug("Subscription message ignored", "client_id", c.ID, "type", msg.Type, "search_id", msg.SearchID)
	default:
		m.logger.Warn("Unknown client message type", "client_id", c.ID, "type", msg.Type)
	}
}

// Broadcast sends an event to every connected client. A client whose
// send fails is evicted so one dead socket cannot stall the rest.
// Callers that need ordered delivery must call Broadcast from a single
// goroutine; each search's run loop does exactly that.
func (m *ConnectionManager) Broadcast(event Envelope) {
	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("Failed to marshal event", "type", event.Type, "error", err)
		return
	}

	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := m.sendRaw(c, data); err != nil {
			m.logger.Warn("Broadcast send failed, evicting client",
				"client_id", c.ID, "type", event.Type, "error", err)
			m.evict(c)
		}
	}
}

// ActiveConnections returns the number of connected clients.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *ConnectionManager) send(c *Connection, event Envelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return m.sendRaw(c, data)
}

// sendRaw writes one frame with a per-send timeout so a slow client
// cannot block the sender indefinitely.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

func (m *ConnectionManager) register(c *Connection) {
	m.mu.Lock()
	m.connections[c.ID] = c
	count := len(m.connections)
	m.mu.Unlock()

	m.logger.Info("Client connected", "client_id", c.ID, "clients", count)
}

func (m *ConnectionManager) unregister(c *Connection) {
	m.mu.Lock()
	_, present := m.connections[c.ID]
	delete(m.connections, c.ID)
	count := len(m.connections)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")

	if present {
		m.logger.Info("Client disconnected", "client_id", c.ID, "clients", count)
	}
}

// evict drops a client after a failed send. Cancelling the connection
// context aborts its read loop, which runs the normal unregister path.
func (m *ConnectionManager) evict(c *Connection) {
	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
}

func (m *ConnectionManager) closeAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.connections = make(map[string]*Connection)
	m.mu.Unlock()

	for _, c := range conns {
		c.cancel()
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
