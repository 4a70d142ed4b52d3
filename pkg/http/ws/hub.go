package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections and broadcasts messages to the clients
// of a game session. A client is either the host or a participant; both are
// addressed by an opaque client id (host user id or participant id).
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection // client_id -> connection
	sessions    map[uuid.UUID][]uuid.UUID // session_id -> []client_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]*Connection),
		sessions:    make(map[uuid.UUID][]uuid.UUID),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a client, replacing any previous one.
func (h *Hub) RegisterConnection(clientID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[clientID]; exists {
		old.Close()
	}

	h.connections[clientID] = conn
	h.logger.Info().Str("client_id", clientID.String()).Msg("connection registered")
}

// UnregisterConnection removes a connection and detaches it from every session.
func (h *Hub) UnregisterConnection(clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[clientID]; exists {
		conn.Close()
		delete(h.connections, clientID)
		h.logger.Info().Str("client_id", clientID.String()).Msg("connection unregistered")
	}

	for sessionID, clients := range h.sessions {
		for i, id := range clients {
			if id == clientID {
				h.sessions[sessionID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
	}
}

// JoinSession associates a client with a session for targeted broadcasts.
func (h *Hub) JoinSession(sessionID, clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sessions[sessionID]
	for _, id := range clients {
		if id == clientID {
			return // already joined
		}
	}
	h.sessions[sessionID] = append(clients, clientID)
}

// LeaveSession removes a client from a session.
func (h *Hub) LeaveSession(sessionID, clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sessions[sessionID]
	for i, id := range clients {
		if id == clientID {
			h.sessions[sessionID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
}

// SessionClients returns the client ids currently attached to a session.
func (h *Hub) SessionClients(sessionID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.sessions[sessionID]
	out := make([]uuid.UUID, len(clients))
	copy(out, clients)
	return out
}

// BroadcastToSession sends a message to every client of a session.
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, msg Message) error {
	h.mu.RLock()
	clients := h.sessions[sessionID]
	h.mu.RUnlock()

	var firstErr error
	for _, clientID := range clients {
		if err := h.SendToClient(clientID, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendToClient delivers a message to a specific client.
func (h *Hub) SendToClient(clientID uuid.UUID, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[clientID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// Connection represents a WebSocket connection with a buffered send queue.
type Connection struct {
	conn     *websocket.Conn
	sendCh   chan Message
	mu       sync.Mutex
	closed   bool
	pongWait time.Duration
	logger   zerolog.Logger
}

// NewConnection wraps a WebSocket connection. pongWait bounds how long a
// silent peer is kept before the read side gives up; pings go out often
// enough that a live peer always answers in time.
func NewConnection(conn *websocket.Conn, pongWait time.Duration, logger zerolog.Logger) *Connection {
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	return &Connection{
		conn:     conn,
		sendCh:   make(chan Message, 256),
		pongWait: pongWait,
		logger:   logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump sends messages from the send queue until the queue closes,
// interleaving pings so an idle lobby connection stays alive.
func (c *Connection) WritePump() {
	pinger := time.NewTicker(c.pongWait * 9 / 10)
	defer func() {
		pinger.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-pinger.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler until the peer disconnects.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Client connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
