package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pharmapulse/internal/infrastructure"
	"pharmapulse/pkg/contracts/events"
)

// Keepalive: the server pings every pingPeriod and drops a peer that has
// not answered within pongWait.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBufferSize = 256
)

// Connection is the subset of *websocket.Conn used by Client.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

type gorillaConn struct {
	*websocket.Conn
}

func (c gorillaConn) RemoteAddr() string {
	return c.Conn.RemoteAddr().String()
}

// WrapConn adapts a gorilla connection to Connection.
func WrapConn(conn *websocket.Conn) Connection {
	return gorillaConn{Conn: conn}
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages, closed by the hub
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for conn. traceID may be empty.
func NewClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = hub.logger
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client identifier sent in the connection event.
func (c *Client) ID() string { return c.id }

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// enqueue must be called with the hub lock held or from the hub goroutine.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// ReadPump reads client frames until the connection fails, then
// unregisters the client. Run it on the handler goroutine.
func (c *Client) ReadPump() {
	ctx := c.context()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		c.logger.InfoContext(ctx, "WebSocket client disconnected",
			slog.Duration("connected_for", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(ctx, "WebSocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
		c.hub.messagesReceived.Add(1)
		c.hub.metrics.RecordMessage(ctx, "inbound", "client_message", len(data))
		c.handleMessage(ctx, data)
	}
}

// handleMessage answers ping with pong. Heartbeats only refresh the read
// deadline, which ReadMessage already did.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var msg events.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.DebugContext(ctx, "Ignoring malformed client message", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case events.TypeHeartbeat:
	case events.TypePing:
		payload, err := encodeEvent(events.TypePong, nil, c.traceID)
		if err != nil || !c.hub.sendTo(c, payload) {
			c.logger.DebugContext(ctx, "Pong not queued")
		}
	default:
		c.logger.DebugContext(ctx, "Ignoring client message", slog.String("type", msg.Type))
	}
}

// WritePump forwards queued events and keepalive pings. It sends a close
// frame and returns once the hub closes the send channel.
func (c *Client) WritePump() {
	ctx := c.context()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind = websocket.TextMessage
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data = msg
		case <-ticker.C:
			kind = websocket.PingMessage
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			c.logger.DebugContext(ctx, "WebSocket write failed",
				slog.Int("frame", kind),
				slog.String("error", err.Error()))
			return
		}
	}
}
