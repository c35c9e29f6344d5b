package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pharmapulse/internal/infrastructure"
	"pharmapulse/pkg/contracts/events"
)

const broadcastQueueSize = 64

// Event is the envelope of every message sent to clients.
type Event = events.Envelope

type outbound struct {
	messageType string
	payload     []byte
}

// HubStats is a point-in-time view of hub counters.
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	stopped bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *Metrics

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a Hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		// a nil meter never fails
		metrics, _ = NewMetrics(nil)
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in its own goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "normal")

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.totalConnections.Add(1)
	ctx := client.context()
	h.metrics.RecordConnection(ctx)

	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	payload, err := encodeEvent(events.TypeConnection, events.Connected{
		Status:   "connected",
		Message:  "Connected to Pharma Pulse",
		ClientID: client.id,
	}, client.traceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling connection message", slog.String("error", err.Error()))
		return
	}

	if !client.enqueue(payload) {
		h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.metrics.RecordDisconnection(ctx, duration, reason)

	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration))
}

// fanOut delivers msg to every client. Clients whose buffer is full are
// disconnected rather than allowed to stall the hub.
func (h *Hub) fanOut(msg outbound) {
	ctx := context.Background()

	h.mu.Lock()
	var slow []*Client
	delivered := 0
	for client := range h.clients {
		if client.enqueue(msg.payload) {
			delivered++
			continue
		}
		slow = append(slow, client)
	}
	h.mu.Unlock()

	h.messagesSent.Add(int64(delivered))
	if delivered > 0 {
		h.metrics.RecordMessage(ctx, "outbound", msg.messageType, len(msg.payload)*delivered)
	}

	for _, client := range slow {
		h.messagesDropped.Add(1)
		h.metrics.RecordDropped(ctx, msg.messageType, "client_buffer_full")
		h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.removeClient(client, "slow_consumer")
	}

	h.logger.Debug("Broadcast delivered",
		slog.String("message_type", msg.messageType),
		slog.Int("delivered", delivered),
		slog.Int("dropped", len(slow)))
}

// Broadcast queues an event for every connected client. It never blocks:
// when the hub is stopped or its queue is full the event is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	h.BroadcastWithTrace(messageType, data, "")
}

// BroadcastWithTrace is Broadcast with a trace ID attached to the envelope.
func (h *Hub) BroadcastWithTrace(messageType string, data interface{}, traceID string) {
	ctx := context.Background()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}

	payload, err := encodeEvent(messageType, data, traceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		h.logger.DebugContext(ctx, "Hub not running, dropping broadcast",
			slog.String("message_type", messageType))
		return
	}

	select {
	case h.broadcast <- outbound{messageType: messageType, payload: payload}:
	default:
		h.messagesDropped.Add(1)
		h.metrics.RecordDropped(ctx, messageType, "hub_queue_full")
		h.logger.WarnContext(ctx, "Broadcast queue full, dropping message",
			slog.String("message_type", messageType))
	}
}

// sendTo queues payload for a single registered client.
func (h *Hub) sendTo(client *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	return client.enqueue(payload)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the current hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// Stop terminates the hub loop and closes every client's send queue.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.stopped = true
	h.mu.Unlock()

	close(h.quit)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func encodeEvent(messageType string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(Event{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
}
