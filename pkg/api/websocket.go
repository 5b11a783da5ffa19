package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/hotlabel/publishers/pkg/auth"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// createUpgrader creates a WebSocket upgrader with origin validation.
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	originSet := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Non-browser clients send no Origin.
			if origin == "" {
				return true
			}

			return allowAll || originSet[origin]
		},
	}
}

// MessageType represents the type of event stream message.
type MessageType string

const (
	// Server -> Client messages.
	MessageTypeConfigurationUpdated MessageType = publisher.NotifyConfigurationUpdated
	MessageTypeAPIKeyRegenerated    MessageType = publisher.NotifyAPIKeyRegenerated
	MessageTypeTaskStatusUpdated    MessageType = publisher.NotifyTaskStatusUpdated
	MessageTypeConnected            MessageType = "connected"
	MessageTypeSystemStatus         MessageType = "system_status"

	// Client -> Server messages.
	MessageTypePing MessageType = "ping"
)

// Message represents an event stream message.
type Message struct {
	Type        MessageType `json:"type"`
	PublisherID string      `json:"publisher_id,omitempty"`
	Payload     any         `json:"payload,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// hubEvent is a message for, or a disconnect of, one publisher's clients.
// Both travel on one channel so a disconnect never overtakes a message
// queued before it.
type hubEvent struct {
	publisherID string
	msg         *Message
	disconnect  bool
}

// Hub tracks open event streams per publisher and fans messages out to them.
type Hub struct {
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	// Connected clients by publisher.
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan *hubEvent

	mu sync.RWMutex
}

// Ensure Hub implements publisher.Notifier.
var _ publisher.Notifier = (*Hub)(nil)

// NewHub creates a new event stream hub.
func NewHub(log logrus.FieldLogger, m *metrics.Metrics) *Hub {
	return &Hub{
		log:        log.WithField("component", "events"),
		metrics:    m,
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *hubEvent, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Starting event stream hub")

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Stopping event stream hub")
			h.closeAll()

			return

		case client := <-h.register:
			h.mu.Lock()

			if _, ok := h.clients[client.publisherID]; !ok {
				h.clients[client.publisherID] = make(map[*Client]bool)
			}

			h.clients[client.publisherID][client] = true

			h.mu.Unlock()

			if h.metrics != nil {
				h.metrics.EventStreamOpened()
			}

			h.log.WithFields(logrus.Fields{
				"client":       client.id,
				"publisher_id": client.publisherID,
			}).Debug("Client registered")

		case client := <-h.unregister:
			h.remove(client)

		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev *hubEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[ev.publisherID]

	for client := range clients {
		if ev.disconnect {
			h.dropLocked(client)

			continue
		}

		select {
		case client.send <- ev.msg:
		default:
			// Slow consumer.
			h.dropLocked(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(client)
}

// dropLocked closes a client's send channel once. The caller holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	clients, ok := h.clients[client.publisherID]
	if !ok || !clients[client] {
		return
	}

	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.clients, client.publisherID)
	}

	if h.metrics != nil {
		h.metrics.EventStreamClosed()
	}

	h.log.WithFields(logrus.Fields{
		"client":       client.id,
		"publisher_id": client.publisherID,
	}).Debug("Client unregistered")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			h.dropLocked(client)
		}
	}
}

// Notify queues a message for every open stream of the publisher.
func (h *Hub) Notify(publisherID, eventType string, payload any) {
	h.enqueue(&hubEvent{
		publisherID: publisherID,
		msg: &Message{
			Type:        MessageType(eventType),
			PublisherID: publisherID,
			Payload:     payload,
			Timestamp:   time.Now().UTC(),
		},
	})
}

// Disconnect closes every open stream of the publisher after previously
// queued messages have been handed to them.
func (h *Hub) Disconnect(publisherID string) {
	h.enqueue(&hubEvent{publisherID: publisherID, disconnect: true})
}

func (h *Hub) enqueue(ev *hubEvent) {
	select {
	case h.events <- ev:
	default:
		h.log.WithField("publisher_id", ev.publisherID).Warn("Event channel full, dropping message")
	}
}

// ClientCount returns the number of open streams for a publisher.
func (h *Hub) ClientCount(publisherID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[publisherID])
}

// Client represents one publisher event stream connection.
type Client struct {
	id          string
	publisherID string
	hub         *Hub
	conn        *websocket.Conn
	send        chan *Message
}

// NewClient creates a new event stream client.
func NewClient(hub *Hub, conn *websocket.Conn, publisherID, id string) *Client {
	return &Client{
		id:          id,
		publisherID: publisherID,
		hub:         hub,
		conn:        conn,
		send:        make(chan *Message, 64),
	}
}

// ReadPump reads client messages until the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("Event stream read error")
			}

			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.WithError(err).Debug("Failed to parse event stream message")

			continue
		}

		if msg.Type == MessageTypePing {
			c.trySend(&Message{
				Type:        MessageTypeSystemStatus,
				PublisherID: c.publisherID,
				Payload:     map[string]any{"status": "ok"},
				Timestamp:   time.Now().UTC(),
			})
		}
	}
}

// trySend queues a reply without blocking. The hub owns the send channel, so
// a reply racing with a disconnect is dropped.
func (c *Client) trySend(msg *Message) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if !c.hub.clients[c.publisherID][c] {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// WritePump writes queued messages and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an authenticated request to a publisher event stream.
// verify runs once the client is registered; a failure closes the stream, so
// a key rotated between authentication and registration cannot leave it open.
func ServeWs(
	hub *Hub,
	allowedOrigins []string,
	verify func(ctx context.Context) error,
	w http.ResponseWriter,
	r *http.Request,
) {
	p := auth.PublisherFromContext(r.Context())
	if p == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)

		return
	}

	upgrader := createUpgrader(allowedOrigins)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.WithError(err).Warn("Failed to upgrade event stream")

		return
	}

	clientID := middleware.GetReqID(r.Context())
	if clientID == "" {
		clientID = p.ID
	}

	client := NewClient(hub, conn, p.ID, clientID)
	client.send <- &Message{
		Type:        MessageTypeConnected,
		PublisherID: p.ID,
		Timestamp:   time.Now().UTC(),
	}

	hub.register <- client

	if verify != nil {
		if err := verify(r.Context()); err != nil {
			hub.log.WithError(err).WithField("publisher_id", p.ID).
				Info("Credential revoked during event stream setup")

			hub.unregister <- client
		}
	}

	go client.WritePump()
	go client.ReadPump()
}
