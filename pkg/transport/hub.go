package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwongso/vstream/pkg/stream"
)

// ProcessorFactory builds a fresh stream.Processor (backed by its own,
// exclusively owned recognizer driver) for a newly accepted session.
// Sharing a recognizer across sessions would violate its exclusive-
// mutation invariant, so one factory call happens per connection.
type ProcessorFactory func(sessionID string) (*stream.Processor, error)

// Hub is the register/unregister/broadcast loop that fans transcription
// events out to connected clients and owns the upgrade handler.
type Hub struct {
	upgrader websocket.Upgrader
	factory  ProcessorFactory
	log      *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan OutboundMessage

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub constructs a Hub. factory is called once per accepted
// connection to build that session's processor.
func NewHub(factory ProcessorFactory) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		factory:    factory,
		log:        slog.Default(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan OutboundMessage, 64),
		clients:    make(map[*Client]bool),
	}
}

// Run drives the register/unregister/broadcast loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.log.Info("transport: client connected", "session_id", c.sessionID, "clients", len(h.clients))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info("transport: client disconnected", "session_id", c.sessionID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("transport: dropping message, client send buffer full", "session_id", c.sessionID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast implements stream.Sink: it fans the transcription event out
// to every connected client.
func (h *Hub) Broadcast(e stream.Event) {
	msg := OutboundMessage{
		Type:       MsgTypeTranscription,
		Content:    e.Text,
		SessionID:  e.SessionID,
		Confidence: floatPtr(e.Confidence),
		IsFinal:    boolPtr(e.Kind == stream.KindFinal),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("transport: broadcast channel full, dropping event", "session_id", e.SessionID)
	}
}

// HandleWebSocket upgrades the request and starts a session for it.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("transport: upgrade failed", "error", err)
		return
	}

	sessionID := uuid.NewString()
	processor, err := h.factory(sessionID)
	if err != nil {
		h.log.Error("transport: processor factory failed", "error", err)
		conn.Close()
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		processor: processor,
		sessionID: sessionID,
		send:      make(chan OutboundMessage, 32),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

var _ stream.Sink = (*Hub)(nil)
