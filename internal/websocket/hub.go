package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/models"
)

const writeWait = 10 * time.Second

// Hub maintains the set of active clients and broadcasts ledger events
type Hub struct {
	mu sync.Mutex
	// Registered clients
	connections map[*websocket.Conn]bool

	// Messages to be broadcast to all connected clients
	broadcast chan models.Message

	// Upgrader for HTTP connections to WebSocket
	upgrader websocket.Upgrader

	log       *zap.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates a new hub for managing WebSocket connections
func NewHub(log *zap.Logger) *Hub {
	upgrader := websocket.Upgrader{
		// Dashboards are served from other origins
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan models.Message, 64),
		upgrader:    upgrader,
		log:         log,
		done:        make(chan struct{}),
	}
}

// Run starts listening for messages to broadcast until Close is called
func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.send(msg)
		case <-h.done:
			h.mu.Lock()
			for client := range h.connections {
				client.Close()
				delete(h.connections, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) send(msg models.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.connections {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(msg); err != nil {
			h.log.Debug("dropping websocket client", zap.Error(err))
			client.Close()
			delete(h.connections, client)
		}
	}
}

// HandleWebSocket upgrades an HTTP connection to WebSocket
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.connections[ws] = true
	h.mu.Unlock()

	// Read until the client goes away so close frames are processed
	go func() {
		defer ws.Close()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				h.mu.Lock()
				delete(h.connections, ws)
				h.mu.Unlock()
				return
			}
		}
	}()
}

// Broadcast queues a message for all connected clients. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Broadcast(msg models.Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("websocket broadcast queue full, dropping event", zap.String("type", msg.Type))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// Close disconnects every client and stops Run.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
