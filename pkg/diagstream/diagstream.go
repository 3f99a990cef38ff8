// Package diagstream streams diagnostics to a connected IDE session over
// a websocket as they are constructed, for live fix-suggestion UX during
// a long-running `janusc serve` process. It is adapted from the
// teacher's pkg/websocket Hub (register/unregister/broadcast channels,
// a background Run loop) scoped down from a general room-based hub to a
// single fan-out broadcaster of diagnostic.JSON payloads.
package diagstream

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/janus-lang/dispatch/pkg/diagnostic"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected IDE session.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out diagnostics to every connected client.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	shutdown   chan struct{}

	mu    sync.RWMutex
	total uint64
}

// NewHub creates a diagnostic-streaming hub. Call Run in a goroutine to
// start the fan-out loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		shutdown:   make(chan struct{}),
	}
}

// Run drives the hub's event loop until Close is called. It is intended
// to run in its own goroutine for the lifetime of the serving process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer, drop rather than block the hub
				}
			}
			h.mu.RUnlock()
		case <-h.shutdown:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close stops the hub's event loop and disconnects every client.
func (h *Hub) Close() {
	close(h.shutdown)
}

// Publish pushes a diagnostic to every connected client as its JSON
// projection (pkg/diagnostic's wire schema, §6).
func (h *Hub) Publish(d diagnostic.Diagnostic) error {
	payload, err := json.Marshal(diagnostic.ToJSON(d))
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.total++
	h.mu.Unlock()

	select {
	case h.broadcast <- payload:
	default:
		// broadcast channel full under load; drop this diagnostic rather
		// than block the diagnostic engine's caller.
	}
	return nil
}

// PublishedCount returns the number of diagnostics ever published,
// regardless of whether any client was connected to receive them.
func (h *Hub) PublishedCount() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// ClientCount returns the number of currently connected IDE sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades an HTTP request to a websocket connection and
// registers it with the hub. Mount at e.g. "/diagnostics/stream".
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards inbound messages (the protocol is server-push only)
// and exists solely to detect disconnects via read errors.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump delivers queued diagnostics to the client and keeps the
// connection alive with periodic pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
