package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairmatch/pairmatch/internal/api"
	"github.com/pairmatch/pairmatch/internal/store"
)

const (
	// writeTimeout bounds a single frame write to one client.
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before its connection
	// is considered dead.
	pongWait = 60 * time.Second

	// pingPeriod is the interval between server pings. It must stay below
	// pongWait so a healthy client always answers in time.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is how many run messages may queue per client before the
	// client is dropped as slow.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Any origin may subscribe; restrict origins at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string          `json:"event"` // run | idle
	Data  *api.RunSummary `json:"data,omitempty"`
}

// Hub tracks connected clients and pushes new runs to them.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu       sync.RWMutex
	clients  map[*client]struct{}
	lastSent string // run ID of the last broadcast
}

// client is one subscriber. send is closed by the hub, never by the client.
type client struct {
	conn *websocket.Conn
	send chan []byte // encoded Messages, drained by writePump
}

// New creates a Hub that polls st every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run polls the store and broadcasts when the latest run changes. It blocks
// until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.poll()
		}
	}
}

// ServeHTTP upgrades the connection and serves the client until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader already replied
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	// Queue the current state before the hub can close c.send.
	if data, _, err := h.buildMessage(); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

// register adds c to the broadcast set.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c and closes its send channel, unless poll or closeAll
// already did.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// poll broadcasts the latest run if it has not been sent yet.
func (h *Hub) poll() {
	data, id, err := h.buildMessage()
	if err != nil || id == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if id == h.lastSent {
		return
	}
	h.lastSent = id
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow client; drop it.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// buildMessage encodes the latest run and returns its ID, or "" when idle.
func (h *Hub) buildMessage() ([]byte, string, error) {
	e, ok := h.store.Latest()
	if !ok {
		data, err := json.Marshal(Message{Event: "idle"})
		return data, "", err
	}
	s := api.Summary(e)
	data, err := json.Marshal(Message{Event: "run", Data: &s})
	return data, s.ID, err
}

// closeAll closes every send channel; each writePump then sends a close
// frame and tears down its connection.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards queued messages to the connection and pings it every
// pingPeriod. It runs in its own goroutine per client and returns when the
// send channel is closed or a write fails, closing the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes incoming frames so pong and close control messages are
// processed, and extends the read deadline on every pong. Clients are not
// expected to send data; anything they send is discarded. It blocks until
// the connection fails or closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
