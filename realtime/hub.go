package realtime

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.vocdoni.io/dvote/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Message is what clients receive.
type Message struct {
	Type   string   `json:"type"`
	Change *Change  `json:"change,omitempty"`
	Tables []string `json:"tables,omitempty"`
}

type subscribeRequest struct {
	Subscribe []string `json:"subscribe"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	tables map[string]bool
}

func (c *client) wants(table string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables) == 0 || c.tables[table]
}

func (c *client) subscribe(tables []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = map[string]bool{}
	out := []string{}
	for _, t := range tables {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || c.tables[t] {
			continue
		}
		c.tables[t] = true
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Hub fans changes out to the connected websocket clients. Clients whose
// send buffer is full are disconnected.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates a hub accepting connections from the given origins. An
// empty list or "*" accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{clients: map[*client]struct{}{}}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the change to every client subscribed to its table.
func (h *Hub) Broadcast(ch *Change) {
	data, err := json.Marshal(&Message{Type: "change", Change: ch})
	if err != nil {
		log.Warnw("could not encode change", "error", err)
		return
	}
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(ch.Table) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		log.Debugf("dropping slow realtime client")
		h.remove(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// remove unregisters the client and closes its send channel, which makes
// its writer close the connection. Sends happen under the read lock, so the
// channel is never closed while a send is in flight.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) sendTo(c *client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.add(c)
	log.Debugf("realtime client connected from %s", r.RemoteAddr)
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("realtime client read error: %v", err)
			}
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Subscribe == nil {
			h.sendTo(c, &Message{Type: "error"})
			continue
		}
		h.sendTo(c, &Message{Type: "subscribed", Tables: c.subscribe(req.Subscribe)})
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
