package session

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"

	"cellarena/internal/arena"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal caps the whole hub's connection count.
	MaxWSConnectionsTotal = 2000

	// MaxWSConnectionsPerIP caps concurrent connections from one address.
	MaxWSConnectionsPerIP = 10

	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("session: websocket rejected from origin %q", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// World is the subset of *arena.World the Hub needs: a connection↔player
// bijection (spec.md §4.10 — "exactly one Player per live connection") plus
// the input-queueing surface every decoded client message feeds into.
type World interface {
	AddPlayer(id int64, name, color string, isBot bool) *arena.Player
	RemovePlayer(id int64)
	QueueInput(playerID int64, dirX, dirY, cursorX, cursorY float64)
	QueueAction(playerID int64, action arena.ActionType)
	QueueSetName(playerID int64, name string)
	Dimensions() (float64, float64)
}

// connection is one live WebSocket, bound to exactly one arena.Player for
// its lifetime (spec.md §4.10).
type connection struct {
	conn     *websocket.Conn
	ip       string
	playerID int64
	send     chan []byte
}

// Hub owns every live connection and is the World's SnapshotSink: it
// receives one Snapshot per tick and fans it out to every connection,
// grounded on the teacher's WebSocketHub register/unregister/broadcast
// channel pattern (internal/api/websocket.go in the retrieved corpus),
// adapted from a fire-and-forget event broadcaster into a per-connection
// command dispatcher with an explicit player identity per socket.
type Hub struct {
	world World

	mu      sync.RWMutex
	clients map[int64]*connection

	wsLimiter *WebSocketRateLimiter
	nextID    int64

	colors []string
}

// NewHub constructs a hub bound to world. Registering it as the World's
// SnapshotSink is the caller's responsibility (NewServer wires this).
func NewHub(world World) *Hub {
	return &Hub{
		world:     world,
		clients:   make(map[int64]*connection),
		wsLimiter: NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		nextID:    1 << 20, // keep human player ids out of the bot-id range World.spawnBot uses
		colors:    []string{"#e74c3c", "#3498db", "#2ecc71", "#f1c40f", "#9b59b6", "#1abc9c", "#e67e22"},
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a WebSocket, creates the bound Player,
// and launches the read/write pumps for it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.wsLimiter.Release(ip)
		return
	}

	id := atomic.AddInt64(&h.nextID, 1)
	color := h.colors[id%int64(len(h.colors))]
	h.world.AddPlayer(id, "", color, false)

	c := &connection{conn: wsConn, ip: ip, playerID: id, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	UpdateWSConnections(h.ClientCount())

	width, height := h.world.Dimensions()
	h.writeJSON(c, initMessage{Type: "init", PlayerID: id, Width: width, Height: height})

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *connection) {
	defer h.unregister(c)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // malformed frame: dropped, not fatal (spec.md §7)
		}
		IncrementWSMessages()

		switch msg.Type {
		case inboundInput:
			h.world.QueueInput(c.playerID, msg.DirX, msg.DirY, msg.CursorX, msg.CursorY)
		case inboundAction:
			h.world.QueueAction(c.playerID, arena.ActionType(msg.Action))
		case inboundSetName:
			h.world.QueueSetName(c.playerID, msg.Name)
		case inboundPing:
			h.writeJSON(c, pongMessage{Type: "pong", Timestamp: msg.Timestamp})
		default:
			// unknown message type: ignored (spec.md §7)
		}
	}
}

func (h *Hub) writePump(c *connection) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) writeJSON(c *connection, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
		// slow consumer: drop rather than block the caller
	}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	if _, ok := h.clients[c.playerID]; ok {
		delete(h.clients, c.playerID)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()

	h.wsLimiter.Release(c.ip)
	h.world.RemovePlayer(c.playerID)
	UpdateWSConnections(h.ClientCount())
}

// PublishSnapshot implements arena.SnapshotSink. Called by World.Tick once
// per tick while holding the World's write lock, so this must never block:
// marshal once and fan out over each connection's buffered send channel,
// dropping the frame for any connection that is not keeping up.
func (h *Hub) PublishSnapshot(s arena.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	b, err := json.Marshal(snapshotEnvelope{Type: "snapshot", Snapshot: s})
	if err != nil {
		return
	}

	for _, c := range h.clients {
		select {
		case c.send <- b:
		default:
		}
	}
}
