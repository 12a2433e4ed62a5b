package session

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cellarena/internal/arena"

	"github.com/gorilla/websocket"
)

// mockWorld records every call the Hub makes into World, so dispatch tests
// don't need a full simulation running.
type mockWorld struct {
	mu sync.Mutex

	added   []int64
	removed []int64

	lastInput struct {
		playerID               int64
		dirX, dirY             float64
		cursorX, cursorY       float64
	}
	lastAction arena.ActionType
	lastName   string
}

func (m *mockWorld) AddPlayer(id int64, name, color string, isBot bool) *arena.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, id)
	return arena.NewPlayer(id, name, color, isBot)
}

func (m *mockWorld) RemovePlayer(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
}

func (m *mockWorld) QueueInput(playerID int64, dirX, dirY, cursorX, cursorY float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInput.playerID = playerID
	m.lastInput.dirX, m.lastInput.dirY = dirX, dirY
	m.lastInput.cursorX, m.lastInput.cursorY = cursorX, cursorY
}

func (m *mockWorld) QueueAction(playerID int64, action arena.ActionType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAction = action
}

func (m *mockWorld) QueueSetName(playerID int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastName = name
}

func (m *mockWorld) Dimensions() (float64, float64) { return 4000, 4000 }

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestHubSendsInitOnConnect(t *testing.T) {
	world := &mockWorld{}
	hub := NewHub(world)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg initMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != "init" {
		t.Errorf("expected init message, got %q", msg.Type)
	}
	if msg.Width != 4000 || msg.Height != 4000 {
		t.Errorf("unexpected dimensions in init message: %+v", msg)
	}

	world.mu.Lock()
	defer world.mu.Unlock()
	if len(world.added) != 1 {
		t.Errorf("expected AddPlayer called once, got %d", len(world.added))
	}
}

func TestHubDispatchesInput(t *testing.T) {
	world := &mockWorld{}
	hub := NewHub(world)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()
	conn.ReadMessage() // drain init

	inbound := inboundEnvelope{Type: inboundInput, DirX: 0.5, DirY: -0.5, CursorX: 100, CursorY: 200}
	b, _ := json.Marshal(inbound)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		world.mu.Lock()
		got := world.lastInput.dirX
		world.mu.Unlock()
		if got == 0.5 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("input was never dispatched to World.QueueInput")
}

func TestHubDispatchesPing(t *testing.T) {
	world := &mockWorld{}
	hub := NewHub(world)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()
	conn.ReadMessage() // drain init

	b, _ := json.Marshal(inboundEnvelope{Type: inboundPing, Timestamp: 123456789})
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg pongMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != "pong" {
		t.Errorf("expected pong reply, got %q", msg.Type)
	}
	if msg.Timestamp != 123456789 {
		t.Errorf("pong did not echo client timestamp: got %d, want 123456789", msg.Timestamp)
	}
}

func TestHubRemovesPlayerOnDisconnect(t *testing.T) {
	world := &mockWorld{}
	hub := NewHub(world)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn := dialWS(t, ts)
	conn.ReadMessage() // drain init
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		world.mu.Lock()
		n := len(world.removed)
		world.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("World.RemovePlayer was never called after disconnect")
}

func TestPublishSnapshotBroadcastsToAllClients(t *testing.T) {
	world := &mockWorld{}
	hub := NewHub(world)
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn1 := dialWS(t, ts)
	defer conn1.Close()
	conn2 := dialWS(t, ts)
	defer conn2.Close()
	conn1.ReadMessage() // drain init
	conn2.ReadMessage()

	snap := arena.Snapshot{Timestamp: 42}
	hub.PublishSnapshot(snap)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var got snapshotEnvelope
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got.Type != "snapshot" || got.Timestamp != 42 {
			t.Errorf("unexpected snapshot envelope: %+v", got)
		}
	}
}

func TestPublishSnapshotDoesNotBlockWithNoClients(t *testing.T) {
	world := &mockWorld{}
	hub := NewHub(world)

	done := make(chan struct{})
	go func() {
		hub.PublishSnapshot(arena.Snapshot{Timestamp: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishSnapshot blocked with no connected clients")
	}
}
