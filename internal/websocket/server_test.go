package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/airship-atc/internal/simulation"
	"github.com/yegors/airship-atc/pkg/logger"
)

func startHub(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewServer(nil, logger.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return hub, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// filtersApplied reports whether every client has filters set
func filtersApplied(hub *Server) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for c := range hub.clients {
		if c.GetFilters() == nil {
			return false
		}
	}
	return true
}

func TestPublishChat(t *testing.T) {
	hub, conn := startHub(t)
	pub := NewPublisher(hub)

	pub.OnChat(simulation.ChatLine{AirshipID: "AS-001", RouteID: 1, Key: "pilot-landed", Text: "Docked at A"})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeAirshipChat, msg["type"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, "AS-001", data["airship_id"])
	assert.Equal(t, "Docked at A", data["text"])
}

func TestTickGroupsByRoute(t *testing.T) {
	hub, conn := startHub(t)
	pub := NewPublisher(hub)

	pub.OnTick([]simulation.AirshipState{
		{ID: "AS-001", RouteID: 1, SimTime: 3},
		{ID: "AS-002", RouteID: 2, SimTime: 3},
		{ID: "AS-003", RouteID: 1, SimTime: 3},
	})

	first := readMessage(t, conn)
	assert.Equal(t, MessageTypeAirshipUpdate, first["type"])
	data := first["data"].(map[string]any)
	assert.Equal(t, 1.0, data["route_id"])
	assert.Len(t, data["airships"], 2)

	second := readMessage(t, conn)
	assert.Equal(t, 2.0, second["data"].(map[string]any)["route_id"])
}

func TestRouteFilter(t *testing.T) {
	hub, conn := startHub(t)
	pub := NewPublisher(hub)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": MessageTypeFilterUpdate,
		"data": map[string]any{"routes": []int{2}},
	}))
	require.Eventually(t, func() bool { return filtersApplied(hub) }, time.Second, 5*time.Millisecond)

	pub.OnDock(simulation.DockEvent{AirshipID: "AS-001", RouteID: 1})
	pub.OnDock(simulation.DockEvent{AirshipID: "AS-002", RouteID: 2})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeAirshipDock, msg["type"])
	assert.Equal(t, "AS-002", msg["data"].(map[string]any)["airship_id"])
}

func TestBulkRequest(t *testing.T) {
	hub, conn := startHub(t)
	hub.SetSnapshotSource(func() []simulation.AirshipState {
		return []simulation.AirshipState{{ID: "AS-001", RouteID: 1}, {ID: "AS-002", RouteID: 2}}
	})

	require.NoError(t, conn.WriteJSON(map[string]any{"type": MessageTypeBulkRequest}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeBulkResponse, msg["type"])
	assert.Len(t, msg["data"].(map[string]any)["airships"], 2)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewServer(nil, logger.NewNop())
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Broadcast(&Message{Type: MessageTypeAirshipUpdate})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, originChecker(nil)(req("http://anything")))
	assert.True(t, originChecker([]string{"*"})(req("http://anything")))

	check := originChecker([]string{"http://localhost:3000"})
	assert.True(t, check(req("http://localhost:3000")))
	assert.True(t, check(req("")))
	assert.False(t, check(req("http://evil.example")))
}

func TestClientFilters(t *testing.T) {
	var none *ClientFilters
	assert.True(t, none.allows(5))

	f := parseFilters(map[string]any{"routes": []any{1.0, 3.0, "x"}})
	assert.True(t, f.allows(1))
	assert.True(t, f.allows(3))
	assert.False(t, f.allows(2))

	assert.True(t, parseFilters(nil).allows(2))
}
