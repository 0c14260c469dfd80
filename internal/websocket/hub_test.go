package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-accounts/internal/event"
)

func startHub(t *testing.T) (*Hub, *event.InMemoryBus, *httptest.Server) {
	t.Helper()

	bus := event.NewBus()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	upgrader := Upgrader(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var userID int64 = 1
		if r.URL.Query().Get("user") == "2" {
			userID = 2
		}
		hub.Serve(conn, userID)
	}))
	t.Cleanup(server.Close)

	return hub, bus, server
}

func dial(t *testing.T, server *httptest.Server, user string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_DeliversOnlyToRecipient(t *testing.T) {
	hub, bus, server := startHub(t)

	alice := dial(t, server, "1")
	bob := dial(t, server, "2")
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(1) == 1 && hub.ConnectionCount(2) == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(event.New(event.TypeFriendRequestReceived, 1, 2, map[string]int64{"request_id": 9}))

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)

	var got event.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, event.TypeFriendRequestReceived, got.Type)
	assert.EqualValues(t, 1, got.UserID)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's notification")
}

func TestHub_SessionRevokedDisconnects(t *testing.T) {
	hub, bus, server := startHub(t)

	first := dial(t, server, "1")
	second := dial(t, server, "1")
	dial(t, server, "2")
	require.Eventually(t, func() bool {
		return hub.ConnectionCount(1) == 2 && hub.ConnectionCount(2) == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(event.New(event.TypeSessionRevoked, 1, 1, nil))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), string(event.TypeSessionRevoked))

		_, _, err = conn.ReadMessage()
		assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	}

	require.Eventually(t, func() bool { return hub.ConnectionCount(1) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ConnectionCount(2))
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://app.example.com")

	assert.True(t, Upgrader(nil).CheckOrigin(req))
	assert.True(t, Upgrader([]string{"*"}).CheckOrigin(req))
	assert.True(t, Upgrader([]string{"https://APP.example.com"}).CheckOrigin(req))
	assert.False(t, Upgrader([]string{"https://evil.example.com"}).CheckOrigin(req))
}
