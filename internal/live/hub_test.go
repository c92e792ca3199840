package live_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutwatch/sproutwatch/internal/live"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestHubBroadcast(t *testing.T) {
	hub := live.NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	defer a.Close()
	b := dial(t, srv)
	defer b.Close()
	waitFor(t, func() bool { return hub.Len() == 2 })

	hub.Publish(models.LiveActivity, models.ActivityEntry{ID: "1", Message: "Grow light switched ON", Highlight: "ON"})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got received
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, models.LiveActivity, got.Type)

		var entry models.ActivityEntry
		require.NoError(t, json.Unmarshal(got.Payload, &entry))
		assert.Equal(t, "Grow light switched ON", entry.Message)
	}
}

func TestHubPingAndDisconnect(t *testing.T) {
	hub := live.NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.Len() == 1 })

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got received
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pong", got.Type)

	conn.Close()
	waitFor(t, func() bool { return hub.Len() == 0 })
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := live.NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Len() == 1 })

	hub.Close()
	assert.Zero(t, hub.Len())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
