package notify

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
)

func dial(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Connections(userID) > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestPublishReachesOnlyTargetUser(t *testing.T) {
	hub := NewHub(nil, nil)
	require.NoError(t, hub.Start(context.Background()))
	defer hub.Stop(context.Background())

	alice := dial(t, hub, "alice")
	bob := dial(t, hub, "bob")

	hub.Publish("alice", Event{Type: EventLike, Data: map[string]string{"post_id": "p1"}})

	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := alice.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, EventLike, ev.Type)
	assert.False(t, ev.At.IsZero())

	_ = bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's event")
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil, nil)
	conn := dial(t, hub, "carol")
	require.Equal(t, 1, hub.Connections("carol"))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections("carol") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStoppedHubRejectsClients(t *testing.T) {
	hub := NewHub(nil, nil)
	dial(t, hub, "dave")
	require.NoError(t, hub.Stop(context.Background()))
	assert.Equal(t, 0, hub.Connections("dave"))

	rec := httptest.NewRecorder()
	err := hub.Serve(rec, httptest.NewRequest(http.MethodGet, "/ws", nil), "dave")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// publishing to nobody is a no-op
	hub.Publish("dave", Event{Type: EventComment})
}
