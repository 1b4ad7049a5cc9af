package realtime

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

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// sessionServer runs one Session per connection against the registry,
// reporting when Run returns.
func sessionServer(t *testing.T, ctx context.Context, reg *Registry) (*httptest.Server, chan struct{}) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewSession(conn, reg).Run(ctx)
		close(done)
	}))
	t.Cleanup(srv.Close)
	return srv, done
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSessionJoinRoundTrip(t *testing.T) {
	store := newFakeNotificationStore()
	store.pending["cust-1"] = []model.Notification{
		{ID: "n1", CustomerID: "cust-1", Status: model.NotificationPending},
	}
	reg := NewRegistry(store)
	srv, _ := sessionServer(t, context.Background(), reg)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "join_room",
		"data":  map[string]string{"customer_id": "cust-1"},
	}))

	var joined struct {
		Event string `json:"event"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&joined))
	assert.Equal(t, EventJoined, joined.Event)

	var unread struct {
		Event string               `json:"event"`
		Data  []model.Notification `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&unread))
	assert.Equal(t, EventUnreadNotifications, unread.Event)
	assert.Len(t, unread.Data, 1)
}

func TestSessionStopsOnContextCancel(t *testing.T) {
	reg := NewRegistry(newFakeNotificationStore())
	ctx, cancel := context.WithCancel(context.Background())
	srv, done := sessionServer(t, ctx, reg)
	dialWS(t, srv)

	// The client stays connected; cancelling the server-side context
	// alone must end the session.
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on context cancellation")
	}

	_, connections := reg.Stats()
	assert.Zero(t, connections)
}
