package wsfanout

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titan-aas/internal/model"

	"titan-aas/internal/events"
)

func newTestServer(t *testing.T, mgr *SubscriptionManager, connID string, filter Filter) (*websocket.Conn, func()) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		mgr.Register(connID, conn, filter)
	}))

	wsURL := "ws" + server.URL[len("http"):]
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return client, func() {
		_ = client.Close()
		server.Close()
	}
}

func TestSubscriptionManager_BroadcastDeliversMatchingEvent(t *testing.T) {
	mgr := NewSubscriptionManager(4, nil)
	client, cleanup := newTestServer(t, mgr, "conn-1", MatchAll)
	defer cleanup()

	time.Sleep(50 * time.Millisecond) // allow Register to run server-side
	mgr.Broadcast(events.Event{ID: "evt-1", EntityType: model.EntitySubmodel})

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "evt-1")
}

func TestSubscriptionManager_FilterExcludesNonMatchingEvent(t *testing.T) {
	mgr := NewSubscriptionManager(4, nil)
	client, cleanup := newTestServer(t, mgr, "conn-2", MatchEntityType("aas"))
	defer cleanup()

	time.Sleep(50 * time.Millisecond)
	mgr.Broadcast(events.Event{ID: "evt-2", EntityType: model.EntitySubmodel})

	_ = client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := client.ReadMessage()
	assert.Error(t, err) // read should time out: no matching event delivered
}

func TestSubscriptionManager_UnregisterStopsDelivery(t *testing.T) {
	mgr := NewSubscriptionManager(4, nil)
	_, cleanup := newTestServer(t, mgr, "conn-3", MatchAll)
	defer cleanup()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, mgr.Count())

	mgr.Unregister("conn-3")
	assert.Equal(t, 0, mgr.Count())
}
