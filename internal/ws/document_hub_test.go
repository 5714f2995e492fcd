package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/uiflow_backend/internal/logging"
	"github.com/zaqqye/uiflow_backend/internal/models"
)

func startHub(t *testing.T) (*DocumentHub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewDocumentHub(logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws/documents/:id", DocumentHandler(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDocumentHubDeliversOnlyToSubscribers(t *testing.T) {
	hub, base := startHub(t)
	watcher := dial(t, base+"/ws/documents/doc-1")
	other := dial(t, base+"/ws/documents/doc-2")
	require.Eventually(t, func() bool { return hub.Connected() == 2 }, time.Second, 10*time.Millisecond)

	set := models.EmptyScreenSet("doc-1")
	set.Screens = []models.Screen{{ID: "s1", ParentDocumentID: "doc-1", Name: "Home"}}
	set.Source = models.SourceRemote
	hub.Publish(SavedEvent(set))

	watcher.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := watcher.ReadMessage()
	require.NoError(t, err)
	var ev ScreenSetEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, EventSaved, ev.Type)
	assert.Equal(t, "doc-1", ev.DocumentID)
	assert.Equal(t, set.AppFlow.ID, ev.AppFlowID)
	assert.Equal(t, 1, ev.Screens)
	assert.Equal(t, models.SourceRemote, ev.Source)

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "doc-2 subscriber receives nothing")
}

func TestDocumentHubUnregistersClosedClients(t *testing.T) {
	hub, base := startHub(t)
	conn := dial(t, base+"/ws/documents/doc-1")
	require.Eventually(t, func() bool { return hub.Connected() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Connected() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishOnNilHubIsNoop(t *testing.T) {
	var hub *DocumentHub
	assert.NotPanics(t, func() { hub.Publish(DeletedEvent("doc-1", "flow-1")) })
	assert.Zero(t, hub.Connected())
}
