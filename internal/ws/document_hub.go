package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/zaqqye/uiflow_backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

type EventType string

const (
	EventSaved   EventType = "screenset.saved"
	EventDeleted EventType = "screenset.deleted"
)

// ScreenSetEvent is pushed to every client watching a document.
type ScreenSetEvent struct {
	Type       EventType     `json:"type"`
	DocumentID string        `json:"document_id"`
	AppFlowID  string        `json:"app_flow_id"`
	Screens    int           `json:"screens"`
	Steps      int           `json:"steps"`
	Source     models.Source `json:"source,omitempty"`
	At         time.Time     `json:"at"`
}

// SavedEvent describes a ScreenSet that was just stored.
func SavedEvent(set models.ScreenSet) ScreenSetEvent {
	return ScreenSetEvent{
		Type:       EventSaved,
		DocumentID: set.AppFlow.ParentDocumentID,
		AppFlowID:  set.AppFlow.ID,
		Screens:    len(set.Screens),
		Steps:      len(set.AppFlow.Steps),
		Source:     set.Source,
		At:         time.Now().UTC(),
	}
}

func DeletedEvent(documentID, appFlowID string) ScreenSetEvent {
	return ScreenSetEvent{
		Type:       EventDeleted,
		DocumentID: documentID,
		AppFlowID:  appFlowID,
		At:         time.Now().UTC(),
	}
}

type documentMessage struct {
	documentID string
	payload    []byte
}

// DocumentHub fans ScreenSet events out to websocket clients subscribed to
// a document id. All client bookkeeping happens on the Run goroutine.
type DocumentHub struct {
	register   chan *documentClient
	unregister chan *documentClient
	broadcast  chan documentMessage
	clients    map[*documentClient]struct{}
	done       chan struct{}
	connected  atomic.Int64
	logger     arbor.ILogger
}

func NewDocumentHub(logger arbor.ILogger) *DocumentHub {
	return &DocumentHub{
		register:   make(chan *documentClient),
		unregister: make(chan *documentClient),
		broadcast:  make(chan documentMessage, 256),
		clients:    make(map[*documentClient]struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *DocumentHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.connected.Add(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.documentID != msg.documentID {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *DocumentHub) drop(client *documentClient) {
	delete(h.clients, client)
	h.connected.Add(-1)
	close(client.send)
	client.conn.Close()
}

// Connected reports the number of registered clients.
func (h *DocumentHub) Connected() int {
	if h == nil {
		return 0
	}
	return int(h.connected.Load())
}

// Publish queues event for the event's document. A full queue drops the
// event rather than blocking the caller.
func (h *DocumentHub) Publish(event ScreenSetEvent) {
	if h == nil || event.DocumentID == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal screen set event")
		return
	}
	select {
	case h.broadcast <- documentMessage{documentID: event.DocumentID, payload: data}:
	default:
		h.logger.Warn().Str("document_id", event.DocumentID).Str("type", string(event.Type)).Msg("event queue full, dropping event")
	}
}

// add registers client; it reports false once the hub has stopped.
func (h *DocumentHub) add(client *documentClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

type documentClient struct {
	hub        *DocumentHub
	conn       *websocket.Conn
	send       chan []byte
	documentID string
}

func newDocumentClient(hub *DocumentHub, conn *websocket.Conn, documentID string) *documentClient {
	return &documentClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		documentID: documentID,
	}
}

// readPump only tracks liveness; clients never send commands.
func (c *documentClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *documentClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
