package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"visitscribe/internal/domain"
)

const (
	writeWait      = 5 * time.Second
	clientSendSize = 32
)

// Event is the wire envelope for pipeline events pushed to subscribers.
type Event struct {
	Type           string `json:"type"`
	ConsultationID string `json:"consultationId"`
	Payload        any    `json:"payload,omitempty"`
}

type stateChangedPayload struct {
	State  domain.RecordingState `json:"state"`
	Reason domain.StateReason    `json:"reason"`
}

type pipelineErrorPayload struct {
	Code   domain.ErrorCode `json:"code"`
	Detail string           `json:"detail"`
}

// Hub fans pipeline events out to websocket subscribers. It implements
// ports.EventSink; a slow subscriber is dropped rather than blocking the
// pipeline.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*hubClient
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*hubClient),
	}
}

// HandleWS upgrades the request and streams events until the peer goes away.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientSendSize),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	go h.writeLoop(client)
	go h.readLoop(client)
}

func (h *Hub) writeLoop(client *hubClient) {
	defer client.conn.Close()
	for message := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.drop(client)
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards inbound frames; its job is noticing disconnects.
func (h *Hub) readLoop(client *hubClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

func (h *Hub) drop(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		close(client.send)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.send)
	}
}

func (h *Hub) broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal event failed", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		select {
		case client.send <- data:
		default:
			delete(h.clients, id)
			close(client.send)
		}
	}
}

func (h *Hub) SessionStateChanged(consultationID string, state domain.RecordingState, reason domain.StateReason) {
	h.broadcast(Event{
		Type:           "session_state_changed",
		ConsultationID: consultationID,
		Payload:        stateChangedPayload{State: state, Reason: reason},
	})
}

func (h *Hub) TranscriptAppended(consultationID string, messages []domain.TranscriptMessage) {
	h.broadcast(Event{
		Type:           "transcript_appended",
		ConsultationID: consultationID,
		Payload:        messages,
	})
}

func (h *Hub) NoteSaved(consultationID string, note domain.ClinicalNote) {
	h.broadcast(Event{
		Type:           "note_saved",
		ConsultationID: consultationID,
		Payload:        note,
	})
}

func (h *Hub) PipelineError(consultationID string, code domain.ErrorCode, detail string) {
	h.broadcast(Event{
		Type:           "pipeline_error",
		ConsultationID: consultationID,
		Payload:        pipelineErrorPayload{Code: code, Detail: detail},
	})
}
