package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/specwise/specchat/internal/api"
	"github.com/specwise/specchat/internal/chat"
)

// ChatHandler upgrades connections to WebSocket and binds them to chat
// sessions. Reconnects with a known conversation ID resume the session.
type ChatHandler struct {
	registry *chat.Registry
	upgrader websocket.Upgrader
}

func NewChatHandler(registry *chat.Registry) *ChatHandler {
	return &ChatHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// wsTransport serializes writes to one WebSocket connection. gorilla
// permits at most one concurrent writer per connection.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) Send(ev chat.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(ev)
}

func (t *wsTransport) sendJSON(v interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(v)
}

type sessionHello struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	SpecID         string `json:"spec_id,omitempty"`
}

func (h *ChatHandler) Serve(w http.ResponseWriter, r *http.Request) {
	specID := r.URL.Query().Get("spec_id")
	conversationID := r.URL.Query().Get("conversation_id")
	if specID == "" && conversationID == "" {
		api.Error(w, http.StatusBadRequest, "spec_id is required")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := h.registry.GetOrCreate(conversationID, specID)
	transport := &wsTransport{conn: conn}

	if err := transport.sendJSON(sessionHello{
		Type:           "session",
		ConversationID: session.ID(),
		SpecID:         specID,
	}); err != nil {
		return
	}

	if err := session.Attach(transport); err != nil {
		transport.sendJSON(chat.Event{Type: chat.EventError, Error: err.Error()})
		return
	}

	// When the session ends (close frame, grace expiry) the read loop must
	// not keep the connection open.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-session.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg chat.InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			// A clean close frame ends the conversation outright; only a
			// transport drop keeps the session alive for a reconnect window.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.Close()
				return
			}
			log.Printf("session %s: read failed: %v", session.ID(), err)
			session.Detach()
			return
		}

		if err := session.HandleMessage(msg); err != nil {
			return
		}
	}
}
