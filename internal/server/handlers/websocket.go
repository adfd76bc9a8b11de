// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tadamon/internal/domain/conversation"
	"tadamon/internal/domain/geo"
	conversationService "tadamon/internal/service/conversation"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS middleware on the REST side
		return true
	},
}

// streamEvent is a frame sent to or received from the client
type streamEvent struct {
	Type     string                 `json:"type"`
	Session  *conversation.Session  `json:"session,omitempty"`
	Message  *conversation.Message  `json:"message,omitempty"`
	Text     string                 `json:"text,omitempty"`
	Location *geo.CanonicalLocation `json:"location,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Time     time.Time              `json:"time"`
}

// sessionClient is one viewer connected to one session stream
type sessionClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	sessionID string
	viewerID  string
	manager   *conversationService.Manager
	config    WebSocketConfig

	mu          sync.Mutex
	unsubscribe func()
}

// SessionWebSocketHandler streams a session's messages to a participant and
// accepts outgoing messages from it
func SessionWebSocketHandler(manager *conversationService.Manager, subscriber conversation.Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sid")
		viewerID := r.URL.Query().Get("viewer")
		if viewerID == "" {
			respondWithError(w, http.StatusBadRequest, "Missing viewer", nil)
			return
		}

		s, err := loadSession(r.Context(), manager, viewerID, sessionID)
		if err != nil {
			respondWithFault(w, "Failed to open conversation", err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to upgrade to WebSocket")
			return
		}

		client := &sessionClient{
			conn:      conn,
			send:      make(chan []byte, 256),
			done:      make(chan struct{}),
			sessionID: sessionID,
			viewerID:  viewerID,
			manager:   manager,
			config:    DefaultWebSocketConfig(),
		}

		go client.writePump()

		client.push(streamEvent{Type: "history", Session: &s})

		if subscriber != nil {
			unsubscribe, err := subscriber.Subscribe(sessionID, client.relay)
			if err != nil {
				log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to subscribe to session")
				client.close()
				return
			}
			client.setUnsubscribe(unsubscribe)
		}

		log.Info().
			Str("session_id", sessionID).
			Str("viewer_id", viewerID).
			Msg("WebSocket connection opened")

		client.readPump()
	}
}

// relay forwards a published message to the client from its point of view
func (c *sessionClient) relay(msg conversation.Message) {
	msg.IsMine = msg.SenderID == c.viewerID
	c.push(streamEvent{Type: "message", Message: &msg})
}

// push queues an event unless the connection is closed or the client is too slow
func (c *sessionClient) push(ev streamEvent) {
	ev.Time = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal stream event")
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Warn().Str("session_id", c.sessionID).Str("viewer_id", c.viewerID).Msg("Dropping slow WebSocket client")
		c.close()
	}
}

// readPump reads outgoing messages from the client until the connection drops
func (c *sessionClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("session_id", c.sessionID).Msg("WebSocket error")
			}
			return
		}

		c.handleIncoming(data)
	}
}

func (c *sessionClient) handleIncoming(data []byte) {
	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.push(streamEvent{Type: "error", Error: "malformed frame"})
		return
	}

	var kind conversation.MessageKind
	switch ev.Type {
	case "message", "text":
		kind = conversation.KindText
	case "location":
		kind = conversation.KindLocation
	default:
		c.push(streamEvent{Type: "error", Error: "unknown frame type " + ev.Type})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteWait)
	defer cancel()

	// The stored message comes back through the subscription
	_, err := c.manager.AppendMessage(ctx, c.viewerID, c.sessionID, kind, conversation.Payload{
		Text:     ev.Text,
		Location: ev.Location,
	})
	if err != nil {
		c.push(streamEvent{Type: "error", Error: err.Error()})
	}
}

// writePump pumps queued events and pings to the WebSocket connection
func (c *sessionClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// setUnsubscribe records the subscription, dropping it at once if the
// client already closed
func (c *sessionClient) setUnsubscribe(unsubscribe func()) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		unsubscribe()
		return
	default:
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// close drops the subscription and stops both pumps
func (c *sessionClient) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		unsubscribe := c.unsubscribe
		c.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		c.conn.Close()

		log.Info().
			Str("session_id", c.sessionID).
			Str("viewer_id", c.viewerID).
			Msg("WebSocket connection closed")
	})
}
