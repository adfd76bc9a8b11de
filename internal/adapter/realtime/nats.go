// internal/adapter/realtime/nats.go

package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"tadamon/internal/domain/conversation"
)

// Subject returns the NATS subject carrying a session's messages
func Subject(sessionID string) string {
	return fmt.Sprintf("conversation.%s.messages", sessionID)
}

// Bus implements conversation.Subscriber and conversation.Notifier on NATS
type Bus struct {
	conn *nats.Conn
}

// NewBus creates a new bus on an established connection
func NewBus(conn *nats.Conn) *Bus {
	return &Bus{
		conn: conn,
	}
}

// Publish sends a stored message to every subscriber of the session
func (b *Bus) Publish(ctx context.Context, sessionID string, msg conversation.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// IsMine is per viewer and never travels on the wire
	msg.IsMine = false
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}

	if err := b.conn.Publish(Subject(sessionID), data); err != nil {
		return fmt.Errorf("error publishing message: %w", err)
	}

	return nil
}

// Subscribe delivers every message published for the session to onMessage
// until the returned func is called
func (b *Bus) Subscribe(sessionID string, onMessage func(conversation.Message)) (func(), error) {
	sub, err := b.conn.Subscribe(Subject(sessionID), func(m *nats.Msg) {
		var msg conversation.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed message")
			return
		}
		onMessage(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("error subscribing to %s: %w", Subject(sessionID), err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Msg("Unsubscribe failed")
		}
	}, nil
}
