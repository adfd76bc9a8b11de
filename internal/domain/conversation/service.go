// internal/domain/conversation/service.go

package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tadamon/internal/domain/geo"
)

// MessageKind defines the type of message
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindLocation MessageKind = "location"
)

// DirectAnchor is the anchor key used for sessions not tied to a posting
const DirectAnchor = "DIRECT"

// ErrSessionExists is returned by a Store that refuses to create a second
// session for the same participant pair and anchor
var ErrSessionExists = errors.New("session already exists")

// Anchor ties a session to a posting, or marks it as a direct contact when
// PostingID is empty. Title is display-only and not part of the identity.
type Anchor struct {
	PostingID string `json:"postingId,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Direct returns an anchor for a direct conversation
func Direct() Anchor {
	return Anchor{}
}

// IsDirect reports whether the anchor is not tied to a posting
func (a Anchor) IsDirect() bool {
	return a.PostingID == ""
}

// Key returns the posting id or the DIRECT sentinel
func (a Anchor) Key() string {
	if a.IsDirect() {
		return DirectAnchor
	}
	return a.PostingID
}

// SortedPair orders two participant ids so that either order yields the same pair
func SortedPair(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// PairKey returns the unordered key for two participants as stored by the
// backend. The first id is length-prefixed so no two pairs share a key.
func PairKey(a, b string) string {
	p := SortedPair(a, b)
	return fmt.Sprintf("%d:%s|%s", len(p[0]), p[0], p[1])
}

// SessionKey identifies the at-most-one session per participant pair and anchor
type SessionKey struct {
	Pair   [2]string
	Anchor string
}

// KeyFor builds the session key for two participants and an anchor
func KeyFor(a, b string, anchor Anchor) SessionKey {
	return SessionKey{Pair: SortedPair(a, b), Anchor: anchor.Key()}
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%q|%q#%q", k.Pair[0], k.Pair[1], k.Anchor)
}

// Message is a single entry in a session
type Message struct {
	ID       string                 `json:"id"`
	SenderID string                 `json:"senderId"`
	Kind     MessageKind            `json:"type"`
	Text     string                 `json:"text"`
	Location *geo.CanonicalLocation `json:"location,omitempty"`
	SentAt   time.Time              `json:"sentAt"`
	IsMine   bool                   `json:"isMine"`
}

// Session is a two-party conversation. It owns its message sequence.
type Session struct {
	ID             string    `json:"id"`
	Anchor         Anchor    `json:"anchor"`
	ParticipantIDs [2]string `json:"participantIds"`
	Title          string    `json:"title"`
	Messages       []Message `json:"messages"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Key returns the session's dedup key
func (s Session) Key() SessionKey {
	return KeyFor(s.ParticipantIDs[0], s.ParticipantIDs[1], s.Anchor)
}

// Includes reports whether userID is one of the participants
func (s Session) Includes(userID string) bool {
	return s.ParticipantIDs[0] == userID || s.ParticipantIDs[1] == userID
}

// OtherParticipant returns the participant that is not userID
func (s Session) OtherParticipant(userID string) string {
	if s.ParticipantIDs[0] == userID {
		return s.ParticipantIDs[1]
	}
	return s.ParticipantIDs[0]
}

// Preview returns a one-line summary of the last message
func (s Session) Preview() string {
	if len(s.Messages) == 0 {
		return "Started a chat"
	}

	last := s.Messages[len(s.Messages)-1]
	if last.Kind == KindLocation && last.Location != nil {
		return "📍 Shared location: " + last.Location.Label
	}
	return last.Text
}

// Payload is the content of an outgoing message
type Payload struct {
	Text     string
	Location *geo.CanonicalLocation
}

// Store is the persistence side of the hosted backend
type Store interface {
	// CreateSession creates a session and returns its id. When the pair
	// already has a session for the anchor the store either merges the
	// request, returning the existing id with created false, or rejects it
	// with ErrSessionExists.
	CreateSession(ctx context.Context, participantIDs [2]string, anchor Anchor) (id string, created bool, err error)

	// ListSessions returns every session userID participates in, with messages
	ListSessions(ctx context.Context, userID string) ([]Session, error)

	// AppendMessage stores a message; the store assigns ID and SentAt
	AppendMessage(ctx context.Context, sessionID, senderID string, kind MessageKind, payload Payload) (Message, error)
}

// Subscriber delivers messages appended to a session by any client
type Subscriber interface {
	Subscribe(sessionID string, onMessage func(Message)) (unsubscribe func(), err error)
}

// Notifier announces a durably stored message to other clients
type Notifier interface {
	Publish(ctx context.Context, sessionID string, msg Message) error
}
