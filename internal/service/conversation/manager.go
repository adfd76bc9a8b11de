// internal/service/conversation/manager.go

package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"tadamon/internal/domain/conversation"
	"tadamon/internal/domain/fault"
	"tadamon/internal/domain/geo"
)

var (
	// ErrSessionNotFound is returned for a session id this manager has not loaded
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotParticipant is returned when a user acts on a session they are not part of
	ErrNotParticipant = errors.New("user is not a participant of this session")

	// ErrInvalidMessage is returned when a payload does not match its kind
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidParticipants is returned for an empty or self-referencing pair
	ErrInvalidParticipants = errors.New("a session needs two distinct participants")
)

// ManagerConfig contains configuration for the conversation manager
type ManagerConfig struct {
	DirectTitle   string
	MaxTextLength int
	CreateTimeout time.Duration
}

// Manager creates, deduplicates and maintains conversation sessions. It owns
// the session index and every session's message sequence.
type Manager struct {
	store      conversation.Store
	subscriber conversation.Subscriber
	notifier   conversation.Notifier
	config     ManagerConfig
	now        func() time.Time

	mu            sync.Mutex
	sessions      map[string]*conversation.Session
	index         map[conversation.SessionKey]string
	seen          map[string]map[string]struct{}
	subscriptions map[string]func()

	creating singleflight.Group
}

// NewManager creates a new conversation manager. subscriber and notifier may be nil.
func NewManager(
	store conversation.Store,
	subscriber conversation.Subscriber,
	notifier conversation.Notifier,
	config ManagerConfig,
) *Manager {
	if config.DirectTitle == "" {
		config.DirectTitle = "Direct Message"
	}
	if config.CreateTimeout <= 0 {
		config.CreateTimeout = 15 * time.Second
	}

	return &Manager{
		store:         store,
		subscriber:    subscriber,
		notifier:      notifier,
		config:        config,
		now:           time.Now,
		sessions:      make(map[string]*conversation.Session),
		index:         make(map[conversation.SessionKey]string),
		seen:          make(map[string]map[string]struct{}),
		subscriptions: make(map[string]func()),
	}
}

// GetOrCreate returns the session between the two users for anchor, creating
// it through the store only when none is indexed. Concurrent calls for the
// same key share one create request, which outlives any single caller's
// cancellation but not CreateTimeout.
func (m *Manager) GetOrCreate(ctx context.Context, localUserID, otherUserID string, anchor conversation.Anchor) (conversation.Session, error) {
	if localUserID == "" || otherUserID == "" || localUserID == otherUserID {
		return conversation.Session{}, ErrInvalidParticipants
	}

	key := conversation.KeyFor(localUserID, otherUserID, anchor)

	m.mu.Lock()
	if id, ok := m.index[key]; ok {
		s := m.snapshot(m.sessions[id], localUserID)
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	v, err, shared := m.creating.Do(key.String(), func() (interface{}, error) {
		createCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.CreateTimeout)
		defer cancel()
		return m.create(createCtx, localUserID, anchor, key)
	})
	if err != nil {
		return conversation.Session{}, err
	}
	if shared {
		log.Debug().Str("key", key.String()).Msg("Joined in-flight session creation")
	}

	id := v.(string)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(m.sessions[id], localUserID), nil
}

// create runs while the key is marked pending. It returns the session id.
func (m *Manager) create(ctx context.Context, localUserID string, anchor conversation.Anchor, key conversation.SessionKey) (string, error) {
	const op = "create session"

	// A create for this key may have settled between the caller's check and
	// acquiring the pending marker
	m.mu.Lock()
	if id, ok := m.index[key]; ok {
		m.mu.Unlock()
		return id, nil
	}
	m.mu.Unlock()

	participants := key.Pair

	id, created, err := m.store.CreateSession(ctx, participants, anchor)
	if errors.Is(err, conversation.ErrSessionExists) {
		log.Info().Str("key", key.String()).Msg("Session already exists remotely, re-fetching")
		return m.refetch(ctx, localUserID, key)
	}
	if err != nil {
		return "", fault.New(fault.CreateSessionFailed, op, err)
	}
	if !created {
		// The service merged the request into a session created elsewhere,
		// which may already hold messages
		log.Info().Str("key", key.String()).Str("session_id", id).Msg("Session merged remotely, re-fetching")
		return m.refetch(ctx, localUserID, key)
	}

	session := &conversation.Session{
		ID:             id,
		Anchor:         anchor,
		ParticipantIDs: participants,
		Title:          m.titleFor(anchor),
		Messages:       []conversation.Message{},
		UpdatedAt:      m.now(),
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.seen[id] = make(map[string]struct{})
	m.index[key] = id
	m.mu.Unlock()

	m.watch(id)

	log.Info().
		Str("session_id", id).
		Str("anchor", anchor.Key()).
		Msg("Conversation session created")

	return id, nil
}

// refetch replaces local state with the store's view after a rejected or
// merged duplicate
func (m *Manager) refetch(ctx context.Context, localUserID string, key conversation.SessionKey) (string, error) {
	const op = "create session"

	sessions, err := m.store.ListSessions(ctx, localUserID)
	if err != nil {
		return "", fault.New(fault.CreateSessionFailed, op, err)
	}

	m.mergeAll(sessions)

	m.mu.Lock()
	id, ok := m.index[key]
	m.mu.Unlock()
	if !ok {
		return "", fault.Newf(fault.CreateSessionFailed, op, "service reported a duplicate for %s but did not return it", key)
	}

	return id, nil
}

// AppendMessage validates and stores an outgoing message, then appends the
// stored message to the session. The session is unchanged on failure.
func (m *Manager) AppendMessage(
	ctx context.Context,
	localUserID, sessionID string,
	kind conversation.MessageKind,
	payload conversation.Payload,
) (conversation.Message, error) {
	payload, err := m.validate(kind, payload)
	if err != nil {
		return conversation.Message{}, err
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return conversation.Message{}, ErrSessionNotFound
	}
	if !s.Includes(localUserID) {
		m.mu.Unlock()
		return conversation.Message{}, ErrNotParticipant
	}
	m.mu.Unlock()

	msg, err := m.store.AppendMessage(ctx, sessionID, localUserID, kind, payload)
	if err != nil {
		return conversation.Message{}, fault.New(fault.SendFailed, "append message", err)
	}

	m.mu.Lock()
	m.appendLocked(sessionID, msg)
	m.mu.Unlock()

	if m.notifier != nil {
		if err := m.notifier.Publish(ctx, sessionID, msg); err != nil {
			// Log error but continue; the message is durably stored
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to publish message")
		}
	}

	return copyMessage(msg, localUserID), nil
}

func (m *Manager) validate(kind conversation.MessageKind, payload conversation.Payload) (conversation.Payload, error) {
	switch kind {
	case conversation.KindText:
		payload.Text = strings.TrimSpace(payload.Text)
		if payload.Text == "" {
			return payload, fmt.Errorf("%w: text is required", ErrInvalidMessage)
		}
		if m.config.MaxTextLength > 0 && utf8.RuneCountInString(payload.Text) > m.config.MaxTextLength {
			return payload, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidMessage, m.config.MaxTextLength)
		}
		payload.Location = nil

	case conversation.KindLocation:
		if payload.Location == nil {
			return payload, fmt.Errorf("%w: a resolved location is required", ErrInvalidMessage)
		}
		if !payload.Location.Valid() {
			return payload, fmt.Errorf("%w: location out of range", ErrInvalidMessage)
		}
		if !payload.Location.Source.Known() {
			return payload, fmt.Errorf("%w: unknown location source %q", ErrInvalidMessage, payload.Location.Source)
		}
		loc := *payload.Location
		loc.Label = strings.TrimSpace(loc.Label)
		if loc.Label == "" {
			loc.Label = geo.LabelSharedLocation
		}
		payload.Location = &loc
		payload.Text = "Shared location: " + loc.Label

	default:
		return payload, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, kind)
	}

	return payload, nil
}

// OnIncomingMessage appends a message delivered by the realtime subscription.
// Messages for unknown sessions are ignored; they show up on the next
// ListSessions. Messages are appended in arrival order, not by SentAt.
func (m *Manager) OnIncomingMessage(sessionID string, msg conversation.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		log.Debug().Str("session_id", sessionID).Msg("Ignoring message for unknown session")
		return
	}

	m.appendLocked(sessionID, msg)
}

// appendLocked appends msg unless a message with the same id is already present
func (m *Manager) appendLocked(sessionID string, msg conversation.Message) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	seen := m.seen[sessionID]
	if msg.ID != "" {
		if _, dup := seen[msg.ID]; dup {
			return
		}
		seen[msg.ID] = struct{}{}
	}

	msg.IsMine = false
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = m.now()
}

// ListSessions refreshes sessions from the store and returns every session
// localUserID takes part in, most recently updated first. On failure the
// local state is left as it was.
func (m *Manager) ListSessions(ctx context.Context, localUserID string) ([]conversation.Session, error) {
	sessions, err := m.store.ListSessions(ctx, localUserID)
	if err != nil {
		return nil, fault.New(fault.FetchFailed, "list sessions", err)
	}

	m.mergeAll(sessions)

	m.mu.Lock()
	out := make([]conversation.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Includes(localUserID) {
			out = append(out, m.snapshot(s, localUserID))
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}

// Session returns a loaded session as seen by viewerID
func (m *Manager) Session(viewerID, sessionID string) (conversation.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return conversation.Session{}, ErrSessionNotFound
	}
	if !s.Includes(viewerID) {
		return conversation.Session{}, ErrNotParticipant
	}
	return m.snapshot(s, viewerID), nil
}

// mergeAll replaces local entries with the store's durable view
func (m *Manager) mergeAll(sessions []conversation.Session) {
	var added []string

	m.mu.Lock()
	for _, fetched := range sessions {
		s := fetched
		s.Messages = append([]conversation.Message(nil), fetched.Messages...)
		if s.Title == "" {
			s.Title = m.titleFor(s.Anchor)
		}

		if old, ok := m.sessions[s.ID]; ok {
			if oldKey := old.Key(); oldKey != s.Key() && m.index[oldKey] == s.ID {
				delete(m.index, oldKey)
			}
		} else {
			added = append(added, s.ID)
		}

		seen := make(map[string]struct{}, len(s.Messages))
		for i := range s.Messages {
			s.Messages[i].IsMine = false
			if s.Messages[i].ID != "" {
				seen[s.Messages[i].ID] = struct{}{}
			}
		}

		m.sessions[s.ID] = &s
		m.seen[s.ID] = seen
		m.index[s.Key()] = s.ID
	}
	m.mu.Unlock()

	for _, id := range added {
		m.watch(id)
	}
}

// watch subscribes to realtime messages for a session once
func (m *Manager) watch(sessionID string) {
	if m.subscriber == nil {
		return
	}

	m.mu.Lock()
	if _, ok := m.subscriptions[sessionID]; ok {
		m.mu.Unlock()
		return
	}
	// Reserve the slot so concurrent callers do not subscribe twice
	m.subscriptions[sessionID] = func() {}
	m.mu.Unlock()

	unsubscribe, err := m.subscriber.Subscribe(sessionID, func(msg conversation.Message) {
		m.OnIncomingMessage(sessionID, msg)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.subscriptions, sessionID)
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to subscribe to session")
		return
	}
	m.subscriptions[sessionID] = unsubscribe
}

// Close drops every realtime subscription
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]func())
	m.mu.Unlock()

	for _, unsubscribe := range subs {
		unsubscribe()
	}
}

func (m *Manager) titleFor(anchor conversation.Anchor) string {
	if anchor.Title != "" {
		return anchor.Title
	}
	if anchor.IsDirect() {
		return m.config.DirectTitle
	}
	return "Posting " + anchor.PostingID
}

// snapshot copies a session for viewerID so callers never share the message slice
func (m *Manager) snapshot(s *conversation.Session, viewerID string) conversation.Session {
	out := *s
	out.Messages = make([]conversation.Message, len(s.Messages))
	for i, msg := range s.Messages {
		out.Messages[i] = copyMessage(msg, viewerID)
	}
	return out
}

func copyMessage(msg conversation.Message, viewerID string) conversation.Message {
	if msg.Location != nil {
		loc := *msg.Location
		msg.Location = &loc
	}
	msg.IsMine = msg.SenderID == viewerID
	return msg
}
