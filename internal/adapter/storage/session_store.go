// internal/adapter/storage/session_store.go

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tadamon/internal/domain/conversation"
	"tadamon/internal/domain/geo"
)

// SessionStore implements conversation.Store on Postgres
type SessionStore struct {
	db *pgxpool.Pool
}

// NewSessionStore creates a new session store
func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		db: db,
	}
}

// CreateSession creates the session for a pair and anchor. A create for a
// key that already has a row, from this or another instance, is merged into
// it: the existing id is returned with created false.
func (s *SessionStore) CreateSession(ctx context.Context, participants [2]string, anchor conversation.Anchor) (string, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var itemID *string
	if !anchor.IsDirect() {
		itemID = &anchor.PostingID
	}

	var id string
	var created bool
	err = tx.QueryRow(
		ctx,
		`
		INSERT INTO chat_sessions (id, item_id, pair_key, anchor_key, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (pair_key, anchor_key) DO UPDATE
		SET pair_key = EXCLUDED.pair_key
		RETURNING id::text, (xmax = 0) AS created
		`,
		uuid.New().String(),
		itemID,
		conversation.PairKey(participants[0], participants[1]),
		anchor.Key(),
	).Scan(&id, &created)
	if err != nil {
		return "", false, fmt.Errorf("error inserting session: %w", err)
	}

	_, err = tx.Exec(
		ctx,
		`
		INSERT INTO chat_participants (chat_id, user_id)
		VALUES ($1, $2), ($1, $3)
		ON CONFLICT DO NOTHING
		`,
		id,
		participants[0],
		participants[1],
	)
	if err != nil {
		return "", false, fmt.Errorf("error inserting participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, fmt.Errorf("error committing session: %w", err)
	}

	return id, created, nil
}

// ListSessions returns every session userID takes part in with its messages
func (s *SessionStore) ListSessions(ctx context.Context, userID string) ([]conversation.Session, error) {
	query := `
		SELECT
			cs.id::text, COALESCE(cs.item_id::text, ''), COALESCE(i.title, ''), cs.updated_at,
			ARRAY(
				SELECT p.user_id::text FROM chat_participants p
				WHERE p.chat_id = cs.id
				ORDER BY p.user_id::text
			)
		FROM chat_sessions cs
		JOIN chat_participants me ON me.chat_id = cs.id AND me.user_id::text = $1
		LEFT JOIN items i ON i.id = cs.item_id
		ORDER BY cs.updated_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []conversation.Session
	byID := make(map[string]int)
	ids := []string{}

	for rows.Next() {
		var sess conversation.Session
		var participants []string

		if err := rows.Scan(
			&sess.ID,
			&sess.Anchor.PostingID,
			&sess.Anchor.Title,
			&sess.UpdatedAt,
			&participants,
		); err != nil {
			return nil, fmt.Errorf("error scanning session: %w", err)
		}

		if len(participants) != 2 {
			// Half-created sessions are skipped until both rows exist
			continue
		}
		sess.ParticipantIDs = [2]string{participants[0], participants[1]}
		sess.Title = sess.Anchor.Title
		sess.Messages = []conversation.Message{}

		byID[sess.ID] = len(sessions)
		ids = append(ids, sess.ID)
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	if len(ids) == 0 {
		return sessions, nil
	}

	msgRows, err := s.db.Query(
		ctx,
		`
		SELECT
			id::text, chat_id::text, sender_id::text, type, text,
			latitude, longitude, COALESCE(label, ''), COALESCE(source, ''), created_at
		FROM messages
		WHERE chat_id::text = ANY($1)
		ORDER BY created_at ASC, id ASC
		`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var chatID string
		msg, err := scanMessage(msgRows, &chatID)
		if err != nil {
			return nil, err
		}

		if i, ok := byID[chatID]; ok {
			sessions[i].Messages = append(sessions[i].Messages, msg)
		}
	}

	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return sessions, nil
}

// AppendMessage stores a message and bumps the session's updated_at
func (s *SessionStore) AppendMessage(
	ctx context.Context,
	sessionID, senderID string,
	kind conversation.MessageKind,
	payload conversation.Payload,
) (conversation.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	msg := conversation.Message{
		ID:       uuid.New().String(),
		SenderID: senderID,
		Kind:     kind,
		Text:     payload.Text,
		Location: payload.Location,
	}

	var lat, lng *float64
	var label, source *string
	if payload.Location != nil {
		lat = &payload.Location.Latitude
		lng = &payload.Location.Longitude
		label = &payload.Location.Label
		src := string(payload.Location.Source)
		source = &src
	}

	err = tx.QueryRow(
		ctx,
		`
		INSERT INTO messages (id, chat_id, sender_id, type, text, latitude, longitude, label, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
		`,
		msg.ID,
		sessionID,
		senderID,
		string(kind),
		payload.Text,
		lat,
		lng,
		label,
		source,
	).Scan(&msg.SentAt)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("error inserting message: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE chat_sessions SET updated_at = $2 WHERE id = $1`, sessionID, msg.SentAt)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("error updating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversation.Message{}, fmt.Errorf("session %s not found", sessionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return conversation.Message{}, fmt.Errorf("error committing message: %w", err)
	}

	return msg, nil
}

func scanMessage(row pgx.Row, chatID *string) (conversation.Message, error) {
	var msg conversation.Message
	var kind, label, source string
	var lat, lng *float64
	var createdAt time.Time

	if err := row.Scan(
		&msg.ID,
		chatID,
		&msg.SenderID,
		&kind,
		&msg.Text,
		&lat,
		&lng,
		&label,
		&source,
		&createdAt,
	); err != nil {
		return msg, fmt.Errorf("error scanning message: %w", err)
	}

	msg.Kind = conversation.MessageKind(kind)
	msg.SentAt = createdAt

	// Zero is a valid coordinate; only NULL means absent
	if lat != nil && lng != nil {
		msg.Location = &geo.CanonicalLocation{
			GeoPoint: geo.GeoPoint{Latitude: *lat, Longitude: *lng},
			Label:    label,
			Source:   geo.Source(source),
		}
	}

	return msg, nil
}
