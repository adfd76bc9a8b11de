// internal/server/handlers/conversation.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tadamon/internal/domain/conversation"
	"tadamon/internal/domain/geo"
	conversationService "tadamon/internal/service/conversation"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	manager *conversationService.Manager
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(manager *conversationService.Manager) *ConversationHandler {
	return &ConversationHandler{
		manager: manager,
	}
}

// sessionSummary is a session as shown in a viewer's conversation list
type sessionSummary struct {
	ID                 string    `json:"id"`
	PostingID          string    `json:"postingId,omitempty"`
	Title              string    `json:"title"`
	OtherParticipantID string    `json:"otherParticipantId"`
	LastMessage        string    `json:"lastMessage"`
	MessageCount       int       `json:"messageCount"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func newSessionSummary(s conversation.Session, viewerID string) sessionSummary {
	return sessionSummary{
		ID:                 s.ID,
		PostingID:          s.Anchor.PostingID,
		Title:              s.Title,
		OtherParticipantID: s.OtherParticipant(viewerID),
		LastMessage:        s.Preview(),
		MessageCount:       len(s.Messages),
		UpdatedAt:          s.UpdatedAt,
	}
}

// StartConversation returns the viewer's session with another user, creating it when needed
func (h *ConversationHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")

	type startRequest struct {
		OtherUserID string `json:"otherUserId"`
		PostingID   string `json:"postingId"`
		Title       string `json:"title"`
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	anchor := conversation.Anchor{
		PostingID: strings.TrimSpace(req.PostingID),
		Title:     strings.TrimSpace(req.Title),
	}

	s, err := h.manager.GetOrCreate(r.Context(), viewerID, req.OtherUserID, anchor)
	if err != nil {
		respondWithFault(w, "Failed to start conversation", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// ListConversations returns the viewer's sessions, most recently updated first
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")

	sessions, err := h.manager.ListSessions(r.Context(), viewerID)
	if err != nil {
		respondWithFault(w, "Failed to list conversations", err)
		return
	}

	summaries := make([]sessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = newSessionSummary(s, viewerID)
	}

	respondWithJSON(w, http.StatusOK, summaries)
}

// GetConversation returns one session with its messages
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")
	sessionID := chi.URLParam(r, "sid")

	s, err := loadSession(r.Context(), h.manager, viewerID, sessionID)
	if err != nil {
		respondWithFault(w, "Failed to get conversation", err)
		return
	}

	respondWithJSON(w, http.StatusOK, s)
}

// loadSession returns a session, refreshing from the store once when this
// instance has not loaded it yet
func loadSession(ctx context.Context, manager *conversationService.Manager, viewerID, sessionID string) (conversation.Session, error) {
	s, err := manager.Session(viewerID, sessionID)
	if !errors.Is(err, conversationService.ErrSessionNotFound) {
		return s, err
	}

	// The session may have been created by another instance
	if _, err := manager.ListSessions(ctx, viewerID); err != nil {
		return conversation.Session{}, err
	}
	return manager.Session(viewerID, sessionID)
}

// SendMessage appends a text or location message to a session
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "id")
	sessionID := chi.URLParam(r, "sid")

	type sendMessageRequest struct {
		Type     string                 `json:"type"`
		Text     string                 `json:"text"`
		Location *geo.CanonicalLocation `json:"location"`
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind := conversation.MessageKind(req.Type)
	if kind == "" {
		kind = conversation.KindText
	}

	msg, err := h.manager.AppendMessage(r.Context(), viewerID, sessionID, kind, conversation.Payload{
		Text:     req.Text,
		Location: req.Location,
	})
	if err != nil {
		respondWithFault(w, "Failed to send message", err)
		return
	}

	response := map[string]interface{}{"message": msg}
	if msg.Location != nil {
		response["mapUrl"] = msg.Location.MapURL()
	}

	respondWithJSON(w, http.StatusCreated, response)
}
