// internal/server/handlers/response.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"tadamon/internal/domain/fault"
	conversationService "tadamon/internal/service/conversation"
	geoService "tadamon/internal/service/geo"
)

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	if err != nil && code >= 500 {
		log.Error().Err(err).Int("code", code).Str("message", message).Msg("HTTP error")
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}

// errorResponse is the body for failures coming from the core
type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// respondWithFault maps a core error to its status code and body
func respondWithFault(w http.ResponseWriter, message string, err error) {
	code := statusFor(err)

	if code >= 500 {
		log.Error().Err(err).Int("code", code).Str("message", message).Msg("HTTP error")
	}

	body := errorResponse{Error: message}
	var fe *fault.Error
	if errors.As(err, &fe) {
		body.Kind = string(fe.Kind)
		body.Message = fe.Message
	} else if code < 500 {
		body.Message = err.Error()
	}

	respondWithJSON(w, code, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fault.ErrUnknownCity),
		errors.Is(err, fault.ErrNoCoordinatesFound),
		errors.Is(err, fault.ErrUnresolvableLink):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fault.ErrLocationUnavailable),
		errors.Is(err, geoService.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, fault.ErrLinkFetchFailed),
		errors.Is(err, fault.ErrFetchFailed),
		errors.Is(err, fault.ErrSendFailed),
		errors.Is(err, fault.ErrCreateSessionFailed):
		return http.StatusBadGateway
	case errors.Is(err, conversationService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversationService.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, conversationService.ErrInvalidMessage),
		errors.Is(err, conversationService.ErrInvalidParticipants):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
