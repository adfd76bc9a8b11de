package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tadamon/internal/domain/fault"
	conversationService "tadamon/internal/service/conversation"
	geoService "tadamon/internal/service/geo"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fault.Newf(fault.UnknownCity, "op", "x"), http.StatusUnprocessableEntity},
		{fault.Newf(fault.NoCoordinatesFound, "op", "x"), http.StatusUnprocessableEntity},
		{fault.Newf(fault.UnresolvableLink, "op", "x"), http.StatusUnprocessableEntity},
		{fault.Newf(fault.LocationUnavailable, "op", "x"), http.StatusConflict},
		{geoService.ErrSuperseded, http.StatusConflict},
		{fault.New(fault.LinkFetchFailed, "op", errors.New("x")), http.StatusBadGateway},
		{fault.New(fault.FetchFailed, "op", errors.New("x")), http.StatusBadGateway},
		{fault.New(fault.SendFailed, "op", errors.New("x")), http.StatusBadGateway},
		{fault.New(fault.CreateSessionFailed, "op", errors.New("x")), http.StatusBadGateway},
		{conversationService.ErrSessionNotFound, http.StatusNotFound},
		{conversationService.ErrNotParticipant, http.StatusForbidden},
		{fmt.Errorf("%w: empty", conversationService.ErrInvalidMessage), http.StatusBadRequest},
		{conversationService.ErrInvalidParticipants, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondWithFaultBody(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithFault(rec, "Failed to resolve location", fault.Newf(fault.UnknownCity, "resolve city", "city %q is not registered", "atlantis"))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Kind != string(fault.UnknownCity) || body.Message != `city "atlantis" is not registered` {
		t.Errorf("unexpected body %+v", body)
	}
}
