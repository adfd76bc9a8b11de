package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(SendFailed, "append message", cause)

	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected %v to match ErrSendFailed", err)
	}
	if errors.Is(err, ErrFetchFailed) {
		t.Fatalf("did not expect %v to match ErrFetchFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
	if err.Message != "connection refused" {
		t.Fatalf("unexpected message %q", err.Message)
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(UnknownCity, "resolve", "city %q not found", "atlantis"))

	if got := KindOf(err); got != UnknownCity {
		t.Fatalf("KindOf = %q, want %q", got, UnknownCity)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain) = %q, want empty", got)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: FetchFailed}, "fetch_failed"},
		{&Error{Kind: FetchFailed, Op: "fetch postings"}, "fetch postings: fetch_failed"},
		{&Error{Kind: FetchFailed, Message: "timeout"}, "fetch_failed: timeout"},
		{&Error{Kind: FetchFailed, Op: "fetch postings", Message: "timeout"}, "fetch postings: fetch_failed: timeout"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
