package realtime

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"

	"tadamon/internal/domain/conversation"
	"tadamon/internal/domain/geo"
)

func TestSubject(t *testing.T) {
	if got := Subject("3f2a"); got != "conversation.3f2a.messages" {
		t.Fatalf("Subject = %q", got)
	}
}

func runBus(t *testing.T) (*Bus, *nats.Conn) {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	return NewBus(nc), nc
}

func receive(t *testing.T, ch <-chan conversation.Message) conversation.Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return conversation.Message{}
}

func TestBusRoundTrip(t *testing.T) {
	bus, nc := runBus(t)

	got := make(chan conversation.Message, 4)
	unsubscribe, err := bus.Subscribe("s1", func(msg conversation.Message) {
		got <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	other := make(chan conversation.Message, 4)
	unsubscribeOther, err := bus.Subscribe("s2", func(msg conversation.Message) {
		other <- msg
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribeOther()

	sent := conversation.Message{
		ID:       "m1",
		SenderID: "userA",
		Kind:     conversation.KindLocation,
		Text:     "Shared location: Casablanca",
		Location: &geo.CanonicalLocation{
			GeoPoint: geo.GeoPoint{Latitude: 0, Longitude: -7.5898},
			Label:    "Casablanca",
			Source:   geo.SourceManualCity,
		},
		SentAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		IsMine: true,
	}

	// Malformed payloads on the subject are dropped
	if err := nc.Publish(Subject("s1"), []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), "s1", sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := receive(t, got)
	if msg.IsMine {
		t.Error("IsMine must not travel on the wire")
	}
	if msg.ID != sent.ID || msg.SenderID != sent.SenderID || msg.Kind != sent.Kind || msg.Text != sent.Text {
		t.Errorf("unexpected message %+v", msg)
	}
	if !msg.SentAt.Equal(sent.SentAt) {
		t.Errorf("SentAt = %v, want %v", msg.SentAt, sent.SentAt)
	}
	if msg.Location == nil || *msg.Location != *sent.Location {
		t.Errorf("Location = %+v", msg.Location)
	}

	// Other sessions do not see it
	select {
	case msg := <-other:
		t.Fatalf("message leaked to another session: %+v", msg)
	default:
	}

	unsubscribe()
	if err := bus.Publish(context.Background(), "s1", conversation.Message{ID: "m2", Kind: conversation.KindText, Text: "late"}); err != nil {
		t.Fatal(err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-got:
		t.Fatalf("received after unsubscribe: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusPublishCanceled(t *testing.T) {
	bus, _ := runBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bus.Publish(ctx, "s1", conversation.Message{ID: "m1"}); err == nil {
		t.Fatal("expected an error for a canceled context")
	}
}
