package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tadamon/internal/config"
	"tadamon/internal/domain/conversation"
	conversationService "tadamon/internal/service/conversation"
	geoService "tadamon/internal/service/geo"
)

// memoryBus fans published messages out to subscribers in-process
type memoryBus struct {
	mu       sync.Mutex
	next     int
	handlers map[string]map[int]func(conversation.Message)
}

func (b *memoryBus) Subscribe(sessionID string, onMessage func(conversation.Message)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[sessionID] == nil {
		b.handlers[sessionID] = make(map[int]func(conversation.Message))
	}
	b.next++
	id := b.next
	b.handlers[sessionID][id] = onMessage

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[sessionID], id)
	}, nil
}

func (b *memoryBus) Publish(ctx context.Context, sessionID string, msg conversation.Message) error {
	b.mu.Lock()
	var targets []func(conversation.Message)
	for _, h := range b.handlers[sessionID] {
		targets = append(targets, h)
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(msg)
	}
	return nil
}

type frame struct {
	Type    string                `json:"type"`
	Session *conversation.Session `json:"session"`
	Message *conversation.Message `json:"message"`
	Error   string                `json:"error"`
}

func TestSessionWebSocket(t *testing.T) {
	sessions := &memorySessions{sessions: make(map[string]*conversation.Session)}
	bus := &memoryBus{handlers: make(map[string]map[int]func(conversation.Message))}
	manager := conversationService.NewManager(sessions, bus, bus, conversationService.ManagerConfig{})
	defer manager.Close()

	s, err := manager.GetOrCreate(context.Background(), "u1", "u2", conversation.Direct())
	if err != nil {
		t.Fatal(err)
	}

	router := NewRouter(config.ServerConfig{CorsOrigins: []string{"*"}}, Dependencies{
		Resolver:   geoService.NewResolver(nil, nil, nil),
		Trackers:   geoService.NewTrackerRegistry(),
		Cities:     geoService.NewCityRegistry(),
		Manager:    manager,
		Subscriber: bus,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + s.ID + "?viewer=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var history frame
	if err := conn.ReadJSON(&history); err != nil {
		t.Fatalf("read history: %v", err)
	}
	if history.Type != "history" || history.Session == nil || history.Session.ID != s.ID {
		t.Fatalf("unexpected first frame %+v", history)
	}

	if err := conn.WriteJSON(map[string]string{"type": "message", "text": "Salam"}); err != nil {
		t.Fatal(err)
	}

	var echo frame
	if err := conn.ReadJSON(&echo); err != nil {
		t.Fatalf("read message: %v", err)
	}
	if echo.Type != "message" || echo.Message == nil || echo.Message.Text != "Salam" || !echo.Message.IsMine {
		t.Fatalf("unexpected message frame %+v", echo)
	}

	// Messages from the other participant arrive through the same stream
	if _, err := manager.AppendMessage(context.Background(), "u2", s.ID, conversation.KindText, conversation.Payload{Text: "Hi"}); err != nil {
		t.Fatal(err)
	}
	var incoming frame
	if err := conn.ReadJSON(&incoming); err != nil {
		t.Fatalf("read incoming: %v", err)
	}
	if incoming.Message == nil || incoming.Message.SenderID != "u2" || incoming.Message.IsMine {
		t.Fatalf("unexpected incoming frame %+v", incoming)
	}

	got, _ := manager.Session("u1", s.ID)
	if len(got.Messages) != 2 {
		t.Fatalf("expected two messages without duplicates, got %+v", got.Messages)
	}

	if err := conn.WriteJSON(map[string]string{"type": "sticker"}); err != nil {
		t.Fatal(err)
	}
	var bad frame
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatal(err)
	}
	if bad.Type != "error" {
		t.Fatalf("expected error frame, got %+v", bad)
	}
}

func TestSessionWebSocketRejectsOutsider(t *testing.T) {
	sessions := &memorySessions{sessions: make(map[string]*conversation.Session)}
	manager := conversationService.NewManager(sessions, nil, nil, conversationService.ManagerConfig{})

	s, err := manager.GetOrCreate(context.Background(), "u1", "u2", conversation.Direct())
	if err != nil {
		t.Fatal(err)
	}

	router := NewRouter(config.ServerConfig{}, Dependencies{
		Resolver: geoService.NewResolver(nil, nil, nil),
		Trackers: geoService.NewTrackerRegistry(),
		Cities:   geoService.NewCityRegistry(),
		Manager:  manager,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversations/" + s.ID + "?viewer=u3"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %v", resp)
	}
}
