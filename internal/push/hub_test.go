package push

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Register(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBroadcastReachesEveryViewer(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	first := dialTestHub(t, hub)
	second := dialTestHub(t, hub)

	deadline := time.Now().Add(5 * time.Second)
	for hub.Count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Count() != 2 {
		t.Fatalf("expected 2 registered viewers, got %d", hub.Count())
	}

	sent := Payload{
		Email:     "u@x.com",
		Text:      "hello from support",
		Sender:    "bot",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	hub.Broadcast(sent)

	for _, client := range []*websocket.Conn{first, second} {
		_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var got Payload
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if got.Email != sent.Email || got.Text != sent.Text || got.Sender != "bot" {
			t.Fatalf("unexpected payload: %+v", got)
		}
	}
}

func TestUnregisterRemovesViewer(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	client := dialTestHub(t, hub)
	_ = client

	deadline := time.Now().Add(5 * time.Second)
	for hub.Count() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.CloseAll()
	if hub.Count() != 0 {
		t.Fatalf("expected empty hub, got %d", hub.Count())
	}

	// A broadcast into an empty hub is a quiet no-op.
	hub.Broadcast(Payload{Email: "u@x.com", Text: "anyone there?", Sender: "bot", Timestamp: time.Now()})
}
