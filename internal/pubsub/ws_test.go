package pubsub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBridgeStreamsPublishedEvents(t *testing.T) {
	bus := NewLocalBus()
	bridge := NewBridge(bus, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bridge.ServeTopic(w, r, AgentTopic("telegram:1"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	if err := bus.Publish(t.Context(), AgentTopic("telegram:1"), Event{Kind: EventChunk, RunID: "run-1", Delta: "hi"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if got.Kind != EventChunk || got.Delta != "hi" {
		t.Fatalf("got event %+v, want chunk with delta 'hi'", got)
	}
}
