package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
)

func TestHubEnqueueAfterClientClosureDoesNotPanic(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, 0, 0)
	client := &client{
		id:     "test-client",
		send:   make(chan []byte, 1),
		closed: make(chan struct{}),
		hub:    hub,
	}

	// Teardown races with a broadcast.
	close(client.closed)
	close(client.send)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("enqueue panicked: %v", r)
		}
	}()

	hub.enqueue(client, []byte("payload"))
}

func TestHubEnqueueDropsOldestMessageWhenFull(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, 0, 0)
	client := &client{
		id:     "ring-client",
		send:   make(chan []byte, 2),
		closed: make(chan struct{}),
		hub:    hub,
	}

	client.send <- []byte("older")
	client.send <- []byte("newer")

	hub.enqueue(client, []byte("latest"))

	if first := <-client.send; string(first) != "newer" {
		t.Fatalf("expected 'newer' to remain, got %q", string(first))
	}
	if second := <-client.send; string(second) != "latest" {
		t.Fatalf("expected 'latest' to be enqueued, got %q", string(second))
	}
}

func TestEventRingBufferWraps(t *testing.T) {
	t.Parallel()

	rb := NewEventRingBuffer(3)
	for _, name := range []string{"a", "b", "c", "d"} {
		rb.Add(LogEntry{Event: name})
	}
	got := rb.GetAll()
	if len(got) != 3 || got[0].Event != "b" || got[2].Event != "d" {
		t.Fatalf("unexpected ring contents %+v", got)
	}
	tail := rb.GetTail(2)
	if len(tail) != 2 || tail[0].Event != "c" || tail[1].Event != "d" {
		t.Fatalf("unexpected tail %+v", tail)
	}
	if rb.GetCount() != 3 {
		t.Fatalf("count = %d", rb.GetCount())
	}
}

func TestEncodeNDJSONLimitedKeepsNewest(t *testing.T) {
	t.Parallel()

	events := []LogEntry{{Event: "first"}, {Event: "second"}, {Event: "third"}}
	one, err := json.Marshal(events[2])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	data, n := encodeNDJSONLimited(events, len(one)+1)
	if n != 1 || !strings.Contains(string(data), `"third"`) {
		t.Fatalf("expected only the newest event, got %d: %s", n, data)
	}

	data, n = encodeNDJSONLimited(events, 0)
	if n != 3 || strings.Count(string(data), "\n") != 3 {
		t.Fatalf("expected all events, got %d: %s", n, data)
	}
}

func TestParseLogfmt(t *testing.T) {
	t.Parallel()

	entry := parseLogfmt(`time=2026-01-02T03:04:05Z event=session.complete uri="file:///a b.mdc" line=4 items=7 error="bad \"thing\""`)
	if entry.Event != "session.complete" || entry.Time != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.URI != "file:///a b.mdc" {
		t.Fatalf("uri = %q", entry.URI)
	}
	if entry.Line == nil || *entry.Line != 4 || entry.Items == nil || *entry.Items != 7 {
		t.Fatalf("numeric fields not parsed: %+v", entry)
	}
	if entry.Error != `bad "thing"` {
		t.Fatalf("error = %q", entry.Error)
	}
}

func TestHandleWebSocketReplaysAndStreams(t *testing.T) {
	t.Parallel()

	hub := NewHub(16, 0, 0)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })
	go hub.Run(done)

	hub.BroadcastLog("event=catalog.refresh components=3")

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, bulk, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read bulk: %v", err)
	}
	if !strings.Contains(string(bulk), `"mdc.hello"`) || !strings.Contains(string(bulk), `"catalog.refresh"`) {
		t.Fatalf("bulk replay missing events: %s", bulk)
	}

	if err := conn.WriteMessage(gws.TextMessage, []byte(`{"type":"fold.request"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg ClientMessage
	select {
	case msg = <-hub.Incoming():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
	if msg.ClientID == "" || string(msg.Payload) != `{"type":"fold.request"}` {
		t.Fatalf("unexpected inbound message %+v", msg)
	}

	if err := hub.SendJSONToClient(msg.ClientID, map[string]string{"type": "ack"}); err != nil {
		t.Fatalf("SendJSONToClient: %v", err)
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if string(data) == `{"type":"ack"}` {
			break
		}
	}
}
