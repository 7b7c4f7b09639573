package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewServerLeavesBodyTimeoutsUnset(t *testing.T) {
	t.Parallel()
	srv := NewServer(":0", http.NotFoundHandler())
	if srv.ReadTimeout != 0 || srv.WriteTimeout != 0 {
		t.Fatalf("expected no read/write timeouts, got %s/%s", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.ReadHeaderTimeout != readHeaderTimeout || srv.MaxHeaderBytes != maxHeaderBytes {
		t.Fatalf("unexpected server settings %+v", srv)
	}
}

type recorded struct {
	method string
	path   string
	status int
}

func TestWithRequestLogRecordsStatus(t *testing.T) {
	t.Parallel()
	got := make(chan recorded, 4)
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("/teapot", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	srv := httptest.NewServer(WithRequestLog(mux, func(method, path string, status int, took time.Duration) {
		got <- recorded{method, path, status}
	}))
	defer srv.Close()

	for _, path := range []string{"/ok", "/teapot", "/missing"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
	}

	want := []recorded{
		{http.MethodGet, "/ok", http.StatusOK},
		{http.MethodGet, "/teapot", http.StatusTeapot},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}
	seen := make(map[recorded]bool, len(want))
	for range want {
		seen[<-got] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Fatalf("missing record %+v in %v", w, seen)
		}
	}
}

func TestWithRequestLogPassesUpgrades(t *testing.T) {
	t.Parallel()
	got := make(chan int, 1)
	upgrader := websocket.Upgrader{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hi"))
		_ = conn.Close()
	})
	srv := httptest.NewServer(WithRequestLog(handler, func(_, _ string, status int, _ time.Duration) {
		got <- status
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, msg, err := conn.ReadMessage(); err != nil || string(msg) != "hi" {
		t.Fatalf("read = %q, %v", msg, err)
	}
	if status := <-got; status != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d, want 101", status)
	}
}

func TestWithRequestLogNilRecorder(t *testing.T) {
	t.Parallel()
	h := http.NotFoundHandler()
	if WithRequestLog(h, nil) == nil {
		t.Fatal("expected handler")
	}
}
