package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.WriteMessage(mt, msg)
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + s.URL[len("http"):]
}

func TestWSConnectAndSubscribeOnce(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	subscribeCalls := 0
	var states []bool
	ws := NewWS(wsURL(srv), func() error { subscribeCalls++; return nil }, func([]byte) {}, func(up bool) { states = append(states, up) }, zerolog.Nop())

	ws.Tick() // countdown 1 -> 0, connects
	time.Sleep(20 * time.Millisecond)
	if !ws.Connected() {
		t.Fatalf("expected connected after first tick")
	}
	ws.Tick() // connected already; subscribe already fired inside Tick when countdown hit 0
	if subscribeCalls != 1 {
		t.Fatalf("expected subscribe exactly once, got %d", subscribeCalls)
	}
	if len(states) == 0 || !states[0] {
		t.Fatalf("expected a connected=true state transition, got %v", states)
	}
}

func TestWSBackoffAfterFailure(t *testing.T) {
	ws := NewWS("ws://127.0.0.1:1/nope", func() error { return nil }, func([]byte) {}, func(bool) {}, zerolog.Nop())
	ws.Tick() // countdown hits 0, connect fails
	if ws.Connected() {
		t.Fatalf("expected disconnected after failed dial")
	}
	ws.mu.Lock()
	cd := ws.countdown
	ws.mu.Unlock()
	if cd != backoffCountdown {
		t.Fatalf("expected backoff countdown reset to %d, got %d", backoffCountdown, cd)
	}
}

func TestWSDisconnectArmsBackoff(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	ws := NewWS(wsURL(srv), func() error { return nil }, func([]byte) {}, func(bool) {}, zerolog.Nop())
	ws.Tick()
	time.Sleep(20 * time.Millisecond)
	if !ws.Connected() {
		t.Fatalf("expected connected")
	}
	ws.Disconnect()
	if ws.Connected() {
		t.Fatalf("expected disconnected after Disconnect")
	}
	ws.mu.Lock()
	cd := ws.countdown
	ws.mu.Unlock()
	if cd != backoffCountdown {
		t.Fatalf("expected countdown re-armed to %d, got %d", backoffCountdown, cd)
	}
}
