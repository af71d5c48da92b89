package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"live-clientv1/internal/model"
)

// newWSServer starts a test WebSocket endpoint; handler runs per connection.
func newWSServer(t *testing.T, handler func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestChannel(t *testing.T, baseURL string, running bool) *Channel {
	t.Helper()
	ch, err := New(Config{
		BaseURL:     baseURL,
		SessionID:   "sess-1",
		Token:       "tok",
		Heartbeat:   50 * time.Millisecond,
		BackoffBase: 10 * time.Millisecond,
		BackoffCap:  100 * time.Millisecond,
		MaxAttempts: 3,
		Running:     func() bool { return running },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(ch.Disconnect)
	return ch
}

func waitEvent(t *testing.T, ch *Channel, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestConnect_NoToken_FailsFast(t *testing.T) {
	ch, err := New(Config{
		// Unroutable on purpose: a dial attempt would fail differently
		BaseURL:   "ws://127.0.0.1:1",
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ch.Connect(); !errors.Is(err, ErrAuthUnavailable) {
		t.Fatalf("expected ErrAuthUnavailable, got %v", err)
	}
	if ch.State() != StateDisconnected {
		t.Errorf("state=%s after blocked connect, want disconnected", ch.State())
	}
}

func TestConnect_OpensAndSendsToken(t *testing.T) {
	gotToken := make(chan string, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken <- r.URL.Query().Get("token")
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Hold the connection open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ch := newTestChannel(t, "ws"+strings.TrimPrefix(srv.URL, "http"), true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)
	if ch.State() != StateOpen {
		t.Errorf("state=%s, want open", ch.State())
	}
	select {
	case tok := <-gotToken:
		if tok != "tok" {
			t.Errorf("server saw token %q, want %q", tok, "tok")
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestFrameRouting_OrderAndDrops(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bar","payload":{"time":1000}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery","payload":{}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","payload":{"timestamp":2000}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch := newTestChannel(t, wsURL, true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)

	first := waitEvent(t, ch, KindFrame)
	if first.Frame.Type != model.FrameBar {
		t.Errorf("first frame type=%s, want bar", first.Frame.Type)
	}
	// Malformed and unrecognized frames never surface; the next frame is the trade
	second := waitEvent(t, ch, KindFrame)
	if second.Frame.Type != model.FrameTrade {
		t.Errorf("second frame type=%s, want trade", second.Frame.Type)
	}
}

func TestHeartbeat_PingSentAndPongRecorded(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f model.Frame
			if err := json.Unmarshal(data, &f); err == nil && f.Type == model.FramePing {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
			}
		}
	})

	ch := newTestChannel(t, wsURL, true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)

	deadline := time.Now().Add(2 * time.Second)
	for ch.LastPong().IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("no pong recorded; heartbeat likely never sent")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClose_AuthRejection_NoReconnect(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseAuthRejected, "bad token"),
			time.Now().Add(time.Second))
		conn.Close()
	})

	ch := newTestChannel(t, wsURL, true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	ev := waitEvent(t, ch, KindClosed)
	if !errors.Is(ev.Err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", ev.Err)
	}
	if ch.ReconnectPending() {
		t.Error("reconnect timer scheduled after auth rejection")
	}
	if ch.State() != StateDisconnected {
		t.Errorf("state=%s, want disconnected", ch.State())
	}
}

func TestClose_Ordinary_SchedulesBackoffReconnect(t *testing.T) {
	var accepts int
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		accepts++
		if accepts == 1 {
			// Kick the first connection with an ordinary close
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"),
				time.Now().Add(time.Second))
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch := newTestChannel(t, wsURL, true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)
	waitEvent(t, ch, KindDisconnected)

	ch.mu.Lock()
	attempt := ch.attempt
	ch.mu.Unlock()
	if attempt != 1 {
		t.Errorf("attempt=%d after first drop, want 1", attempt)
	}

	// Backoff elapses and the second accept succeeds
	waitEvent(t, ch, KindConnected)
	ch.mu.Lock()
	attempt = ch.attempt
	ch.mu.Unlock()
	if attempt != 0 {
		t.Errorf("attempt=%d after successful reconnect, want 0 (reset)", attempt)
	}
}

func TestClose_NotRunning_NoReconnect(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})

	ch := newTestChannel(t, wsURL, false)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)
	waitEvent(t, ch, KindDisconnected)
	if ch.ReconnectPending() {
		t.Error("reconnect scheduled although session is not running")
	}
}

func TestRetriesExhausted_TerminalFailure(t *testing.T) {
	srv, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch := newTestChannel(t, wsURL, true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)

	// Take the server away so every redial fails until the limit is hit
	srv.CloseClientConnections()
	srv.Close()

	ev := waitEvent(t, ch, KindClosed)
	if !errors.Is(ev.Err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", ev.Err)
	}
}

func TestBackoffDelay(t *testing.T) {
	ch := newTestChannel(t, "ws://127.0.0.1:1", true)
	if got := ch.backoffDelay(1); got != 20*time.Millisecond {
		t.Errorf("delay(1)=%v, want base*2^1=20ms", got)
	}
	if got := ch.backoffDelay(2); got != 40*time.Millisecond {
		t.Errorf("delay(2)=%v, want 40ms", got)
	}
	if got := ch.backoffDelay(10); got != 100*time.Millisecond {
		t.Errorf("delay(10)=%v, want cap 100ms", got)
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch := newTestChannel(t, wsURL, true)
	if err := ch.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, ch, KindConnected)

	ch.Disconnect()
	ch.Disconnect()
	ch.Disconnect()
	if ch.State() != StateDisconnected {
		t.Errorf("state=%s after disconnect, want disconnected", ch.State())
	}
	if ch.ReconnectPending() {
		t.Error("reconnect pending after explicit disconnect")
	}
}
