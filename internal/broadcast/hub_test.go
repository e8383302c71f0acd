package broadcast

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T, origins ...string) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(origins, slog.New(slog.DiscardHandler))
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.Count(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestBroadcastWithNoClients(t *testing.T) {
	hub := NewHub(nil, slog.New(slog.DiscardHandler))

	hub.Broadcast(Update("nobody listening", true))

	if hub.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", hub.Count())
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, srv := newTestHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitForCount(t, hub, 2)

	hub.Broadcast(Update("hello", false))
	hub.Broadcast(Update("hello world", true))

	for _, conn := range []*websocket.Conn{a, b} {
		first := readMessage(t, conn)
		if first.Type != TypeTranscriptionUpdate || first.Data != "hello" || first.IsFinal {
			t.Errorf("first = %+v", first)
		}
		second := readMessage(t, conn)
		if second.Data != "hello world" || !second.IsFinal {
			t.Errorf("second = %+v", second)
		}
	}
}

func TestBroadcastSkipsClosedClient(t *testing.T) {
	hub, srv := newTestHub(t)
	conns := []*websocket.Conn{dial(t, srv), dial(t, srv), dial(t, srv)}
	waitForCount(t, hub, 3)

	conns[1].Close()

	hub.Broadcast(Update("still here", true))

	for _, i := range []int{0, 2} {
		msg := readMessage(t, conns[i])
		if msg.Data != "still here" {
			t.Errorf("client %d got %+v", i, msg)
		}
	}
	waitForCount(t, hub, 2)
}

func TestFailureMessage(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForCount(t, hub, 1)

	hub.Broadcast(Failure(errors.New("stream dropped")))

	msg := readMessage(t, conn)
	if msg.Type != TypeTranscriptionError || msg.Data != "stream dropped" {
		t.Fatalf("got %+v", msg)
	}
}

func TestClientMessagesAreIgnored(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)
	waitForCount(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"server"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	hub.Broadcast(Update("after client message", true))

	if msg := readMessage(t, conn); msg.Data != "after client message" {
		t.Fatalf("got %+v", msg)
	}
	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}
}

func TestOriginCheck(t *testing.T) {
	_, srv := newTestHub(t, "http://localhost:3000")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	header := http.Header{"Origin": {"http://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected rejected origin")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp = %v, want 403", resp)
	}

	header = http.Header{"Origin": {"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}
