package trade

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *WSHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		got := len(h.clients)
		h.mu.RUnlock()
		if got == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", n)
}

func TestWSHub_BroadcastReachesClient(t *testing.T) {
	h := NewWSHub()
	go h.Run()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Broadcast(WSMessage{Type: NotifySuccess, Event: "order_executed", Message: "buy 1 BTC completed"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), "order_executed") {
		t.Errorf("unexpected payload: %s", data)
	}
}

func TestWSHub_BroadcastSurvivesDeadClient(t *testing.T) {
	h := NewWSHub()
	go h.Run()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	live := dialHub(t, srv)
	defer live.Close()
	gone := dialHub(t, srv)
	waitForClients(t, h, 2)

	gone.Close()

	// Broadcasts keep flowing while the closed connection is pruned.
	for i := 0; i < 5; i++ {
		h.Broadcast(WSMessage{Type: NotifyInfo, Event: "price_update", Message: "tick"})
	}

	live.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := live.ReadMessage(); err != nil {
		t.Fatalf("live client stopped receiving: %v", err)
	}
	waitForClients(t, h, 1)
}
