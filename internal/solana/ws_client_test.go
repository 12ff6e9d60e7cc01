package solana

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// logsServer confirms the subscription and pushes one notification per connection.
func logsServer(t *testing.T, connections *atomic.Int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		n := connections.Add(1)

		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 7})
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "logsNotification",
			"params": map[string]interface{}{
				"subscription": 7,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 100 + n},
					"value": map[string]interface{}{
						"signature": "sig",
						"err":       nil,
						"logs":      []string{"Program log: initialize2: InitializeInstruction2"},
					},
				},
			},
		})
		// First connection drops right away to exercise reconnect.
		if n > 1 {
			time.Sleep(time.Second)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWSLogStream_DeliversAndReconnects(t *testing.T) {
	var connections atomic.Int32
	server := logsServer(t, &connections)

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	stream := NewWSLogStream(wsURL(server), &cfg, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var received []LogNotification
	err := stream.Run(ctx, LogsFilter{Mentions: []string{"prog"}}, func(n LogNotification) {
		received = append(received, n)
		if len(received) == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(received))
	}
	if received[0].Signature != "sig" || len(received[0].Logs) != 1 {
		t.Errorf("unexpected notification %+v", received[0])
	}
	if connections.Load() < 2 {
		t.Errorf("expected a reconnect, got %d connections", connections.Load())
	}
}
