package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	ReconnectDelay    time.Duration // initial delay before reconnecting
	MaxReconnectDelay time.Duration // cap for the doubling reconnect delay
	PingInterval      time.Duration
	ReadTimeout       time.Duration // extended on every pong or message
	WriteTimeout      time.Duration
	Commitment        string
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Commitment:        CommitmentConfirmed,
	}
}

// WSLogStream implements LogSubscriber over a single gorilla/websocket
// connection, resubscribing after every reconnect.
type WSLogStream struct {
	endpoint string
	config   WSClientConfig
	logger   *log.Logger
	dialer   websocket.Dialer
}

var _ LogSubscriber = (*WSLogStream)(nil)

// NewWSLogStream creates a stream for endpoint. A nil config uses defaults.
func NewWSLogStream(endpoint string, config *WSClientConfig, logger *log.Logger) *WSLogStream {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WSLogStream{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Run blocks until ctx is done.
func (s *WSLogStream) Run(ctx context.Context, filter LogsFilter, handler func(LogNotification)) error {
	delay := s.config.ReconnectDelay
	for {
		connected, err := s.session(ctx, filter, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = s.config.ReconnectDelay
		}
		s.logger.Printf("log stream disconnected: %v; reconnecting in %s", err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, s.config.MaxReconnectDelay)
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Result struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		} `json:"result"`
		Subscription int64 `json:"subscription"`
	} `json:"params"`
}

// session runs one connection. connected reports whether the subscription
// was confirmed before the connection ended.
func (s *WSLogStream) session(ctx context.Context, filter LogsFilter, handler func(LogNotification)) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	var mentions interface{} = "all"
	if len(filter.Mentions) > 0 {
		mentions = map[string]interface{}{"mentions": filter.Mentions}
	}
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params:  []interface{}{mentions, map[string]string{"commitment": s.config.Commitment}},
	}
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return false, fmt.Errorf("write subscribe: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})
	go s.pingLoop(sessionCtx, conn)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return connected, fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		switch {
		case msg.ID != nil && msg.Error != nil:
			return connected, fmt.Errorf("subscribe: %w", msg.Error)
		case msg.ID != nil:
			connected = true
		case msg.Method == "logsNotification" && msg.Params != nil:
			v := msg.Params.Result.Value
			handler(LogNotification{
				Signature: v.Signature,
				Slot:      msg.Params.Result.Context.Slot,
				Logs:      v.Logs,
				Err:       v.Err,
			})
		}
	}
}

// pingLoop sends control pings; the read deadline catches a dead peer.
func (s *WSLogStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
