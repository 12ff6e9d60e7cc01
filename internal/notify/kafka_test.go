package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestKafka(w messageWriter) *Kafka {
	fixed := time.UnixMilli(1700000000123)
	return &Kafka{writer: w, now: func() time.Time { return fixed }}
}

func TestKafka_NotifyTradeKeyedByMint(t *testing.T) {
	w := &fakeWriter{}
	k := newTestKafka(w)

	require.NoError(t, k.NotifyTrade(context.Background(), buyEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, memeMint, string(msg.Key))

	var env struct {
		Type      string       `json:"type"`
		Mint      string       `json:"mint"`
		EmittedAt int64        `json:"emittedAt"`
		Payload   tradePayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventTrade, env.Type)
	assert.Equal(t, memeMint, env.Mint)
	assert.Equal(t, int64(1700000000123), env.EmittedAt)
	assert.Equal(t, "BUY", env.Payload.Action)
	assert.Equal(t, uint64(10_000_000), env.Payload.InputAmount)
	assert.Equal(t, "AUTO_BUY", env.Payload.Source)
}

func TestKafka_NotifyNewToken(t *testing.T) {
	w := &fakeWriter{}
	k := newTestKafka(w)

	err := k.NotifyNewToken(context.Background(), NewTokenEvent{Mint: memeMint, Symbol: "MEME", Name: "Meme", Pool: "PoolAddr", FirstSeen: 42, Resolved: true})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	var env struct {
		Type    string          `json:"type"`
		Payload newTokenPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, EventNewToken, env.Type)
	assert.Equal(t, "MEME", env.Payload.Symbol)
	assert.Equal(t, int64(42), env.Payload.FirstSeen)
	assert.True(t, env.Payload.Resolved)
}

func TestKafka_WriteError(t *testing.T) {
	k := newTestKafka(&fakeWriter{err: errors.New("broker down")})
	err := k.NotifyTrade(context.Background(), buyEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
