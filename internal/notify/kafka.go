package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types carried in the Kafka envelope.
const (
	EventTrade    = "trade"
	EventNewToken = "new_token"
)

// KafkaConfig holds Kafka connection configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes JSON events keyed by token mint, so every event for a
// token lands on the same partition in order.
type Kafka struct {
	writer messageWriter
	now    func() time.Time
}

var _ Notifier = (*Kafka)(nil)

// NewKafka creates a producer for cfg.
func NewKafka(cfg KafkaConfig) *Kafka {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Kafka{writer: writer, now: time.Now}
}

// envelope is the wire format of every message.
type envelope struct {
	Type      string          `json:"type"`
	Mint      string          `json:"mint"`
	EmittedAt int64           `json:"emittedAt"`
	Payload   json.RawMessage `json:"payload"`
}

type tradePayload struct {
	TxID         string  `json:"txId"`
	Action       string  `json:"action"`
	InputMint    string  `json:"inputMint"`
	OutputMint   string  `json:"outputMint"`
	InputAmount  uint64  `json:"inputAmount,string"`
	OutputAmount uint64  `json:"outputAmount,string"`
	Price        float64 `json:"price"`
	Timestamp    int64   `json:"timestamp"`
	Source       string  `json:"source"`
	InputSymbol  string  `json:"inputSymbol,omitempty"`
	OutputSymbol string  `json:"outputSymbol,omitempty"`
}

type newTokenPayload struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Pool      string `json:"pool,omitempty"`
	FirstSeen int64  `json:"firstSeen"`
	Resolved  bool   `json:"resolved"`
}

// NotifyTrade publishes a trade event.
func (k *Kafka) NotifyTrade(ctx context.Context, e TradeEvent) error {
	return k.publish(ctx, EventTrade, e.Mint(), tradePayload{
		TxID:         e.Trade.TxID,
		Action:       e.Action(),
		InputMint:    e.Trade.InputMint,
		OutputMint:   e.Trade.OutputMint,
		InputAmount:  e.Trade.InputAmount,
		OutputAmount: e.Trade.OutputAmount,
		Price:        e.Trade.Price,
		Timestamp:    e.Trade.Timestamp,
		Source:       e.Trade.Source.String(),
		InputSymbol:  e.InputSymbol,
		OutputSymbol: e.OutputSymbol,
	})
}

// NotifyNewToken publishes a new-token event.
func (k *Kafka) NotifyNewToken(ctx context.Context, e NewTokenEvent) error {
	return k.publish(ctx, EventNewToken, e.Mint, newTokenPayload{
		Symbol:    e.Symbol,
		Name:      e.Name,
		Pool:      e.Pool,
		FirstSeen: e.FirstSeen,
		Resolved:  e.Resolved,
	})
}

func (k *Kafka) publish(ctx context.Context, eventType, mint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	now := k.now()
	data, err := json.Marshal(envelope{
		Type:      eventType,
		Mint:      mint,
		EmittedAt: now.UnixMilli(),
		Payload:   body,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(mint),
		Value: data,
		Time:  now,
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
