// Package notify delivers trade and new-token events to operators.
// Delivery is best-effort: callers log errors and carry on.
package notify

import (
	"context"
	"errors"

	"solana-swap-bot/internal/domain"
)

// TradeEvent describes a confirmed swap.
type TradeEvent struct {
	Trade        domain.Trade
	InputSymbol  string
	OutputSymbol string
}

// Action is BUY when SOL was spent, SELL when SOL was received.
func (e TradeEvent) Action() string {
	if e.Trade.OutputMint == domain.WrappedSOLMint {
		return "SELL"
	}
	return "BUY"
}

// Mint is the non-SOL leg, used as the partition key and display token.
func (e TradeEvent) Mint() string {
	if e.Trade.InputMint == domain.WrappedSOLMint {
		return e.Trade.OutputMint
	}
	return e.Trade.InputMint
}

// NewTokenEvent describes a token first seen on a newly detected pool.
type NewTokenEvent struct {
	Mint      string
	Symbol    string
	Name      string
	Pool      string
	FirstSeen int64 // Unix ms
	Resolved  bool  // false when Symbol/Name are synthetic
}

// Notifier publishes events.
type Notifier interface {
	NotifyTrade(ctx context.Context, e TradeEvent) error
	NotifyNewToken(ctx context.Context, e NewTokenEvent) error
}

// Nop discards every event.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) NotifyTrade(context.Context, TradeEvent) error       { return nil }
func (Nop) NotifyNewToken(context.Context, NewTokenEvent) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) NotifyTrade(ctx context.Context, e TradeEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyTrade(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyNewToken(ctx context.Context, e NewTokenEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyNewToken(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
