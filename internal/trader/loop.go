package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/notify"
	"solana-swap-bot/internal/observability"
	"solana-swap-bot/internal/risk"
)

// errRiskDenied marks a cycle skipped by the risk gate.
var errRiskDenied = errors.New("risk gate denied trade")

// RunSwapLoop runs the steady-state cycle until ctx is done: quote the
// fixed pair, swap unconditionally, persist, record, notify, then sleep
// TradeInterval. A failed cycle sleeps RetryInterval instead. It returns
// immediately when swaps are disabled.
func (o *Orchestrator) RunSwapLoop(ctx context.Context) error {
	if !o.opts.ExecuteSwaps {
		o.logger.Printf("swap loop disabled")
		return nil
	}

	for {
		cycle := uuid.NewString()
		wait := o.opts.TradeInterval
		if err := o.runCycle(ctx, cycle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, errRiskDenied) {
				wait = o.opts.RetryInterval
			}
			o.logger.Printf("swap cycle failed: cycle=%s pair=%s->%s amount=%d err=%v retry_in=%s",
				cycle, o.opts.InputToken.Mint(), o.opts.InputToken.Other().Mint(), o.opts.Amount, err, wait)
		}
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) runCycle(ctx context.Context, cycle string) error {
	const source = domain.TradeSourceSteadyState
	in, out := o.opts.InputToken, o.opts.InputToken.Other()

	quote, err := o.Quote(ctx, in.Mint(), out.Mint(), o.opts.Amount, o.opts.QuoteSlippageBps)
	if err != nil {
		observability.RecordSwapFailure(source.String(), "quote")
		return fmt.Errorf("quote: %w", err)
	}

	asset := nonSOLLeg(quote)
	solAmount := solValue(quote)

	var reservation *risk.Reservation
	if o.opts.SteadyStateRiskCheck {
		// The steady-state pair is assumed to clear the liquidity floor.
		d, res := o.risk.Reserve(asset, solAmount, o.risk.Params().MinLiquidity)
		if !d.Allowed {
			observability.RecordRiskDenial(d.Code)
			o.logger.Printf("swap cycle skipped: cycle=%s asset=%s amount_sol=%s reason=%q", cycle, asset, solAmount, d.Reason)
			return errRiskDenied
		}
		reservation = res
		defer reservation.Release()
	}

	start := time.Now()
	txID, err := o.ExecuteSwap(ctx, quote)
	if err != nil {
		observability.RecordSwapFailure(source.String(), "swap")
		return fmt.Errorf("swap: %w", err)
	}
	observability.RecordSwap(source.String(), time.Since(start))

	trade := o.newTrade(quote, txID, source)
	persistErr := o.persistTrade(ctx, trade)
	if reservation != nil {
		reservation.Commit()
	} else {
		o.risk.RecordTrade(asset, solAmount)
	}
	o.notifyTrade(ctx, trade, in.String(), out.String())

	o.logger.Printf("swap executed: cycle=%s tx=%s in=%s amount_in=%d out=%s amount_out=%d price=%g",
		cycle, txID, trade.InputMint, trade.InputAmount, trade.OutputMint, trade.OutputAmount, trade.Price)
	return persistErr
}

func (o *Orchestrator) newTrade(q *domain.Quote, txID string, source domain.TradeSource) *domain.Trade {
	return &domain.Trade{
		TxID:         txID,
		InputMint:    q.InputMint,
		OutputMint:   q.OutputMint,
		InputAmount:  q.InAmount,
		OutputAmount: q.OutAmount,
		Price:        domain.TradePrice(q.InAmount, q.OutAmount),
		Timestamp:    o.opts.Now().UnixMilli(),
		Source:       source,
	}
}

// persistTrade saves trade; the swap has already landed, so failures are
// logged with the full trade and returned for the caller's retry cadence.
func (o *Orchestrator) persistTrade(ctx context.Context, t *domain.Trade) error {
	err := o.sink.SaveTrade(ctx, t)
	observability.RecordTradePersisted(err)
	if err != nil {
		o.logger.Printf("persist trade failed: tx=%s in=%s out=%s amount_in=%d amount_out=%d err=%v",
			t.TxID, t.InputMint, t.OutputMint, t.InputAmount, t.OutputAmount, err)
		return fmt.Errorf("persist trade %s: %w", t.TxID, err)
	}
	return nil
}

func (o *Orchestrator) notifyTrade(ctx context.Context, t *domain.Trade, inSymbol, outSymbol string) {
	err := o.notifier.NotifyTrade(ctx, notify.TradeEvent{Trade: *t, InputSymbol: inSymbol, OutputSymbol: outSymbol})
	observability.RecordNotification("trade", err)
	if err != nil {
		o.logger.Printf("notify trade failed: tx=%s err=%v", t.TxID, err)
	}
}

// nonSOLLeg is the asset a risk check is keyed by.
func nonSOLLeg(q *domain.Quote) string {
	if q.InputMint == domain.WrappedSOLMint {
		return q.OutputMint
	}
	return q.InputMint
}

// solValue is the SOL side of the quote, zero when neither leg is SOL.
func solValue(q *domain.Quote) decimal.Decimal {
	switch domain.WrappedSOLMint {
	case q.InputMint:
		return domain.LamportsToSOL(q.InAmount)
	case q.OutputMint:
		return domain.LamportsToSOL(q.OutAmount)
	default:
		return decimal.Zero
	}
}
