package trader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"solana-swap-bot/internal/breaker"
	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/notify"
	"solana-swap-bot/internal/observability"
	"solana-swap-bot/internal/solana"
)

// RecentMarket is a pool seen by the market path.
type RecentMarket struct {
	Pool     domain.Pool `json:"pool"`
	Mint     string      `json:"mint"`
	Symbol   string      `json:"symbol"`
	Name     string      `json:"name"`
	Resolved bool        `json:"resolved"`
	SeenAt   time.Time   `json:"seenAt"`
}

// handleNewMarket runs on the poller goroutine for each new pool. The
// auto-buy runs on its own tracked goroutine so the next tick is not delayed.
func (o *Orchestrator) handleNewMarket(ctx context.Context, pool domain.Pool) {
	mint, referenceVault, ok := pool.NewToken()
	if !ok {
		o.logger.Printf("new pool skipped, no SOL leg: pool=%s base=%s quote=%s", pool.Address, pool.BaseMint, pool.QuoteMint)
		return
	}

	meta, resolved := o.metadata.ResolveOrSynthetic(ctx, mint)
	now := o.opts.Now()

	token := &domain.TokenInfo{
		Address:   mint,
		Symbol:    meta.Symbol,
		Name:      meta.Name,
		FirstSeen: now.UnixMilli(),
	}
	if err := o.sink.SaveToken(ctx, token); err != nil {
		o.logger.Printf("save token failed: mint=%s err=%v", mint, err)
	}

	err := o.notifier.NotifyNewToken(ctx, notify.NewTokenEvent{
		Mint:      mint,
		Symbol:    meta.Symbol,
		Name:      meta.Name,
		Pool:      pool.Address,
		FirstSeen: token.FirstSeen,
		Resolved:  resolved,
	})
	observability.RecordNotification("new_token", err)
	if err != nil {
		o.logger.Printf("notify new token failed: mint=%s err=%v", mint, err)
	}

	o.rememberMarket(RecentMarket{
		Pool:     pool,
		Mint:     mint,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Resolved: resolved,
		SeenAt:   now,
	})
	o.logger.Printf("new token: mint=%s symbol=%s pool=%s resolved=%t", mint, meta.Symbol, pool.Address, resolved)

	if o.social != nil {
		passed, err := o.social.Verify(ctx, mint)
		if err != nil || !passed {
			o.logger.Printf("new token failed social screen: mint=%s passed=%t err=%v", mint, passed, err)
			return
		}
	}

	if !o.opts.AutoBuyNewTokens || ctx.Err() != nil {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.autoBuy(ctx, mint, referenceVault, meta.Symbol); err != nil {
			o.logger.Printf("auto-buy failed: mint=%s amount=%d err=%v", mint, o.opts.AutoBuyAmount, err)
		}
	}()
}

// autoBuy spends AutoBuyAmount lamports on mint after the risk gate
// approves it against the pool's SOL-side liquidity. The amount stays
// reserved in the gate until the swap lands or fails.
func (o *Orchestrator) autoBuy(ctx context.Context, mint, referenceVault, symbol string) error {
	const source = domain.TradeSourceAutoBuy

	liquidity, err := o.poolLiquidity(ctx, referenceVault)
	if err != nil {
		observability.RecordSwapFailure(source.String(), "liquidity")
		return fmt.Errorf("read liquidity: %w", err)
	}

	amount := domain.LamportsToSOL(o.opts.AutoBuyAmount)
	d, reservation := o.risk.Reserve(mint, amount, liquidity)
	if !d.Allowed {
		observability.RecordRiskDenial(d.Code)
		o.logger.Printf("auto-buy denied: mint=%s amount_sol=%s liquidity_sol=%s reason=%q", mint, amount, liquidity, d.Reason)
		return nil
	}
	defer reservation.Release()

	quote, err := o.Quote(ctx, domain.WrappedSOLMint, mint, o.opts.AutoBuyAmount, o.opts.AutoBuySlippageBps)
	if err != nil {
		observability.RecordSwapFailure(source.String(), "quote")
		return fmt.Errorf("quote: %w", err)
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
	reservation.Commit()
	o.notifyTrade(ctx, trade, domain.SwapTokenSOL.String(), symbol)

	o.logger.Printf("auto-buy executed: mint=%s tx=%s amount_in=%d amount_out=%d", mint, txID, trade.InputAmount, trade.OutputAmount)
	return persistErr
}

// poolLiquidity reads the wrapped-SOL vault balance in SOL.
func (o *Orchestrator) poolLiquidity(ctx context.Context, vault string) (decimal.Decimal, error) {
	bal, err := breaker.Execute(ctx, o.rpcBreaker, func(ctx context.Context) (*solana.TokenAmount, error) {
		return o.rpc.GetTokenAccountBalance(ctx, vault)
	})
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := strconv.ParseUint(bal.Amount, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse vault balance %q: %w", bal.Amount, err)
	}
	return decimal.NewFromUint64(raw).Shift(-int32(bal.Decimals)), nil
}

func (o *Orchestrator) rememberMarket(m RecentMarket) {
	o.marketsMu.Lock()
	defer o.marketsMu.Unlock()
	o.recentMarkets = append(o.recentMarkets, m)
	if over := len(o.recentMarkets) - o.opts.RecentMarketsLimit; over > 0 {
		o.recentMarkets = append([]RecentMarket(nil), o.recentMarkets[over:]...)
	}
}

// RecentMarkets returns the markets seen since the last clear, newest first.
func (o *Orchestrator) RecentMarkets() []RecentMarket {
	o.marketsMu.Lock()
	defer o.marketsMu.Unlock()
	out := make([]RecentMarket, len(o.recentMarkets))
	for i, m := range o.recentMarkets {
		out[len(out)-1-i] = m
	}
	return out
}

// ClearRecentMarkets empties the recent-markets list.
func (o *Orchestrator) ClearRecentMarkets() {
	o.marketsMu.Lock()
	defer o.marketsMu.Unlock()
	o.recentMarkets = nil
}
