// Package trader composes the rate limiter, circuit breakers, risk gate and
// market poller into the swap bot: a steady-state quote/swap loop and a
// new-market auto-buy path.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-swap-bot/internal/breaker"
	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/jupiter"
	"solana-swap-bot/internal/metadata"
	"solana-swap-bot/internal/notify"
	"solana-swap-bot/internal/observability"
	"solana-swap-bot/internal/ratelimit"
	"solana-swap-bot/internal/risk"
	"solana-swap-bot/internal/solana"
	"solana-swap-bot/internal/storage"
	"solana-swap-bot/internal/storage/memory"
)

// Orchestrator is the trading bot core. Construct with New; a nil or
// failed orchestrator is never ready.
type Orchestrator struct {
	opts   Options
	logger *log.Logger
	wallet *solana.Keypair

	rpc        solana.RPCClient
	aggregator Aggregator
	sink       storage.Sink
	notifier   notify.Notifier
	metadata   MetadataResolver
	social     SocialVerifier
	poller     MarketWatcher

	limiter        *ratelimit.Limiter
	jupiterBreaker *breaker.Breaker
	rpcBreaker     *breaker.Breaker
	risk           *risk.Gate

	ready     bool
	startedAt time.Time

	mu          sync.Mutex // guards lifecycle fields
	running     bool
	loopRunning bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup // loop, daily reset, auto-buys

	marketsMu     sync.Mutex
	recentMarkets []RecentMarket
}

// New validates the signing key and probes RPC health. On failure it
// returns a *ConfigError and a nil orchestrator; nothing is started.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	opts.applyDefaults()

	wallet, err := solana.NewKeypair(opts.SecretKey)
	if err != nil {
		return nil, &ConfigError{Field: "secret key", Err: err}
	}
	if opts.RPC == nil {
		return nil, &ConfigError{Field: "rpc client", Err: errors.New("required")}
	}
	if opts.Aggregator == nil {
		return nil, &ConfigError{Field: "aggregator", Err: errors.New("required")}
	}
	if opts.ExecuteSwaps && opts.Amount == 0 {
		return nil, &ConfigError{Field: "amount", Err: errors.New("must be > 0 when swaps are enabled")}
	}
	if opts.DetectNewMarkets && opts.Poller == nil {
		return nil, &ConfigError{Field: "poller", Err: errors.New("required when market detection is enabled")}
	}
	if err := opts.RPC.GetHealth(ctx); err != nil {
		return nil, &ConfigError{Field: "rpc endpoint", Err: err}
	}

	o := &Orchestrator{
		opts:           opts,
		logger:         opts.Logger,
		wallet:         wallet,
		rpc:            opts.RPC,
		aggregator:     opts.Aggregator,
		sink:           opts.Sink,
		notifier:       opts.Notifier,
		metadata:       opts.Metadata,
		social:         opts.Social,
		poller:         opts.Poller,
		limiter:        opts.Limiter,
		jupiterBreaker: opts.JupiterBreaker,
		rpcBreaker:     opts.RPCBreaker,
		risk:           opts.Risk,
	}
	if o.sink == nil {
		o.sink = memory.NewSink()
	}
	if o.notifier == nil {
		o.notifier = notify.Nop{}
	}
	if o.metadata == nil {
		o.metadata = metadata.NewResolver(nil, 0, o.logger)
	}
	if o.limiter == nil {
		o.limiter = ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultMaxRequests)
	}
	if o.jupiterBreaker == nil {
		o.jupiterBreaker = breaker.New("jupiter", breaker.DefaultConfig(), breaker.WithStateChange(BreakerObserver(o.logger)))
	}
	if o.rpcBreaker == nil {
		o.rpcBreaker = breaker.New("rpc", breaker.DefaultConfig(), breaker.WithStateChange(BreakerObserver(o.logger)))
	}
	if o.risk == nil {
		o.risk = risk.NewGate(risk.DefaultParams(), risk.WithLogger(o.logger))
	}

	o.ready = true
	o.startedAt = opts.Now()
	o.logger.Printf("orchestrator ready: wallet=%s pair=%s->%s amount=%d swaps=%t detect=%t autobuy=%t",
		wallet.PublicKey(), opts.InputToken, opts.InputToken.Other(), opts.Amount,
		opts.ExecuteSwaps, opts.DetectNewMarkets, opts.AutoBuyNewTokens)
	return o, nil
}

// BreakerObserver logs breaker transitions and exports them as metrics.
func BreakerObserver(logger *log.Logger) func(name string, from, to breaker.State) {
	return func(name string, from, to breaker.State) {
		logger.Printf("circuit breaker %s: %s -> %s", name, from, to)
		observability.SetBreakerState(name, int(to), to == breaker.StateOpen)
	}
}

// IsReady reports whether construction succeeded.
func (o *Orchestrator) IsReady() bool {
	return o != nil && o.ready
}

// Wallet returns the signer's public key.
func (o *Orchestrator) Wallet() string {
	return o.wallet.PublicKey()
}

// Quote requests a route through the jupiter breaker. No route yields
// jupiter.ErrNoRoute and is recorded by the breaker as neither a failure
// nor a success.
func (o *Orchestrator) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.Quote, error) {
	if !o.limiter.Allow(KeyQuote) {
		observability.RecordRateLimited(KeyQuote)
		return nil, fmt.Errorf("quote: %w", ErrRateLimited)
	}

	quote, err := breaker.Execute(ctx, o.jupiterBreaker, func(ctx context.Context) (*domain.Quote, error) {
		q, err := o.aggregator.Quote(ctx, jupiter.QuoteRequest{
			InputMint:   inputMint,
			OutputMint:  outputMint,
			Amount:      amount,
			SlippageBps: slippageBps,
		})
		if errors.Is(err, jupiter.ErrNoRoute) {
			return nil, breaker.Exclude(err)
		}
		return q, err
	})
	observability.RecordQuote(err)
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// ExecuteSwap fetches the unsigned transaction for quote, signs it with the
// wallet, submits it and waits for confirmation. Sub-steps are not retried.
// On a confirmation failure the returned id is still set.
func (o *Orchestrator) ExecuteSwap(ctx context.Context, quote *domain.Quote) (string, error) {
	if quote == nil {
		return "", errors.New("execute swap: nil quote")
	}
	if !o.limiter.Allow(KeySwap) {
		observability.RecordRateLimited(KeySwap)
		return "", fmt.Errorf("swap: %w", ErrRateLimited)
	}

	unsigned, err := breaker.Execute(ctx, o.jupiterBreaker, func(ctx context.Context) (string, error) {
		return o.aggregator.SwapTransaction(ctx, quote, o.wallet.PublicKey())
	})
	if err != nil {
		return "", fmt.Errorf("build swap transaction: %w", err)
	}

	tx, err := solana.DecodeTransaction(unsigned)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}
	if err := tx.Sign(o.wallet); err != nil {
		return "", fmt.Errorf("sign swap transaction: %w", err)
	}

	txID, err := breaker.Execute(ctx, o.rpcBreaker, func(ctx context.Context) (string, error) {
		return o.rpc.SendTransaction(ctx, tx.Serialize())
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	_, err = solana.ConfirmTransaction(ctx, o.rpc, txID, solana.ConfirmOptions{
		Commitment:   o.opts.Commitment,
		Timeout:      o.opts.ConfirmTimeout,
		PollInterval: o.opts.ConfirmPollInterval,
	})
	if err != nil {
		return txID, fmt.Errorf("confirm %s: %w", txID, err)
	}
	return txID, nil
}

// Start launches the background work enabled by the options: the market
// poller, the steady-state loop and the daily risk reset. Calling Start on
// a running orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.IsReady() {
		return ErrNotReady
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	if o.opts.DetectNewMarkets {
		if err := o.poller.Start(runCtx, o.handleNewMarket); err != nil {
			cancel()
			return fmt.Errorf("start market poller: %w", err)
		}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.risk.RunDailyReset(runCtx)
	}()

	if o.opts.ExecuteSwaps {
		o.loopRunning = true
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			_ = o.RunSwapLoop(runCtx)
			o.mu.Lock()
			o.loopRunning = false
			o.mu.Unlock()
		}()
	}

	o.running = true
	o.cancel = cancel
	o.logger.Printf("orchestrator started")
	return nil
}

// Stop cancels all background work and waits for it, including in-flight
// auto-buys. No swap, persist or notification happens after it returns.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	if o.opts.DetectNewMarkets {
		o.poller.Stop()
	}
	o.wg.Wait()
	o.logger.Printf("orchestrator stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// sleep waits d or until ctx is done. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
