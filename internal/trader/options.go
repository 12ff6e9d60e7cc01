package trader

import (
	"context"
	"log"
	"time"

	"solana-swap-bot/internal/breaker"
	"solana-swap-bot/internal/discovery"
	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/jupiter"
	"solana-swap-bot/internal/notify"
	"solana-swap-bot/internal/ratelimit"
	"solana-swap-bot/internal/risk"
	"solana-swap-bot/internal/solana"
	"solana-swap-bot/internal/storage"
)

// Defaults.
const (
	DefaultTradeInterval      = 60 * time.Second
	DefaultRetryInterval      = 5 * time.Second
	DefaultQuoteSlippageBps   = 50
	DefaultAutoBuyAmount      = 10_000_000 // 0.01 SOL
	DefaultAutoBuySlippageBps = 10_000     // accept any output
	DefaultRecentMarkets      = 100
)

// Rate limiter keys.
const (
	KeyQuote = "quote"
	KeySwap  = "swap"
)

// Aggregator quotes routes and builds unsigned swap transactions.
// Implemented by *jupiter.Client.
type Aggregator interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*domain.Quote, error)
	SwapTransaction(ctx context.Context, quote *domain.Quote, userPublicKey string) (string, error)
}

// MetadataResolver resolves token metadata, falling back to a synthetic
// placeholder. Implemented by *metadata.Resolver.
type MetadataResolver interface {
	ResolveOrSynthetic(ctx context.Context, mint string) (meta domain.TokenMetadata, resolved bool)
}

// SocialVerifier screens a new token before auto-buy. A nil verifier skips
// the screen.
type SocialVerifier interface {
	Verify(ctx context.Context, mint string) (bool, error)
}

// MarketWatcher emits newly listed pools. Implemented by
// *discovery.MarketPoller.
type MarketWatcher interface {
	Start(ctx context.Context, cb discovery.Callback) error
	Stop()
	Listening() bool
	KnownCount() int
}

// Options wires the orchestrator. RPC, Aggregator and SecretKey are
// required; Poller is required when DetectNewMarkets is set. Other nil
// collaborators get in-process defaults.
type Options struct {
	Logger *log.Logger

	RPC        solana.RPCClient
	Aggregator Aggregator
	Sink       storage.Sink
	Notifier   notify.Notifier
	Metadata   MetadataResolver
	Social     SocialVerifier
	Poller     MarketWatcher

	Limiter        *ratelimit.Limiter
	JupiterBreaker *breaker.Breaker
	RPCBreaker     *breaker.Breaker
	Risk           *risk.Gate

	// SecretKey is the 64-byte ed25519 key: seed then public key.
	SecretKey []byte

	// Steady-state pair: InputToken is sold for InputToken.Other().
	InputToken       domain.SwapToken
	Amount           uint64 // input base units per cycle
	QuoteSlippageBps int

	ExecuteSwaps         bool
	DetectNewMarkets     bool
	AutoBuyNewTokens     bool
	SteadyStateRiskCheck bool

	AutoBuyAmount      uint64 // lamports
	AutoBuySlippageBps int

	TradeInterval       time.Duration
	RetryInterval       time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	Commitment          string

	RecentMarketsLimit int
	Now                func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.QuoteSlippageBps == 0 {
		o.QuoteSlippageBps = DefaultQuoteSlippageBps
	}
	if o.AutoBuyAmount == 0 {
		o.AutoBuyAmount = DefaultAutoBuyAmount
	}
	if o.AutoBuySlippageBps == 0 {
		o.AutoBuySlippageBps = DefaultAutoBuySlippageBps
	}
	if o.TradeInterval <= 0 {
		o.TradeInterval = DefaultTradeInterval
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	def := solana.DefaultConfirmOptions()
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = def.Timeout
	}
	if o.ConfirmPollInterval <= 0 {
		o.ConfirmPollInterval = def.PollInterval
	}
	if o.Commitment == "" {
		o.Commitment = def.Commitment
	}
	if o.RecentMarketsLimit <= 0 {
		o.RecentMarketsLimit = DefaultRecentMarkets
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
