// Command bot runs the Solana swap bot: a steady-state SOL/USDC swap loop,
// Raydium new-market detection with optional auto-buy, and an HTTP status API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"solana-swap-bot/internal/breaker"
	"solana-swap-bot/internal/cache"
	"solana-swap-bot/internal/config"
	"solana-swap-bot/internal/discovery"
	"solana-swap-bot/internal/jupiter"
	"solana-swap-bot/internal/metadata"
	"solana-swap-bot/internal/notify"
	"solana-swap-bot/internal/observability"
	"solana-swap-bot/internal/ratelimit"
	"solana-swap-bot/internal/risk"
	"solana-swap-bot/internal/solana"
	"solana-swap-bot/internal/statusapi"
	"solana-swap-bot/internal/storage"
	chstore "solana-swap-bot/internal/storage/clickhouse"
	"solana-swap-bot/internal/storage/memory"
	"solana-swap-bot/internal/storage/migrations"
	pgstore "solana-swap-bot/internal/storage/postgres"
	"solana-swap-bot/internal/trader"
)

func main() {
	configPath := flag.String("config", os.Getenv("BOT_CONFIG"), "YAML config file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	logFile := flag.String("log-file", "", "Also write logs to this file, rotated by size")
	rpcURL := flag.String("rpc-url", "", "Solana RPC HTTP endpoint (overrides config)")
	wsURL := flag.String("ws-url", "", "Solana WebSocket endpoint for pool-init log triggers")
	httpAddr := flag.String("http-addr", "", "Status API address (overrides config)")
	executeSwaps := flag.Bool("execute-swaps", false, "Run the steady-state swap loop")
	detectMarkets := flag.Bool("detect-new-markets", false, "Poll Raydium for new pools")
	autoBuy := flag.Bool("auto-buy", false, "Auto-buy newly detected tokens")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rpc-url":
			cfg.Solana.RPCURL = *rpcURL
		case "ws-url":
			cfg.Solana.WSURL = *wsURL
		case "http-addr":
			cfg.Server.Addr = *httpAddr
		case "log-file":
			cfg.LogFile = *logFile
		case "execute-swaps":
			cfg.Trading.ExecuteSwaps = *executeSwaps
		case "detect-new-markets":
			cfg.Trading.DetectNewMarkets = *detectMarkets
		case "auto-buy":
			cfg.Trading.AutoBuyNewTokens = *autoBuy
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config:\n%v", err)
	}

	logs := newLogFactory(cfg.LogFile)
	logger := logs.For("bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	if err := run(ctx, cfg, logs); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("error: %v", err)
	}
	logger.Println("shutdown complete")
}

func loadConfig(path, envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg := config.Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logFactory hands out per-component loggers sharing one output.
type logFactory struct {
	out io.Writer
}

func newLogFactory(file string) logFactory {
	var out io.Writer = os.Stdout
	if file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return logFactory{out: out}
}

// For returns a logger prefixed with "[component] ".
func (f logFactory) For(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", log.LstdFlags|log.Lshortfile)
}

func run(ctx context.Context, cfg *config.Config, logs logFactory) error {
	logger := logs.For("bot")
	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithCommitment(cfg.Solana.Commitment),
		solana.WithObserver(observability.RecordRPCCall),
	)
	logNodeClock(ctx, rpc, logger)

	jupOpts := []jupiter.Option{jupiter.WithRateLimit(cfg.Jupiter.RateLimit, cfg.Jupiter.Burst)}
	if cfg.Jupiter.TokensURL != "" {
		jupOpts = append(jupOpts, jupiter.WithTokensURL(cfg.Jupiter.TokensURL))
	}
	jup := jupiter.NewClient(cfg.Jupiter.BaseURL, jupOpts...)

	sink, closeStores, err := openStores(ctx, cfg.Storage, logs.For("storage"))
	if err != nil {
		return err
	}
	defer closeStores()

	metaCache, closeCache, err := openCache(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeCache()
	resolver := metadata.NewResolver(metaCache, metadata.DefaultCacheTTL, logs.For("metadata"),
		metadata.NewRegistrySource(jup),
		metadata.NewOnChainSource(rpc),
	)

	notifier, closeNotifiers := openNotifiers(cfg.Notify, logs.For("notify"))
	defer closeNotifiers()

	riskParams, err := cfg.RiskParams()
	if err != nil {
		return err
	}
	secret, err := cfg.SecretKey()
	if err != nil {
		return err
	}

	observer := breaker.WithStateChange(trader.BreakerObserver(logs.For("breaker")))
	opts := trader.Options{
		Logger:               logs.For("trader"),
		RPC:                  rpc,
		Aggregator:           jup,
		Sink:                 sink,
		Notifier:             notifier,
		Metadata:             resolver,
		Limiter:              ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultMaxRequests),
		JupiterBreaker:       breaker.New("jupiter", breaker.DefaultConfig(), observer),
		RPCBreaker:           breaker.New("rpc", breaker.DefaultConfig(), observer),
		Risk:                 risk.NewGate(riskParams, risk.WithLogger(logs.For("risk"))),
		SecretKey:            secret,
		InputToken:           cfg.InputToken(),
		Amount:               cfg.Trading.Amount,
		QuoteSlippageBps:     cfg.Trading.SlippageBps,
		ExecuteSwaps:         cfg.Trading.ExecuteSwaps,
		DetectNewMarkets:     cfg.Trading.DetectNewMarkets,
		AutoBuyNewTokens:     cfg.Trading.AutoBuyNewTokens,
		SteadyStateRiskCheck: cfg.Trading.SteadyStateRiskCheck,
		AutoBuyAmount:        cfg.Trading.AutoBuyAmount,
		AutoBuySlippageBps:   cfg.Trading.AutoBuySlippageBps,
		TradeInterval:        cfg.Trading.TradeInterval,
		RetryInterval:        cfg.Trading.RetryInterval,
		ConfirmTimeout:       cfg.Trading.ConfirmTimeout,
		ConfirmPollInterval:  cfg.Trading.ConfirmPollInterval,
		Commitment:           cfg.Solana.Commitment,
	}

	if cfg.Trading.DetectNewMarkets {
		opts.Poller = newPoller(ctx, cfg, rpc, logs)
	}

	orch, err := trader.New(ctx, opts)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Server.Addr != "" {
		apiLogger := logs.For("statusapi")
		api := statusapi.New(orch, sink, ratelimit.New(cfg.Server.RateLimitWindow, cfg.Server.RateLimitMax), apiLogger)
		go api.RunJanitor(ctx, statusapi.DefaultPruneInterval)
		srv = &http.Server{Addr: cfg.Server.Addr, Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			apiLogger.Printf("listening on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				apiLogger.Printf("server error: %v", err)
			}
		}()
	}

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	logger.Printf("bot running: wallet=%s", orch.Wallet())

	<-ctx.Done()
	orch.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("status API shutdown: %v", err)
		}
	}
	return ctx.Err()
}

// logNodeClock reports the node's current slot and its block time so clock
// skew against the host is visible in the startup log.
func logNodeClock(ctx context.Context, rpc *solana.HTTPClient, logger *log.Logger) {
	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		logger.Printf("node slot unavailable: %v", err)
		return
	}
	ts, err := rpc.GetBlockTime(ctx, slot)
	if err != nil {
		logger.Printf("node at slot %d, block time unavailable: %v", slot, err)
		return
	}
	skew := time.Since(time.Unix(ts, 0)).Round(time.Second)
	logger.Printf("node at slot %d, block time %s (skew %s)", slot, time.Unix(ts, 0).UTC().Format(time.RFC3339), skew)
}

func openStores(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (storage.Sink, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var trades storage.TradeStore
	var tokens storage.TokenStore
	if cfg.PostgresDSN == "" {
		logger.Println("no postgres DSN configured, using in-memory storage")
		mem := memory.NewSink()
		trades, tokens = mem.TradeStore, mem.TokenStore
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		pg := pgstore.NewSink(pool)
		trades, tokens = pg.TradeStore, pg.TokenStore
	}

	if cfg.ClickhouseDSN != "" {
		if err := chstore.EnsureDatabase(ctx, cfg.ClickhouseDSN); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, func() { conn.Close() })
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		trades = storage.NewTeeTradeStore(trades, chstore.NewTradeStore(conn), logger)
		logger.Println("mirroring trades to clickhouse")
	}

	return storage.CombinedSink{TradeStore: trades, TokenStore: tokens}, closeAll, nil
}

func openCache(ctx context.Context, cfg config.StorageConfig) (cache.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}, nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "swapbot:",
	})
	if err != nil {
		return nil, func() {}, err
	}
	return r, func() { r.Close() }, nil
}

func openNotifiers(cfg config.NotifyConfig, logger *log.Logger) (notify.Notifier, func()) {
	var multi notify.Multi
	closeFn := func() {}
	if cfg.TelegramToken != "" {
		multi = append(multi, notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID))
		logger.Println("telegram notifications enabled")
	}
	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafka(notify.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		multi = append(multi, k)
		closeFn = func() {
			if err := k.Close(); err != nil {
				logger.Printf("close kafka writer: %v", err)
			}
		}
		logger.Printf("kafka events enabled: topic=%s", cfg.KafkaTopic)
	}
	if len(multi) == 0 {
		return notify.Nop{}, closeFn
	}
	return multi, closeFn
}

func newPoller(ctx context.Context, cfg *config.Config, rpc *solana.HTTPClient, logs logFactory) *discovery.MarketPoller {
	logger := logs.For("discovery")
	source := discovery.NewRaydiumPoolSource(rpc, discovery.RaydiumOptions{
		MaxPools: cfg.Trading.MaxPools,
		Logger:   logger,
	})
	pollOpts := discovery.Options{Interval: cfg.Trading.PollInterval, Logger: logger}

	if cfg.Solana.WSURL != "" {
		stream := solana.NewWSLogStream(cfg.Solana.WSURL, nil, logs.For("ws"))
		trigger := discovery.NewLogTrigger(stream, discovery.RaydiumAMMV4, logger)
		pollOpts.Trigger = trigger.C()
		go func() {
			if err := trigger.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("pool-init trigger stopped: %v", err)
			}
		}()
	}
	return discovery.NewMarketPoller(source, pollOpts)
}
