// Package config loads bot settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/risk"
	"solana-swap-bot/internal/solana"
)

// Config holds all bot configuration.
type Config struct {
	Solana  SolanaConfig  `yaml:"solana"`
	Jupiter JupiterConfig `yaml:"jupiter"`
	Trading TradingConfig `yaml:"trading"`
	Risk    RiskConfig    `yaml:"risk"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Server  ServerConfig  `yaml:"server"`
	LogFile string        `yaml:"log_file"`
}

type SolanaConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	WSURL      string `yaml:"ws_url"` // empty disables the log trigger
	SecretKey  string `yaml:"secret_key"`
	Commitment string `yaml:"commitment"`
}

type JupiterConfig struct {
	BaseURL   string  `yaml:"base_url"`
	TokensURL string  `yaml:"tokens_url"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 disables pacing
	Burst     int     `yaml:"burst"`
}

type TradingConfig struct {
	InputToken           string        `yaml:"input_token"` // SOL or USDC
	Amount               uint64        `yaml:"amount"`
	SlippageBps          int           `yaml:"slippage_bps"`
	ExecuteSwaps         bool          `yaml:"execute_swaps"`
	DetectNewMarkets     bool          `yaml:"detect_new_markets"`
	AutoBuyNewTokens     bool          `yaml:"auto_buy_new_tokens"`
	AutoBuyAmount        uint64        `yaml:"auto_buy_amount"`
	AutoBuySlippageBps   int           `yaml:"auto_buy_slippage_bps"`
	SteadyStateRiskCheck bool          `yaml:"steady_state_risk_check"`
	TradeInterval        time.Duration `yaml:"trade_interval"`
	RetryInterval        time.Duration `yaml:"retry_interval"`
	ConfirmTimeout       time.Duration `yaml:"confirm_timeout"`
	ConfirmPollInterval  time.Duration `yaml:"confirm_poll_interval"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	MaxPools             int           `yaml:"max_pools"`
}

// RiskConfig carries SOL amounts and fractions as decimal strings.
type RiskConfig struct {
	MaxTradeAmount      string        `yaml:"max_trade_amount"`
	MaxDailyVolume      string        `yaml:"max_daily_volume"`
	MaxExposurePerAsset string        `yaml:"max_exposure_per_asset"`
	StopLossPct         string        `yaml:"stop_loss_pct"`
	TakeProfitPct       string        `yaml:"take_profit_pct"`
	MaxSlippage         string        `yaml:"max_slippage"`
	MinLiquidity        string        `yaml:"min_liquidity"`
	Cooldown            time.Duration `yaml:"cooldown"`
}

type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`   // empty uses in-memory storage
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional trade mirror
	RedisAddr     string `yaml:"redis_addr"`     // empty uses an in-process cache
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type NotifyConfig struct {
	TelegramToken  string   `yaml:"telegram_token"`
	TelegramChatID string   `yaml:"telegram_chat_id"`
	KafkaBrokers   []string `yaml:"kafka_brokers"`
	KafkaTopic     string   `yaml:"kafka_topic"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"` // empty disables the status API
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
}

// Default returns a read-only configuration against mainnet endpoints.
func Default() *Config {
	p := risk.DefaultParams()
	confirm := solana.DefaultConfirmOptions()
	return &Config{
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			Commitment: solana.CommitmentConfirmed,
		},
		Jupiter: JupiterConfig{
			BaseURL:   "https://quote-api.jup.ag/v6",
			RateLimit: 5,
			Burst:     5,
		},
		Trading: TradingConfig{
			InputToken:          "SOL",
			SlippageBps:         50,
			AutoBuyAmount:       10_000_000,
			AutoBuySlippageBps:  10_000,
			TradeInterval:       60 * time.Second,
			RetryInterval:       5 * time.Second,
			ConfirmTimeout:      confirm.Timeout,
			ConfirmPollInterval: confirm.PollInterval,
			PollInterval:        10 * time.Second,
		},
		Risk: RiskConfig{
			MaxTradeAmount:      p.MaxTradeAmount.String(),
			MaxDailyVolume:      p.MaxDailyVolume.String(),
			MaxExposurePerAsset: p.MaxExposurePerAsset.String(),
			StopLossPct:         p.StopLossPct.String(),
			TakeProfitPct:       p.TakeProfitPct.String(),
			MaxSlippage:         p.MaxSlippage.String(),
			MinLiquidity:        p.MinLiquidity.String(),
			Cooldown:            p.Cooldown,
		},
		Notify: NotifyConfig{KafkaTopic: "swapbot.events"},
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimitWindow: time.Minute,
			RateLimitMax:    100,
		},
	}
}

// LoadFile overlays the YAML file at path onto c. ${VAR} references in the
// file are expanded from the environment.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. Unset variables leave the
// current value in place.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	parse := func(key string, fn func(string) error) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if err := fn(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	boolean := func(dst *bool, key string) {
		parse(key, func(v string) (err error) { *dst, err = strconv.ParseBool(v); return })
	}
	uint64v := func(dst *uint64, key string) {
		parse(key, func(v string) (err error) { *dst, err = strconv.ParseUint(v, 10, 64); return })
	}
	intv := func(dst *int, key string) {
		parse(key, func(v string) (err error) { *dst, err = strconv.Atoi(v); return })
	}
	duration := func(dst *time.Duration, key string) {
		parse(key, func(v string) (err error) { *dst, err = time.ParseDuration(v); return })
	}

	str(&c.Solana.RPCURL, "SOLANA_RPC_URL", "NEXT_PUBLIC_SOLANA_ENDPOINT")
	str(&c.Solana.WSURL, "SOLANA_WS_URL")
	str(&c.Solana.SecretKey, "SOLANA_SECRET_KEY", "NEXT_PUBLIC_SECRET_KEY")
	str(&c.Solana.Commitment, "SOLANA_COMMITMENT")

	str(&c.Jupiter.BaseURL, "JUPITER_API_URL", "NEXT_PUBLIC_JUPITER_ENDPOINT")
	str(&c.Jupiter.TokensURL, "JUPITER_TOKENS_URL")
	parse("JUPITER_RATE_LIMIT", func(v string) (err error) { c.Jupiter.RateLimit, err = strconv.ParseFloat(v, 64); return })

	str(&c.Trading.InputToken, "INPUT_TOKEN")
	uint64v(&c.Trading.Amount, "SWAP_AMOUNT")
	intv(&c.Trading.SlippageBps, "SLIPPAGE_BPS")
	boolean(&c.Trading.ExecuteSwaps, "EXECUTE_SWAPS")
	boolean(&c.Trading.DetectNewMarkets, "DETECT_NEW_MARKETS")
	boolean(&c.Trading.AutoBuyNewTokens, "AUTO_BUY_NEW_TOKENS")
	uint64v(&c.Trading.AutoBuyAmount, "AUTO_BUY_AMOUNT")
	intv(&c.Trading.AutoBuySlippageBps, "AUTO_BUY_SLIPPAGE_BPS")
	boolean(&c.Trading.SteadyStateRiskCheck, "STEADY_STATE_RISK_CHECK")
	duration(&c.Trading.TradeInterval, "TRADE_INTERVAL")
	duration(&c.Trading.RetryInterval, "RETRY_INTERVAL")
	duration(&c.Trading.ConfirmTimeout, "CONFIRM_TIMEOUT")
	duration(&c.Trading.ConfirmPollInterval, "CONFIRM_POLL_INTERVAL")
	duration(&c.Trading.PollInterval, "POLL_INTERVAL")
	intv(&c.Trading.MaxPools, "MAX_POOLS")

	str(&c.Risk.MaxTradeAmount, "RISK_MAX_TRADE_AMOUNT")
	str(&c.Risk.MaxDailyVolume, "RISK_MAX_DAILY_VOLUME")
	str(&c.Risk.MaxExposurePerAsset, "RISK_MAX_EXPOSURE_PER_ASSET")
	str(&c.Risk.MinLiquidity, "RISK_MIN_LIQUIDITY")
	duration(&c.Risk.Cooldown, "RISK_COOLDOWN")

	str(&c.Storage.PostgresDSN, "POSTGRES_DSN", "DATABASE_URL")
	str(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	str(&c.Storage.RedisAddr, "REDIS_ADDR")
	str(&c.Storage.RedisPassword, "REDIS_PASSWORD")
	intv(&c.Storage.RedisDB, "REDIS_DB")

	str(&c.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN")
	str(&c.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Notify.KafkaBrokers = splitList(v)
	}
	str(&c.Notify.KafkaTopic, "KAFKA_TOPIC")

	str(&c.Server.Addr, "HTTP_ADDR")
	str(&c.LogFile, "LOG_FILE")

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Solana.RPCURL == "" {
		errs = append(errs, errors.New("solana.rpc_url is required"))
	}
	if _, err := c.SecretKey(); err != nil {
		errs = append(errs, fmt.Errorf("solana.secret_key: %w", err))
	}
	if c.Jupiter.BaseURL == "" {
		errs = append(errs, errors.New("jupiter.base_url is required"))
	}
	if _, ok := domain.ParseSwapToken(c.Trading.InputToken); !ok {
		errs = append(errs, fmt.Errorf("trading.input_token must be SOL or USDC, got %q", c.Trading.InputToken))
	}
	if c.Trading.ExecuteSwaps && c.Trading.Amount == 0 {
		errs = append(errs, errors.New("trading.amount must be > 0 when execute_swaps is set"))
	}
	if c.Trading.SlippageBps < 0 || c.Trading.SlippageBps > 10_000 {
		errs = append(errs, fmt.Errorf("trading.slippage_bps out of range: %d", c.Trading.SlippageBps))
	}
	if c.Trading.AutoBuySlippageBps < 0 || c.Trading.AutoBuySlippageBps > 10_000 {
		errs = append(errs, fmt.Errorf("trading.auto_buy_slippage_bps out of range: %d", c.Trading.AutoBuySlippageBps))
	}
	if c.Trading.ConfirmPollInterval > 0 && c.Trading.ConfirmTimeout > 0 && c.Trading.ConfirmPollInterval > c.Trading.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("trading.confirm_poll_interval %s exceeds confirm_timeout %s", c.Trading.ConfirmPollInterval, c.Trading.ConfirmTimeout))
	}
	if c.Trading.AutoBuyNewTokens && !c.Trading.DetectNewMarkets {
		errs = append(errs, errors.New("trading.auto_buy_new_tokens requires detect_new_markets"))
	}
	if _, err := c.RiskParams(); err != nil {
		errs = append(errs, err)
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, errors.New("notify.telegram_token and telegram_chat_id must be set together"))
	}
	if len(c.Notify.KafkaBrokers) > 0 && c.Notify.KafkaTopic == "" {
		errs = append(errs, errors.New("notify.kafka_topic is required with kafka_brokers"))
	}
	return errors.Join(errs...)
}

// SecretKey decodes the configured signing key and checks it is a valid
// ed25519 keypair.
func (c *Config) SecretKey() ([]byte, error) {
	raw, err := solana.ParseSecretKey(c.Solana.SecretKey)
	if err != nil {
		return nil, err
	}
	if _, err := solana.NewKeypair(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// InputToken returns the steady-state input token.
func (c *Config) InputToken() domain.SwapToken {
	t, _ := domain.ParseSwapToken(c.Trading.InputToken)
	return t
}

// RiskParams converts the risk section into validated gate parameters.
func (c *Config) RiskParams() (risk.Params, error) {
	var errs []error
	dec := func(name, s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("risk.%s: %w", name, err))
		}
		return d
	}
	p := risk.Params{
		MaxTradeAmount:      dec("max_trade_amount", c.Risk.MaxTradeAmount),
		MaxDailyVolume:      dec("max_daily_volume", c.Risk.MaxDailyVolume),
		MaxExposurePerAsset: dec("max_exposure_per_asset", c.Risk.MaxExposurePerAsset),
		StopLossPct:         dec("stop_loss_pct", c.Risk.StopLossPct),
		TakeProfitPct:       dec("take_profit_pct", c.Risk.TakeProfitPct),
		MaxSlippage:         dec("max_slippage", c.Risk.MaxSlippage),
		MinLiquidity:        dec("min_liquidity", c.Risk.MinLiquidity),
		Cooldown:            c.Risk.Cooldown,
	}
	if len(errs) > 0 {
		return risk.Params{}, errors.Join(errs...)
	}
	if err := p.Validate(); err != nil {
		return risk.Params{}, fmt.Errorf("risk: %w", err)
	}
	return p, nil
}
