package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/solana"
)

func testSecret(t *testing.T) string {
	t.Helper()
	kp, err := solana.GenerateKeypair()
	require.NoError(t, err)
	return base58.Encode(kp.SecretKey())
}

func TestDefault_NeedsOnlyAKey(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "no secret key configured")

	cfg.Solana.SecretKey = testSecret(t)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.SwapTokenSOL, cfg.InputToken())
	assert.False(t, cfg.Trading.ExecuteSwaps)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TEST_RPC_HOST", "rpc.example.com")
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
solana:
  rpc_url: https://${TEST_RPC_HOST}
trading:
  input_token: USDC
  amount: 2500000
  execute_swaps: true
  trade_interval: 90s
  confirm_timeout: 45s
  confirm_poll_interval: 500ms
risk:
  max_trade_amount: "0.5"
notify:
  kafka_brokers: [a:9092, b:9092]
`), 0o600))

	cfg := Default()
	require.NoError(t, cfg.LoadFile(path))

	assert.Equal(t, "https://rpc.example.com", cfg.Solana.RPCURL)
	assert.Equal(t, domain.SwapTokenUSDC, cfg.InputToken())
	assert.Equal(t, uint64(2500000), cfg.Trading.Amount)
	assert.True(t, cfg.Trading.ExecuteSwaps)
	assert.Equal(t, 90*time.Second, cfg.Trading.TradeInterval)
	assert.Equal(t, 45*time.Second, cfg.Trading.ConfirmTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Trading.ConfirmPollInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Notify.KafkaBrokers)
	// Untouched sections keep their defaults.
	assert.Equal(t, 50, cfg.Trading.SlippageBps)

	p, err := cfg.RiskParams()
	require.NoError(t, err)
	assert.Equal(t, "0.5", p.MaxTradeAmount.String())
}

func TestLoadFile_Missing(t *testing.T) {
	assert.Error(t, Default().LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_SOLANA_ENDPOINT", "https://legacy.example.com")
	t.Setenv("SWAP_AMOUNT", "1000")
	t.Setenv("EXECUTE_SWAPS", "true")
	t.Setenv("TRADE_INTERVAL", "2m")
	t.Setenv("CONFIRM_TIMEOUT", "90s")
	t.Setenv("CONFIRM_POLL_INTERVAL", "1s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "https://legacy.example.com", cfg.Solana.RPCURL)
	assert.Equal(t, uint64(1000), cfg.Trading.Amount)
	assert.True(t, cfg.Trading.ExecuteSwaps)
	assert.Equal(t, 2*time.Minute, cfg.Trading.TradeInterval)
	assert.Equal(t, 90*time.Second, cfg.Trading.ConfirmTimeout)
	assert.Equal(t, time.Second, cfg.Trading.ConfirmPollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notify.KafkaBrokers)
	assert.Equal(t, "42", cfg.Notify.TelegramChatID)
}

func TestApplyEnv_PrimaryNameWins(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://primary.example.com")
	t.Setenv("NEXT_PUBLIC_SOLANA_ENDPOINT", "https://legacy.example.com")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "https://primary.example.com", cfg.Solana.RPCURL)
}

func TestApplyEnv_BadValues(t *testing.T) {
	t.Setenv("SWAP_AMOUNT", "-5")
	t.Setenv("EXECUTE_SWAPS", "sometimes")

	err := Default().ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SWAP_AMOUNT")
	assert.Contains(t, err.Error(), "EXECUTE_SWAPS")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TELEGRAM_CHAT_ID=777\n"), 0o600))
	t.Setenv("TELEGRAM_CHAT_ID", "")
	os.Unsetenv("TELEGRAM_CHAT_ID")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "777", os.Getenv("TELEGRAM_CHAT_ID"))

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Solana.SecretKey = "[1,2,3]"
	cfg.Trading.InputToken = "BONK"
	cfg.Trading.ExecuteSwaps = true
	cfg.Trading.AutoBuyNewTokens = true
	cfg.Risk.MaxTradeAmount = "lots"
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"solana.secret_key",
		"input_token",
		"trading.amount",
		"requires detect_new_markets",
		"risk.max_trade_amount",
		"telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSecretKey_JSONArray(t *testing.T) {
	kp, err := solana.GenerateKeypair()
	require.NoError(t, err)

	raw := "["
	for i, b := range kp.SecretKey() {
		if i > 0 {
			raw += ","
		}
		raw += strconv.Itoa(int(b))
	}
	raw += "]"

	cfg := Default()
	cfg.Solana.SecretKey = raw
	got, err := cfg.SecretKey()
	require.NoError(t, err)
	assert.Equal(t, kp.SecretKey(), got)
}

func TestValidate_ConfirmPollInterval(t *testing.T) {
	cfg := Default()
	cfg.Solana.SecretKey = testSecret(t)
	assert.Equal(t, solana.DefaultConfirmOptions().Timeout, cfg.Trading.ConfirmTimeout)

	cfg.Trading.ConfirmTimeout = time.Second
	cfg.Trading.ConfirmPollInterval = 5 * time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirm_poll_interval")
}
