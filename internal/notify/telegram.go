package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"solana-swap-bot/internal/domain"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// ErrTelegramRejected is returned when the Bot API answers ok=false.
var ErrTelegramRejected = errors.New("telegram rejected message")

// Telegram posts HTML messages through the Bot API sendMessage method.
type Telegram struct {
	apiURL string
	token  string
	chatID string
	http   *http.Client
}

var _ Notifier = (*Telegram)(nil)

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// WithTelegramAPI overrides the Bot API base URL.
func WithTelegramAPI(u string) TelegramOption {
	return func(t *Telegram) {
		t.apiURL = strings.TrimRight(u, "/")
	}
}

// WithTelegramHTTPClient sets custom http.Client.
func WithTelegramHTTPClient(hc *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.http = hc
	}
}

// NewTelegram creates a notifier for the bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		apiURL: DefaultTelegramAPI,
		token:  token,
		chatID: chatID,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NotifyTrade sends a BUY/SELL summary with explorer links.
func (t *Telegram) NotifyTrade(ctx context.Context, e TradeEvent) error {
	return t.send(ctx, FormatTrade(e))
}

// NotifyNewToken sends a new-token alert.
func (t *Telegram) NotifyNewToken(ctx context.Context, e NewTokenEvent) error {
	return t.send(ctx, FormatNewToken(e))
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var out sendMessageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram status %d: decode response: %w", resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("%w: status %d: %s", ErrTelegramRejected, resp.StatusCode, out.Description)
	}
	return nil
}

// FormatTrade renders the HTML trade message.
func FormatTrade(e TradeEvent) string {
	mint := e.Mint()
	symbol := e.OutputSymbol
	solAmount := domain.LamportsToSOL(e.Trade.InputAmount)
	if e.Action() == "SELL" {
		symbol = e.InputSymbol
		solAmount = domain.LamportsToSOL(e.Trade.OutputAmount)
	}
	if symbol == "" {
		symbol = shorten(mint)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s %s</b>\n\n", e.Action(), html.EscapeString(symbol))
	if e.Trade.InputMint == domain.WrappedSOLMint || e.Trade.OutputMint == domain.WrappedSOLMint {
		fmt.Fprintf(&b, "Amount: %s SOL\n", solAmount.String())
	} else {
		fmt.Fprintf(&b, "Amount in: %d\nAmount out: %d\n", e.Trade.InputAmount, e.Trade.OutputAmount)
	}
	fmt.Fprintf(&b, "Price: %g\n", e.Trade.Price)
	fmt.Fprintf(&b, "Token: <a href=\"https://solscan.io/token/%s\">%s</a>\n", mint, shorten(mint))
	fmt.Fprintf(&b, "Transaction: <a href=\"https://solscan.io/tx/%s\">%s</a>", e.Trade.TxID, shorten(e.Trade.TxID))
	return b.String()
}

// FormatNewToken renders the HTML new-token message.
func FormatNewToken(e NewTokenEvent) string {
	var b strings.Builder
	b.WriteString("<b>NEW TOKEN DETECTED</b>\n\n")
	fmt.Fprintf(&b, "Symbol: %s\n", html.EscapeString(e.Symbol))
	fmt.Fprintf(&b, "Name: %s\n", html.EscapeString(e.Name))
	if !e.Resolved {
		b.WriteString("Metadata: unresolved\n")
	}
	fmt.Fprintf(&b, "Token: <a href=\"https://solscan.io/token/%s\">%s</a>\n", e.Mint, shorten(e.Mint))
	if e.Pool != "" {
		fmt.Fprintf(&b, "Pool: <a href=\"https://solscan.io/account/%s\">%s</a>\n", e.Pool, shorten(e.Pool))
	}
	fmt.Fprintf(&b, "First seen: %s", time.UnixMilli(e.FirstSeen).UTC().Format(time.RFC3339))
	return b.String()
}

// shorten renders abcdefgh...stuvwxyz for long ids.
func shorten(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[:8] + "..." + s[len(s)-8:]
}
