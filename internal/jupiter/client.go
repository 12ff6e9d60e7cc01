// Package jupiter is a client for the Jupiter swap aggregator: quotes,
// unsigned swap transactions, and token registry lookups.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"solana-swap-bot/internal/domain"
)

// Default endpoints.
const (
	DefaultBaseURL   = "https://quote-api.jup.ag/v6"
	DefaultTokensURL = "https://tokens.jup.ag"
	DefaultTimeout   = 15 * time.Second
)

// Client calls the quote, swap and token endpoints. Outbound requests are
// paced by a token bucket so bursts from the poller stay under the
// provider's published limit.
type Client struct {
	baseURL   string
	tokensURL string
	http      *http.Client
	limiter   *rate.Limiter
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokensURL overrides the token registry endpoint.
func WithTokensURL(u string) Option {
	return func(c *Client) {
		c.tokensURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit paces requests to perSecond with the given burst.
// perSecond <= 0 disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokensURL: DefaultTokensURL,
		http:      &http.Client{Timeout: DefaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QuoteRequest describes a quote.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // input base units
	SlippageBps int
}

type quoteResponse struct {
	InputMint            string `json:"inputMint"`
	OutputMint           string `json:"outputMint"`
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SwapMode             string `json:"swapMode"`
	SlippageBps          int    `json:"slippageBps"`
}

// Quote requests the best route for req.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("quote %s -> %s: %w", req.InputMint, req.OutputMint, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if resp.OutAmount == "" {
		return nil, fmt.Errorf("quote %s -> %s: %w", req.InputMint, req.OutputMint, ErrNoRoute)
	}

	quote := &domain.Quote{
		InputMint:   resp.InputMint,
		OutputMint:  resp.OutputMint,
		SwapMode:    resp.SwapMode,
		SlippageBps: resp.SlippageBps,
		Raw:         json.RawMessage(raw),
	}
	if quote.InAmount, err = parseAmount("inAmount", resp.InAmount); err != nil {
		return nil, err
	}
	if quote.OutAmount, err = parseAmount("outAmount", resp.OutAmount); err != nil {
		return nil, err
	}
	if resp.OtherAmountThreshold != "" {
		if quote.MinOutAmount, err = parseAmount("otherAmountThreshold", resp.OtherAmountThreshold); err != nil {
			return nil, err
		}
	}
	return quote, nil
}

func parseAmount(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return v, nil
}

type swapRequest struct {
	UserPublicKey             string          `json:"userPublicKey"`
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports string          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapTransaction asks the provider to build an unsigned transaction that
// executes quote for userPublicKey. Returns the base64 transaction.
func (c *Client) SwapTransaction(ctx context.Context, quote *domain.Quote, userPublicKey string) (string, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return "", fmt.Errorf("swap: quote has no provider payload")
	}
	body, err := json.Marshal(swapRequest{
		UserPublicKey:             userPublicKey,
		QuoteResponse:             quote.Raw,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap", body)
	if err != nil {
		return "", fmt.Errorf("swap: %w", err)
	}
	var resp swapResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode swap: %w", err)
	}
	if resp.SwapTransaction == "" {
		return "", fmt.Errorf("swap: empty transaction in response")
	}
	return resp.SwapTransaction, nil
}

type tokenResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// Token looks mint up in the token registry.
func (c *Client) Token(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	raw, err := c.do(ctx, http.MethodGet, c.tokensURL+"/token/"+url.PathEscape(mint), nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", mint, ErrTokenNotFound)
		}
		return nil, fmt.Errorf("token %s: %w", mint, err)
	}
	// The registry answers unknown mints with a literal null.
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil, fmt.Errorf("%s: %w", mint, ErrTokenNotFound)
	}
	var resp tokenResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &domain.TokenMetadata{
		Mint:     mint,
		Symbol:   resp.Symbol,
		Name:     resp.Name,
		Decimals: resp.Decimals,
	}, nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		if eb.Error == "" && resp.StatusCode != http.StatusNotFound {
			eb.Error = strings.TrimSpace(string(raw))
		}
		return nil, mapError(resp.StatusCode, eb)
	}
	return raw, nil
}
