package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-bot/internal/domain"
)

const quoteJSON = `{
	"inputMint": "So11111111111111111111111111111111111111112",
	"inAmount": "100000000",
	"outputMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"outAmount": "14523000",
	"otherAmountThreshold": "14450385",
	"swapMode": "ExactIn",
	"slippageBps": 50,
	"routePlan": []
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, WithTokensURL(server.URL), WithRateLimit(0, 0))
}

func TestClient_Quote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, domain.WrappedSOLMint, q.Get("inputMint"))
		assert.Equal(t, domain.USDCMint, q.Get("outputMint"))
		assert.Equal(t, "100000000", q.Get("amount"))
		assert.Equal(t, "50", q.Get("slippageBps"))
		w.Write([]byte(quoteJSON))
	})

	quote, err := c.Quote(context.Background(), QuoteRequest{
		InputMint:   domain.WrappedSOLMint,
		OutputMint:  domain.USDCMint,
		Amount:      100_000_000,
		SlippageBps: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), quote.InAmount)
	assert.Equal(t, uint64(14_523_000), quote.OutAmount)
	assert.Equal(t, uint64(14_450_385), quote.MinOutAmount)
	assert.Equal(t, "ExactIn", quote.SwapMode)
	assert.JSONEq(t, quoteJSON, string(quote.Raw))
}

func TestClient_QuoteNoRoute(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"error code", http.StatusBadRequest, `{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`},
		{"message only", http.StatusBadRequest, `{"error":"No routes found for the input and output mints"}`},
		{"empty quote", http.StatusOK, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
			assert.ErrorIs(t, err, ErrNoRoute)
		})
	}
}

func TestClient_RateLimitedAndAPIError(t *testing.T) {
	status := http.StatusTooManyRequests
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":"slow down"}`))
	})

	_, err := c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	require.ErrorIs(t, err, ErrRateLimited)

	status = http.StatusInternalServerError
	_, err = c.Quote(context.Background(), QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestClient_SwapTransaction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/swap", r.URL.Path)

		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `"Wallet111"`, string(req["userPublicKey"]))
		assert.JSONEq(t, quoteJSON, string(req["quoteResponse"]))
		assert.JSONEq(t, `true`, string(req["wrapAndUnwrapSol"]))

		w.Write([]byte(`{"swapTransaction":"AQID","lastValidBlockHeight":1234}`))
	})

	tx, err := c.SwapTransaction(context.Background(), &domain.Quote{Raw: json.RawMessage(quoteJSON)}, "Wallet111")
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)
}

func TestClient_SwapTransactionRequiresRawQuote(t *testing.T) {
	c := NewClient("http://unused")
	_, err := c.SwapTransaction(context.Background(), &domain.Quote{}, "Wallet111")
	assert.Error(t, err)
}

func TestClient_Token(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/" + domain.USDCMint:
			w.Write([]byte(`{"address":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","symbol":"USDC","name":"USD Coin","decimals":6}`))
		case "/token/nullmint":
			w.Write([]byte(`null`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	meta, err := c.Token(context.Background(), domain.USDCMint)
	require.NoError(t, err)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, "USD Coin", meta.Name)
	assert.Equal(t, 6, meta.Decimals)

	_, err = c.Token(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = c.Token(context.Background(), "nullmint")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestClient_RespectsCanceledContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithRateLimit(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Quote(ctx, QuoteRequest{InputMint: "a", OutputMint: "b", Amount: 1})
	assert.Error(t, err)
}
