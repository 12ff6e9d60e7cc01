// Package statusapi serves the bot's health, metrics, status and trade
// history over HTTP.
package statusapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/observability"
	"solana-swap-bot/internal/ratelimit"
	"solana-swap-bot/internal/storage"
	"solana-swap-bot/internal/trader"
)

// DefaultPruneInterval is how often idle rate-limit windows are dropped.
const DefaultPruneInterval = 5 * time.Minute

// Bot is the orchestrator surface the API reads.
type Bot interface {
	IsReady() bool
	Status() trader.Status
	RecentMarkets() []trader.RecentMarket
}

// Reader is the read side of the persistence layer.
type Reader interface {
	GetAllTrades(ctx context.Context) ([]*domain.Trade, error)
	GetTradesForToken(ctx context.Context, mint string) ([]*domain.Trade, error)
	GetAllTokens(ctx context.Context) ([]*domain.TokenInfo, error)
}

var _ Reader = (storage.Sink)(nil)

// Server routes status requests. Every route is rate limited per client IP.
type Server struct {
	bot     Bot
	store   Reader
	limiter *ratelimit.Limiter
	logger  *log.Logger
	router  http.Handler
}

// New builds the router. A nil limiter uses the default window.
func New(bot Bot, store Reader, limiter *ratelimit.Limiter, logger *log.Logger) *Server {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultWindow, ratelimit.DefaultMaxRequests)
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{bot: bot, store: store, limiter: limiter, logger: logger}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.limiter.Middleware(ratelimit.ClientIP, s.logger))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", observability.Handler())
	r.Get("/status", s.handleStatus)
	r.Get("/trades", s.handleTrades)
	r.Get("/trades/{mint}", s.handleTradesForToken)
	r.Get("/tokens", s.handleTokens)
	r.Get("/markets", s.handleMarkets)
	return r
}

// RunJanitor prunes idle rate-limit windows until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(); n > 0 {
				s.logger.Printf("pruned %d idle rate limit windows", n)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.bot.IsReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.bot.Status()
	resp := struct {
		trader.Status
		Uptime string `json:"uptime"`
	}{Status: st}
	if !st.StartedAt.IsZero() {
		resp.Uptime = time.Since(st.StartedAt).Round(time.Second).String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// TradeView is the JSON form of a trade.
type TradeView struct {
	TxID         string  `json:"txId"`
	InputMint    string  `json:"inputMint"`
	OutputMint   string  `json:"outputMint"`
	InputAmount  uint64  `json:"inputAmount"`
	OutputAmount uint64  `json:"outputAmount"`
	Price        float64 `json:"price"`
	Timestamp    int64   `json:"timestamp"`
	Source       string  `json:"source"`
}

func tradeViews(trades []*domain.Trade) []TradeView {
	out := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		out = append(out, TradeView{
			TxID:         t.TxID,
			InputMint:    t.InputMint,
			OutputMint:   t.OutputMint,
			InputAmount:  t.InputAmount,
			OutputAmount: t.OutputAmount,
			Price:        t.Price,
			Timestamp:    t.Timestamp,
			Source:       t.Source.String(),
		})
	}
	return out
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.GetAllTrades(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tradeViews(trades))
}

func (s *Server) handleTradesForToken(w http.ResponseWriter, r *http.Request) {
	mint := strings.TrimSpace(chi.URLParam(r, "mint"))
	if mint == "" {
		http.Error(w, "mint is required", http.StatusBadRequest)
		return
	}
	trades, err := s.store.GetTradesForToken(r.Context(), mint)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tradeViews(trades))
}

// TokenView is the JSON form of a token.
type TokenView struct {
	Address   string  `json:"address"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Volume24h float64 `json:"volume24h"`
	Change24h float64 `json:"change24h"`
	FirstSeen int64   `json:"firstSeen"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.store.GetAllTokens(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]TokenView, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, TokenView(*t))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.bot.RecentMarkets())
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Printf("status api: %s %s: %v", r.Method, r.URL.Path, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("status api: encode response: %v", err)
	}
}
