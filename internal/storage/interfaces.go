package storage

import (
	"context"

	"solana-swap-bot/internal/domain"
)

// TradeStore provides access to executed trades.
type TradeStore interface {
	// SaveTrade appends a trade. Returns ErrDuplicateKey if tx_id exists.
	SaveTrade(ctx context.Context, t *domain.Trade) error

	// GetAllTrades retrieves all trades, newest first.
	GetAllTrades(ctx context.Context) ([]*domain.Trade, error)

	// GetTradesForToken retrieves trades where mint is either leg, newest first.
	GetTradesForToken(ctx context.Context, mint string) ([]*domain.Trade, error)
}

// TokenStore provides access to tokens seen by the market poller.
type TokenStore interface {
	// SaveToken inserts or updates a token keyed by address. An existing
	// token keeps its original first_seen.
	SaveToken(ctx context.Context, t *domain.TokenInfo) error

	// GetToken retrieves a token by address. Returns ErrNotFound if not exists.
	GetToken(ctx context.Context, address string) (*domain.TokenInfo, error)

	// GetAllTokens retrieves all tokens, most recently first seen first.
	GetAllTokens(ctx context.Context) ([]*domain.TokenInfo, error)
}

// Sink is the persistence collaborator of the trading orchestrator.
type Sink interface {
	TradeStore
	TokenStore
}

// ValidateTrade checks the fields every store requires.
func ValidateTrade(t *domain.Trade) error {
	if t == nil || t.TxID == "" || t.InputMint == "" || t.OutputMint == "" {
		return ErrInvalidInput
	}
	return nil
}

// ValidateToken checks the fields every store requires.
func ValidateToken(t *domain.TokenInfo) error {
	if t == nil || t.Address == "" {
		return ErrInvalidInput
	}
	return nil
}
