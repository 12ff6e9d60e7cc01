package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// SaveToken upserts a token by address. first_seen keeps the earliest value.
func (s *TokenStore) SaveToken(ctx context.Context, t *domain.TokenInfo) error {
	if err := storage.ValidateToken(t); err != nil {
		return err
	}

	query := `
		INSERT INTO tokens (
			address, symbol, name, price, volume_24h, change_24h, first_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE SET
			symbol     = EXCLUDED.symbol,
			name       = EXCLUDED.name,
			price      = EXCLUDED.price,
			volume_24h = EXCLUDED.volume_24h,
			change_24h = EXCLUDED.change_24h,
			first_seen = LEAST(tokens.first_seen, EXCLUDED.first_seen),
			updated_at = now()
	`

	_, err := s.pool.Exec(ctx, query,
		t.Address,
		t.Symbol,
		t.Name,
		t.Price,
		t.Volume24h,
		t.Change24h,
		t.FirstSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

// GetToken retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetToken(ctx context.Context, address string) (*domain.TokenInfo, error) {
	query := `
		SELECT address, symbol, name, price, volume_24h, change_24h, first_seen
		FROM tokens
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		return nil, mapError("get token", err)
	}
	return t, nil
}

// GetAllTokens retrieves all tokens, most recently first seen first.
func (s *TokenStore) GetAllTokens(ctx context.Context) ([]*domain.TokenInfo, error) {
	query := `
		SELECT address, symbol, name, price, volume_24h, change_24h, first_seen
		FROM tokens
		ORDER BY first_seen DESC, address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenInfo
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

func scanToken(row pgx.Row) (*domain.TokenInfo, error) {
	var t domain.TokenInfo
	err := row.Scan(
		&t.Address,
		&t.Symbol,
		&t.Name,
		&t.Price,
		&t.Volume24h,
		&t.Change24h,
		&t.FirstSeen,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Sink is the PostgreSQL-backed storage.Sink.
type Sink struct {
	*TradeStore
	*TokenStore
}

// NewSink creates trade and token stores sharing pool.
func NewSink(pool *Pool) *Sink {
	return &Sink{TradeStore: NewTradeStore(pool), TokenStore: NewTokenStore(pool)}
}

var _ storage.Sink = (*Sink)(nil)
