package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// SaveTrade appends a trade. Returns ErrDuplicateKey if tx_id exists.
// Amounts are written as text into NUMERIC(20,0) so the full uint64 range survives.
func (s *TradeStore) SaveTrade(ctx context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	query := `
		INSERT INTO trades (
			tx_id, input_mint, output_mint, input_amount, output_amount,
			price, timestamp_ms, source
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TxID,
		t.InputMint,
		t.OutputMint,
		strconv.FormatUint(t.InputAmount, 10),
		strconv.FormatUint(t.OutputAmount, 10),
		t.Price,
		t.Timestamp,
		string(t.Source),
	)
	if err != nil {
		return mapError("insert trade", err)
	}
	return nil
}

// GetAllTrades retrieves all trades, newest first.
func (s *TradeStore) GetAllTrades(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT tx_id, input_mint, output_mint, input_amount::text, output_amount::text,
			price, timestamp_ms, source
		FROM trades
		ORDER BY timestamp_ms DESC, created_at DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetTradesForToken retrieves trades where mint is either leg, newest first.
func (s *TradeStore) GetTradesForToken(ctx context.Context, mint string) ([]*domain.Trade, error) {
	query := `
		SELECT tx_id, input_mint, output_mint, input_amount::text, output_amount::text,
			price, timestamp_ms, source
		FROM trades
		WHERE input_mint = $1 OR output_mint = $1
		ORDER BY timestamp_ms DESC, created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query trades for token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t         domain.Trade
		inAmount  string
		outAmount string
		source    string
	)

	err := row.Scan(
		&t.TxID,
		&t.InputMint,
		&t.OutputMint,
		&inAmount,
		&outAmount,
		&t.Price,
		&t.Timestamp,
		&source,
	)
	if err != nil {
		return nil, err
	}

	if t.InputAmount, err = strconv.ParseUint(inAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("parse input_amount %q: %w", inAmount, err)
	}
	if t.OutputAmount, err = strconv.ParseUint(outAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("parse output_amount %q: %w", outAmount, err)
	}
	t.Source = domain.TradeSource(source)

	return &t, nil
}

// scanTrades scans multiple rows into Trade slice.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
