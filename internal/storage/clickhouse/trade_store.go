package clickhouse

import (
	"context"
	"fmt"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/storage"
)

// TradeStore implements storage.TradeStore using ClickHouse. It is the
// analytics mirror of the PostgreSQL trade log.
type TradeStore struct {
	conn *Conn
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn) *TradeStore {
	return &TradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// SaveTrade appends a trade. MergeTree does not enforce keys, so the
// duplicate check is an explicit count before insert.
func (s *TradeStore) SaveTrade(ctx context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	exists, err := s.exists(ctx, t.TxID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trades (
			tx_id, input_mint, output_mint, input_amount, output_amount,
			price, timestamp_ms, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		t.TxID, t.InputMint, t.OutputMint, t.InputAmount, t.OutputAmount,
		t.Price, uint64(t.Timestamp), string(t.Source),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetAllTrades retrieves all trades, newest first.
func (s *TradeStore) GetAllTrades(ctx context.Context) ([]*domain.Trade, error) {
	query := `
		SELECT tx_id, input_mint, output_mint, input_amount, output_amount,
			price, timestamp_ms, source
		FROM trades FINAL
		ORDER BY timestamp_ms DESC, tx_id ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetTradesForToken retrieves trades where mint is either leg, newest first.
func (s *TradeStore) GetTradesForToken(ctx context.Context, mint string) ([]*domain.Trade, error) {
	query := `
		SELECT tx_id, input_mint, output_mint, input_amount, output_amount,
			price, timestamp_ms, source
		FROM trades FINAL
		WHERE input_mint = ? OR output_mint = ?
		ORDER BY timestamp_ms DESC, tx_id ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, mint)
	if err != nil {
		return nil, fmt.Errorf("query trades for token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *TradeStore) exists(ctx context.Context, txID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM trades WHERE tx_id = ?`, txID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTrades(rows chRows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		var (
			t           domain.Trade
			timestampMs uint64
			source      string
		)
		err := rows.Scan(
			&t.TxID, &t.InputMint, &t.OutputMint, &t.InputAmount, &t.OutputAmount,
			&t.Price, &timestampMs, &source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Timestamp = int64(timestampMs)
		t.Source = domain.TradeSource(source)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
