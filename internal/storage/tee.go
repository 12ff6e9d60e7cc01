package storage

import (
	"context"
	"log"

	"solana-swap-bot/internal/domain"
)

// TeeTradeStore writes trades to a primary store and mirrors them to an
// analytics store. Reads are served by the primary. Mirror failures are
// logged and never fail the write.
type TeeTradeStore struct {
	TradeStore
	mirror TradeStore
	logger *log.Logger
}

var _ TradeStore = (*TeeTradeStore)(nil)

// NewTeeTradeStore creates a mirroring trade store.
func NewTeeTradeStore(primary, mirror TradeStore, logger *log.Logger) *TeeTradeStore {
	if logger == nil {
		logger = log.Default()
	}
	return &TeeTradeStore{TradeStore: primary, mirror: mirror, logger: logger}
}

// SaveTrade saves to the primary, then best-effort to the mirror.
func (s *TeeTradeStore) SaveTrade(ctx context.Context, t *domain.Trade) error {
	if err := s.TradeStore.SaveTrade(ctx, t); err != nil {
		return err
	}
	if err := s.mirror.SaveTrade(ctx, t); err != nil {
		s.logger.Printf("mirror trade failed: tx=%s err=%v", t.TxID, err)
	}
	return nil
}

// CombinedSink joins separate trade and token stores into a Sink.
type CombinedSink struct {
	TradeStore
	TokenStore
}

var _ Sink = CombinedSink{}
