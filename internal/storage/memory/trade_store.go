package memory

import (
	"context"
	"sort"
	"sync"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades []*domain.Trade
	byTx   map[string]struct{}
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{byTx: make(map[string]struct{})}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// SaveTrade appends a trade. Returns ErrDuplicateKey if tx_id exists.
func (s *TradeStore) SaveTrade(_ context.Context, t *domain.Trade) error {
	if err := storage.ValidateTrade(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTx[t.TxID]; exists {
		return storage.ErrDuplicateKey
	}
	tradeCopy := *t
	s.trades = append(s.trades, &tradeCopy)
	s.byTx[t.TxID] = struct{}{}
	return nil
}

// GetAllTrades retrieves all trades, newest first.
func (s *TradeStore) GetAllTrades(_ context.Context) ([]*domain.Trade, error) {
	return s.filter(func(*domain.Trade) bool { return true }), nil
}

// GetTradesForToken retrieves trades where mint is either leg, newest first.
func (s *TradeStore) GetTradesForToken(_ context.Context, mint string) ([]*domain.Trade, error) {
	return s.filter(func(t *domain.Trade) bool { return t.Involves(mint) }), nil
}

func (s *TradeStore) filter(keep func(*domain.Trade) bool) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Trade, 0, len(s.trades))
	for i := len(s.trades) - 1; i >= 0; i-- {
		if t := s.trades[i]; keep(t) {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	// Equal timestamps stay newest-inserted first.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp > result[j].Timestamp
	})
	return result
}
