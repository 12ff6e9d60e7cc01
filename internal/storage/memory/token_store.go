package memory

import (
	"context"
	"sort"
	"sync"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*domain.TokenInfo
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*domain.TokenInfo)}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// SaveToken inserts or updates a token, keeping the earliest FirstSeen.
func (s *TokenStore) SaveToken(_ context.Context, t *domain.TokenInfo) error {
	if err := storage.ValidateToken(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCopy := *t
	if existing, ok := s.tokens[t.Address]; ok && existing.FirstSeen != 0 && existing.FirstSeen < tokenCopy.FirstSeen {
		tokenCopy.FirstSeen = existing.FirstSeen
	}
	s.tokens[t.Address] = &tokenCopy
	return nil
}

// GetToken retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetToken(_ context.Context, address string) (*domain.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// GetAllTokens retrieves all tokens, most recently first seen first.
func (s *TokenStore) GetAllTokens(_ context.Context) ([]*domain.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenInfo, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FirstSeen != result[j].FirstSeen {
			return result[i].FirstSeen > result[j].FirstSeen
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// Sink combines the in-memory trade and token stores.
type Sink struct {
	*TradeStore
	*TokenStore
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{TradeStore: NewTradeStore(), TokenStore: NewTokenStore()}
}

var _ storage.Sink = (*Sink)(nil)
