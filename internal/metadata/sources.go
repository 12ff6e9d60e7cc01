package metadata

import (
	"context"
	"errors"
	"fmt"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/jupiter"
	"solana-swap-bot/internal/solana"
)

// TokenRegistry is the part of the Jupiter client used for lookups.
type TokenRegistry interface {
	Token(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// RegistrySource resolves from the Jupiter token registry.
type RegistrySource struct {
	registry TokenRegistry
}

// NewRegistrySource wraps a token registry.
func NewRegistrySource(registry TokenRegistry) *RegistrySource {
	return &RegistrySource{registry: registry}
}

// Name implements Source.
func (s *RegistrySource) Name() string { return "jupiter" }

// Lookup implements Source.
func (s *RegistrySource) Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	meta, err := s.registry.Token(ctx, mint)
	if errors.Is(err, jupiter.ErrTokenNotFound) {
		return nil, ErrNotFound
	}
	return meta, err
}

// AccountReader is the part of the RPC client used for on-chain lookups.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// OnChainSource reads the Metaplex metadata account and the mint account.
type OnChainSource struct {
	rpc AccountReader
}

// NewOnChainSource creates an on-chain source.
func NewOnChainSource(rpc AccountReader) *OnChainSource {
	return &OnChainSource{rpc: rpc}
}

// Name implements Source.
func (s *OnChainSource) Name() string { return "metaplex" }

// Lookup implements Source.
func (s *OnChainSource) Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	addr, err := solana.MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	info, err := s.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get metadata account: %w", err)
	}
	if info == nil {
		return nil, ErrNotFound
	}
	parsed, err := solana.ParseMetaplexMetadata(info.Data)
	if err != nil {
		return nil, fmt.Errorf("parse metadata account %s: %w", addr, err)
	}

	meta := &domain.TokenMetadata{
		Mint:     mint,
		Symbol:   parsed.Symbol,
		Name:     parsed.Name,
		Decimals: -1,
	}
	// Decimals are informational; failure to read them does not fail the lookup.
	if mintInfo, err := s.rpc.GetAccountInfo(ctx, mint); err == nil && mintInfo != nil {
		if dec, err := solana.ParseMintDecimals(mintInfo.Data); err == nil {
			meta.Decimals = dec
		}
	}
	return meta, nil
}
