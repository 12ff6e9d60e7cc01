// Package metadata resolves token symbols and names through a chain of
// sources, caching hits.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-swap-bot/internal/cache"
	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/observability"
)

// ErrNotFound is returned when no source knows the mint.
var ErrNotFound = errors.New("token metadata not found")

// DefaultCacheTTL is how long resolved metadata is cached.
const DefaultCacheTTL = 24 * time.Hour

// Source looks up metadata for one mint. Unknown mints return ErrNotFound.
type Source interface {
	Name() string
	Lookup(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// Resolver tries the cache, then each source in order. Misses are not
// cached so a token that gains metadata later is picked up.
type Resolver struct {
	cache   cache.Cache
	ttl     time.Duration
	sources []Source
	logger  *log.Logger
}

// NewResolver creates a resolver. A nil cache disables caching.
func NewResolver(c cache.Cache, ttl time.Duration, logger *log.Logger, sources ...Source) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{cache: c, ttl: ttl, sources: sources, logger: logger}
}

func cacheKey(mint string) string {
	return "token-metadata:" + mint
}

// Resolve returns metadata for mint or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, mint string) (domain.TokenMetadata, error) {
	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, cacheKey(mint)); err != nil {
			r.logger.Printf("metadata cache get failed: mint=%s err=%v", mint, err)
		} else if ok {
			var meta domain.TokenMetadata
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				observability.RecordMetadataLookup("cache_hit")
				return meta, nil
			}
		}
	}

	var errs []error
	for _, src := range r.sources {
		meta, err := src.Lookup(ctx, mint)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			}
			continue
		}
		if meta.Symbol == "" && meta.Name == "" {
			continue
		}
		r.store(ctx, *meta)
		observability.RecordMetadataLookup("resolved")
		return *meta, nil
	}

	if len(errs) > 0 {
		observability.RecordMetadataLookup("error")
		return domain.TokenMetadata{}, fmt.Errorf("%w: %s: %w", ErrNotFound, mint, errors.Join(errs...))
	}
	observability.RecordMetadataLookup("not_found")
	return domain.TokenMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, mint)
}

// ResolveOrSynthetic never fails: on any miss it returns the synthetic
// NEW_xxxxx placeholder. resolved is false in that case.
func (r *Resolver) ResolveOrSynthetic(ctx context.Context, mint string) (meta domain.TokenMetadata, resolved bool) {
	meta, err := r.Resolve(ctx, mint)
	if err != nil {
		r.logger.Printf("metadata unresolved, using placeholder: mint=%s err=%v", mint, err)
		return domain.SyntheticMetadata(mint), false
	}
	return meta, true
}

func (r *Resolver) store(ctx context.Context, meta domain.TokenMetadata) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(meta.Mint), string(raw), r.ttl); err != nil {
		r.logger.Printf("metadata cache set failed: mint=%s err=%v", meta.Mint, err)
	}
}
