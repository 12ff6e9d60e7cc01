package discovery

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/mr-tron/base58"

	"solana-swap-bot/internal/domain"
	"solana-swap-bot/internal/solana"
)

// RaydiumAMMV4 is the Raydium AMM v4 program ID.
const RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// AMM v4 pool account layout.
const (
	raydiumPoolSize = 752

	// The slice covers baseVault, quoteVault, baseMint, quoteMint, lpMint.
	raydiumSliceOffset = 336
	raydiumSliceLength = 5 * 32

	sliceBaseVault  = 0
	sliceQuoteVault = 32
	sliceBaseMint   = 64
	sliceQuoteMint  = 96
	sliceLPMint     = 128
)

// ProgramAccountLister is the subset of solana.RPCClient used by the source.
type ProgramAccountLister interface {
	GetProgramAccounts(ctx context.Context, program string, opts *solana.ProgramAccountsOpts) ([]solana.ProgramAccount, error)
}

// RaydiumOptions configures RaydiumPoolSource.
type RaydiumOptions struct {
	ProgramID string      // default RaydiumAMMV4
	MaxPools  int         // 0 = unlimited; excess accounts are dropped
	Logger    *log.Logger // nil uses log.Default()
}

// RaydiumPoolSource lists AMM v4 pools with a single sliced
// getProgramAccounts call.
type RaydiumPoolSource struct {
	rpc       ProgramAccountLister
	programID string
	maxPools  int
	logger    *log.Logger
}

var _ PoolSource = (*RaydiumPoolSource)(nil)

// NewRaydiumPoolSource creates a pool source backed by rpc.
func NewRaydiumPoolSource(rpc ProgramAccountLister, opts RaydiumOptions) *RaydiumPoolSource {
	if opts.ProgramID == "" {
		opts.ProgramID = RaydiumAMMV4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &RaydiumPoolSource{
		rpc:       rpc,
		programID: opts.ProgramID,
		maxPools:  opts.MaxPools,
		logger:    opts.Logger,
	}
}

// ListPools returns every decodable pool. Accounts whose slice is malformed
// or whose mints are unset are skipped.
func (s *RaydiumPoolSource) ListPools(ctx context.Context) ([]domain.Pool, error) {
	accounts, err := s.rpc.GetProgramAccounts(ctx, s.programID, &solana.ProgramAccountsOpts{
		DataSize:  raydiumPoolSize,
		DataSlice: &solana.DataSlice{Offset: raydiumSliceOffset, Length: raydiumSliceLength},
	})
	if err != nil {
		return nil, fmt.Errorf("list raydium pools: %w", err)
	}

	if s.maxPools > 0 && len(accounts) > s.maxPools {
		s.logger.Printf("raydium pools truncated: got=%d max=%d", len(accounts), s.maxPools)
		accounts = accounts[:s.maxPools]
	}

	pools := make([]domain.Pool, 0, len(accounts))
	skipped := 0
	for _, acc := range accounts {
		pool, err := DecodeRaydiumPool(acc.Pubkey, acc.Account.Data)
		if err != nil {
			skipped++
			continue
		}
		pools = append(pools, pool)
	}
	if skipped > 0 {
		s.logger.Printf("raydium pools skipped: count=%d", skipped)
	}
	return pools, nil
}

var zeroKey [32]byte

// DecodeRaydiumPool decodes the base64 160-byte slice of a pool account.
func DecodeRaydiumPool(address, dataB64 string) (domain.Pool, error) {
	data, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("decode pool %s data: %w", address, err)
	}
	if len(data) != raydiumSliceLength {
		return domain.Pool{}, fmt.Errorf("pool %s: slice length %d, want %d", address, len(data), raydiumSliceLength)
	}

	key := func(off int) string { return base58.Encode(data[off : off+32]) }
	isZero := func(off int) bool { return [32]byte(data[off:off+32]) == zeroKey }

	if isZero(sliceBaseMint) || isZero(sliceQuoteMint) {
		return domain.Pool{}, fmt.Errorf("pool %s: uninitialised mints", address)
	}

	return domain.NewPool(
		address,
		key(sliceBaseMint),
		key(sliceQuoteMint),
		key(sliceLPMint),
		key(sliceBaseVault),
		key(sliceQuoteVault),
	), nil
}
