package domain

// Pool is a liquidity pool observed on the AMM program.
// Immutable once observed; keyed by Address in the poller's known set.
type Pool struct {
	Address          string // pool (AMM ID) account address
	BaseMint         string // base leg mint
	QuoteMint        string // quote leg mint
	LPMint           string // LP token mint
	BaseVault        string // token account holding the base leg
	QuoteVault       string // token account holding the quote leg
	IsBaseReference  bool   // base leg is wrapped SOL
	IsQuoteReference bool   // quote leg is wrapped SOL
}

// NewPool builds a Pool and derives the reference-leg flags from the mints.
func NewPool(address, baseMint, quoteMint, lpMint, baseVault, quoteVault string) Pool {
	return Pool{
		Address:          address,
		BaseMint:         baseMint,
		QuoteMint:        quoteMint,
		LPMint:           lpMint,
		BaseVault:        baseVault,
		QuoteVault:       quoteVault,
		IsBaseReference:  baseMint == WrappedSOLMint,
		IsQuoteReference: quoteMint == WrappedSOLMint,
	}
}

// NewToken returns the non-reference leg and the vault holding the reference
// leg. ok is false when neither leg is wrapped SOL.
func (p Pool) NewToken() (mint, referenceVault string, ok bool) {
	switch {
	case p.IsQuoteReference:
		return p.BaseMint, p.QuoteVault, true
	case p.IsBaseReference:
		return p.QuoteMint, p.BaseVault, true
	default:
		return "", "", false
	}
}
