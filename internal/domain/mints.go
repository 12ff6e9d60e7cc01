package domain

import "github.com/shopspring/decimal"

// Well-known mints.
const (
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	USDCMint       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// SwapToken selects the input side of the steady-state pair.
type SwapToken int

const (
	SwapTokenSOL SwapToken = iota
	SwapTokenUSDC
)

// ParseSwapToken accepts "SOL" or "USDC".
func ParseSwapToken(s string) (SwapToken, bool) {
	switch s {
	case "SOL", "sol":
		return SwapTokenSOL, true
	case "USDC", "usdc":
		return SwapTokenUSDC, true
	}
	return 0, false
}

// Mint returns the mint address for the token.
func (t SwapToken) Mint() string {
	if t == SwapTokenUSDC {
		return USDCMint
	}
	return WrappedSOLMint
}

// Other returns the opposite leg of the SOL/USDC pair.
func (t SwapToken) Other() SwapToken {
	if t == SwapTokenUSDC {
		return SwapTokenSOL
	}
	return SwapTokenUSDC
}

// String returns the ticker.
func (t SwapToken) String() string {
	if t == SwapTokenUSDC {
		return "USDC"
	}
	return "SOL"
}

// KnownDecimals returns decimals for mints the bot knows without a lookup.
func KnownDecimals(mint string) (int32, bool) {
	switch mint {
	case WrappedSOLMint:
		return 9, true
	case USDCMint:
		return 6, true
	}
	return 0, false
}

// LamportsToSOL converts lamports into a SOL-denominated decimal.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}
