package domain

// TokenInfo is a token seen by the bot, saved when its pool is first detected.
// Corresponds to tokens table in PostgreSQL.
type TokenInfo struct {
	Address   string  // token mint address, PRIMARY KEY
	Symbol    string  // ticker, synthetic NEW_xxxxx when unresolved
	Name      string  // display name
	Price     float64 // last known price (0 if unknown)
	Volume24h float64 // 24h volume (0 if unknown)
	Change24h float64 // 24h change percent (0 if unknown)
	FirstSeen int64   // Unix timestamp in milliseconds
}

// TokenMetadata is the resolved descriptive data for a mint.
type TokenMetadata struct {
	Mint     string
	Symbol   string
	Name     string
	Decimals int // -1 when unknown
}

// SyntheticMetadata builds the placeholder used when no metadata source knows the mint.
func SyntheticMetadata(mint string) TokenMetadata {
	short := mint
	if len(short) > 5 {
		short = short[:5]
	}
	return TokenMetadata{
		Mint:     mint,
		Symbol:   "NEW_" + short,
		Name:     "New Token " + short,
		Decimals: -1,
	}
}
