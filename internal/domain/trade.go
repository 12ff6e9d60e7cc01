package domain

// Trade is an executed, confirmed swap.
// Corresponds to trades table in PostgreSQL and ClickHouse.
type Trade struct {
	TxID         string      // transaction signature, unique
	InputMint    string      // asset sold
	OutputMint   string      // asset bought
	InputAmount  uint64      // base units sold
	OutputAmount uint64      // base units received (quoted)
	Price        float64     // OutputAmount / InputAmount
	Timestamp    int64       // Unix timestamp in milliseconds
	Source       TradeSource // STEADY_STATE | AUTO_BUY
}

// TradePrice returns out/in, or 0 when nothing was sold.
func TradePrice(in, out uint64) float64 {
	if in == 0 {
		return 0
	}
	return float64(out) / float64(in)
}

// Involves reports whether mint is either leg of the trade.
func (t Trade) Involves(mint string) bool {
	return t.InputMint == mint || t.OutputMint == mint
}
