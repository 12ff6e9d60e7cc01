package domain

// TradeSource identifies which execution path produced a trade.
type TradeSource string

const (
	TradeSourceSteadyState TradeSource = "STEADY_STATE"
	TradeSourceAutoBuy     TradeSource = "AUTO_BUY"
)

// String returns the string representation of TradeSource.
func (s TradeSource) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s TradeSource) IsValid() bool {
	return s == TradeSourceSteadyState || s == TradeSourceAutoBuy
}
