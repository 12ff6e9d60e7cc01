package domain

import "encoding/json"

// Quote is a routing quote for swapping InAmount of InputMint into OutputMint.
type Quote struct {
	InputMint    string
	OutputMint   string
	InAmount     uint64
	OutAmount    uint64
	MinOutAmount uint64 // slippage-adjusted threshold
	SwapMode     string
	SlippageBps  int

	// Raw is the provider's quote response, echoed back when requesting the
	// swap transaction.
	Raw json.RawMessage
}
