package trader

import (
	"time"

	"solana-swap-bot/internal/breaker"
	"solana-swap-bot/internal/risk"
)

// BreakerStatus is a breaker's externally visible state.
type BreakerStatus struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// RiskStatus is the risk gate's bookkeeping in display form.
type RiskStatus struct {
	DailyVolume string            `json:"dailyVolume"`
	Exposure    map[string]string `json:"exposure"`
	LastTrade   map[string]int64  `json:"lastTrade"` // Unix ms
	LastReset   time.Time         `json:"lastReset"`
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Ready            bool                     `json:"ready"`
	Running          bool                     `json:"running"`
	SwapLoopRunning  bool                     `json:"swapLoopRunning"`
	MarketsListening bool                     `json:"marketsListening"`
	KnownPools       int                      `json:"knownPools"`
	RecentMarkets    int                      `json:"recentMarkets"`
	Wallet           string                   `json:"wallet"`
	Pair             string                   `json:"pair"`
	StartedAt        time.Time                `json:"startedAt"`
	Breakers         map[string]BreakerStatus `json:"breakers"`
	RateLimit        map[string]int           `json:"rateLimitRemaining"`
	Risk             RiskStatus               `json:"risk"`
}

// Status reports the orchestrator's current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	running, loopRunning := o.running, o.loopRunning
	o.mu.Unlock()

	s := Status{
		Ready:           o.IsReady(),
		Running:         running,
		SwapLoopRunning: loopRunning,
		Wallet:          o.wallet.PublicKey(),
		Pair:            o.opts.InputToken.String() + "->" + o.opts.InputToken.Other().String(),
		StartedAt:       o.startedAt,
		Breakers: map[string]BreakerStatus{
			o.jupiterBreaker.Name(): breakerStatus(o.jupiterBreaker),
			o.rpcBreaker.Name():     breakerStatus(o.rpcBreaker),
		},
		RateLimit: map[string]int{
			KeyQuote: o.limiter.Remaining(KeyQuote),
			KeySwap:  o.limiter.Remaining(KeySwap),
		},
		Risk: riskStatus(o.risk.Snapshot()),
	}
	if o.poller != nil {
		s.MarketsListening = o.poller.Listening()
		s.KnownPools = o.poller.KnownCount()
	}
	o.marketsMu.Lock()
	s.RecentMarkets = len(o.recentMarkets)
	o.marketsMu.Unlock()
	return s
}

func breakerStatus(b *breaker.Breaker) BreakerStatus {
	return BreakerStatus{State: b.State().String(), Failures: b.Failures()}
}

func riskStatus(st risk.State) RiskStatus {
	out := RiskStatus{
		DailyVolume: st.DailyVolume.String(),
		Exposure:    make(map[string]string, len(st.Exposure)),
		LastTrade:   make(map[string]int64, len(st.LastTrade)),
		LastReset:   st.LastReset,
	}
	for k, v := range st.Exposure {
		out.Exposure[k] = v.String()
	}
	for k, v := range st.LastTrade {
		out.LastTrade[k] = v.UnixMilli()
	}
	return out
}
