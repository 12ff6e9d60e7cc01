package risk

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Denial codes, stable for metrics labels.
const (
	CodeTradeSize   = "trade_size"
	CodeDailyVolume = "daily_volume"
	CodeExposure    = "exposure"
	CodeLiquidity   = "liquidity"
	CodeCooldown    = "cooldown"
)

// Decision is the outcome of a pre-trade check.
type Decision struct {
	Allowed bool
	Reason  string // human-readable, empty when allowed
	Code    string // one of the Code* constants, empty when allowed
}

// State is the gate's mutable bookkeeping.
type State struct {
	DailyVolume decimal.Decimal
	Exposure    map[string]decimal.Decimal
	LastTrade   map[string]time.Time
	LastReset   time.Time
}

func newState(now time.Time) *State {
	return &State{
		DailyVolume: decimal.Zero,
		Exposure:    make(map[string]decimal.Decimal),
		LastTrade:   make(map[string]time.Time),
		LastReset:   now,
	}
}

func (s *State) clone() State {
	out := State{
		DailyVolume: s.DailyVolume,
		Exposure:    make(map[string]decimal.Decimal, len(s.Exposure)),
		LastTrade:   make(map[string]time.Time, len(s.LastTrade)),
		LastReset:   s.LastReset,
	}
	for k, v := range s.Exposure {
		out.Exposure[k] = v
	}
	for k, v := range s.LastTrade {
		out.LastTrade[k] = v
	}
	return out
}

// Gate evaluates trades against Params and tracks what has been traded.
// Exposure and cooldown bookkeeping never expire; only daily volume resets.
type Gate struct {
	mu       sync.Mutex
	params   Params
	state    *State
	clockNow func() time.Time
	logger   *log.Logger

	// Amounts held by open reservations.
	pendingVolume   decimal.Decimal
	pendingExposure map[string]decimal.Decimal
	pendingAssets   map[string]int
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.clockNow = now
	}
}

// WithLogger sets the logger used by the daily reset loop.
func WithLogger(logger *log.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a gate with empty state.
func NewGate(params Params, opts ...Option) *Gate {
	g := &Gate{
		params:          params,
		clockNow:        time.Now,
		pendingVolume:   decimal.Zero,
		pendingExposure: make(map[string]decimal.Decimal),
		pendingAssets:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	g.state = newState(g.clockNow())
	return g
}

// CanTrade checks a prospective trade of amount (SOL) into asset given the
// pool's liquidity (SOL). Checks run in a fixed order and the first failure
// is reported. State is not modified. Amounts held by open reservations
// count toward the volume and exposure limits.
func (g *Gate) CanTrade(asset string, amount, liquidity decimal.Decimal) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked(asset, amount, liquidity)
}

func (g *Gate) checkLocked(asset string, amount, liquidity decimal.Decimal) Decision {
	p := g.params
	if amount.GreaterThan(p.MaxTradeAmount) {
		return deny(CodeTradeSize, "trade amount %s exceeds maximum %s", amount, p.MaxTradeAmount)
	}
	volume := g.state.DailyVolume.Add(g.pendingVolume)
	if volume.Add(amount).GreaterThan(p.MaxDailyVolume) {
		return deny(CodeDailyVolume, "daily volume limit exceeded: %s + %s > %s", volume, amount, p.MaxDailyVolume)
	}
	exposure := g.state.Exposure[asset].Add(g.pendingExposure[asset])
	if exposure.Add(amount).GreaterThan(p.MaxExposurePerAsset) {
		return deny(CodeExposure, "exposure limit exceeded for %s: %s + %s > %s", asset, exposure, amount, p.MaxExposurePerAsset)
	}
	if liquidity.LessThan(p.MinLiquidity) {
		return deny(CodeLiquidity, "insufficient liquidity: %s < %s", liquidity, p.MinLiquidity)
	}
	if g.pendingAssets[asset] > 0 && p.Cooldown > 0 {
		return deny(CodeCooldown, "cooldown not elapsed for %s: trade in flight", asset)
	}
	if last, ok := g.state.LastTrade[asset]; ok {
		if elapsed := g.clockNow().Sub(last); elapsed < p.Cooldown {
			return deny(CodeCooldown, "cooldown not elapsed for %s: %s remaining", asset, (p.Cooldown - elapsed).Round(time.Second))
		}
	}
	return Decision{Allowed: true}
}

// Reservation holds an admitted trade's amount against the limits until it
// is committed or released. Exactly one of Commit or Release takes effect;
// later calls are no-ops.
type Reservation struct {
	gate   *Gate
	asset  string
	amount decimal.Decimal
	done   bool // guarded by gate.mu
}

// Reserve runs the same checks as CanTrade and, when allowed, holds amount
// so concurrent callers see it before the trade is recorded. The
// reservation is nil when the decision is a denial.
func (g *Gate) Reserve(asset string, amount, liquidity decimal.Decimal) (Decision, *Reservation) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.checkLocked(asset, amount, liquidity)
	if !d.Allowed {
		return d, nil
	}
	g.pendingVolume = g.pendingVolume.Add(amount)
	g.pendingExposure[asset] = g.pendingExposure[asset].Add(amount)
	g.pendingAssets[asset]++
	return d, &Reservation{gate: g, asset: asset, amount: amount}
}

// Commit records the reserved trade as executed.
func (r *Reservation) Commit() {
	g := r.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	g.releaseLocked(r)
	g.recordLocked(r.asset, r.amount)
}

// Release drops the reservation without recording a trade.
func (r *Reservation) Release() {
	g := r.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	g.releaseLocked(r)
}

func (g *Gate) releaseLocked(r *Reservation) {
	g.pendingVolume = g.pendingVolume.Sub(r.amount)
	if e := g.pendingExposure[r.asset].Sub(r.amount); e.IsZero() {
		delete(g.pendingExposure, r.asset)
	} else {
		g.pendingExposure[r.asset] = e
	}
	g.pendingAssets[r.asset]--
	if g.pendingAssets[r.asset] <= 0 {
		delete(g.pendingAssets, r.asset)
	}
}

// RecordTrade accounts for an executed trade. It is separate from CanTrade
// so callers record only trades that actually happened.
func (g *Gate) RecordTrade(asset string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recordLocked(asset, amount)
}

func (g *Gate) recordLocked(asset string, amount decimal.Decimal) {
	g.state.DailyVolume = g.state.DailyVolume.Add(amount)
	g.state.Exposure[asset] = g.state.Exposure[asset].Add(amount)
	g.state.LastTrade[asset] = g.clockNow()
}

// StopLoss returns the exit price below entry.
func (g *Gate) StopLoss(entry decimal.Decimal) decimal.Decimal {
	g.mu.Lock()
	pct := g.params.StopLossPct
	g.mu.Unlock()
	return entry.Mul(decimal.NewFromInt(1).Sub(pct))
}

// TakeProfit returns the exit price above entry.
func (g *Gate) TakeProfit(entry decimal.Decimal) decimal.Decimal {
	g.mu.Lock()
	pct := g.params.TakeProfitPct
	g.mu.Unlock()
	return entry.Mul(decimal.NewFromInt(1).Add(pct))
}

// ResetDaily zeroes the daily volume.
func (g *Gate) ResetDaily() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.DailyVolume = decimal.Zero
	g.state.LastReset = g.clockNow()
}

// UpdateParams applies fn to the current limits.
func (g *Gate) UpdateParams(fn func(*Params)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.params)
}

// Params returns a copy of the current limits.
func (g *Gate) Params() Params {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params
}

// Snapshot returns a copy of the current state.
func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.clone()
}

// RunDailyReset resets daily volume at every local midnight until ctx is done.
func (g *Gate) RunDailyReset(ctx context.Context) {
	for {
		now := g.clockNow()
		timer := time.NewTimer(NextMidnight(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			g.ResetDaily()
			g.logger.Printf("daily volume reset")
		}
	}
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}
