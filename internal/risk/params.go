// Package risk gates trades against size, volume, exposure, liquidity and
// cooldown limits.
package risk

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Params are the gate's limits. Amounts are SOL-denominated.
type Params struct {
	MaxTradeAmount      decimal.Decimal
	MaxDailyVolume      decimal.Decimal
	MaxExposurePerAsset decimal.Decimal
	StopLossPct         decimal.Decimal // fraction, 0.05 = 5%
	TakeProfitPct       decimal.Decimal // fraction
	MaxSlippage         decimal.Decimal // fraction
	MinLiquidity        decimal.Decimal
	Cooldown            time.Duration
}

// DefaultParams returns conservative defaults.
func DefaultParams() Params {
	return Params{
		MaxTradeAmount:      decimal.RequireFromString("0.1"),
		MaxDailyVolume:      decimal.NewFromInt(1),
		MaxExposurePerAsset: decimal.RequireFromString("0.2"),
		StopLossPct:         decimal.RequireFromString("0.05"),
		TakeProfitPct:       decimal.RequireFromString("0.1"),
		MaxSlippage:         decimal.RequireFromString("0.01"),
		MinLiquidity:        decimal.NewFromInt(1),
		Cooldown:            60 * time.Second,
	}
}

// Validate checks that every limit is usable.
func (p Params) Validate() error {
	var errs []error
	nonNeg := func(name string, v decimal.Decimal) {
		if v.IsNegative() {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %s", name, v))
		}
	}
	if !p.MaxTradeAmount.IsPositive() {
		errs = append(errs, fmt.Errorf("max trade amount must be > 0, got %s", p.MaxTradeAmount))
	}
	if !p.MaxDailyVolume.IsPositive() {
		errs = append(errs, fmt.Errorf("max daily volume must be > 0, got %s", p.MaxDailyVolume))
	}
	nonNeg("max exposure per asset", p.MaxExposurePerAsset)
	nonNeg("min liquidity", p.MinLiquidity)
	nonNeg("max slippage", p.MaxSlippage)
	if p.StopLossPct.IsNegative() || p.StopLossPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("stop loss must be in [0, 1), got %s", p.StopLossPct))
	}
	nonNeg("take profit", p.TakeProfitPct)
	if p.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must be >= 0, got %s", p.Cooldown))
	}
	return errors.Join(errs...)
}
