// Package strategy dry-runs ladder strategies against current market
// conditions without touching the chain: it prices the levels, the
// per-level margin and the projected fees the strategy would post.
package strategy

import (
	"fmt"
	"math"

	"perplbot/pkg/indicator"
	"perplbot/pkg/types"
)

type Name string

const (
	Grid = Name("grid")
	MM   = Name("mm")
)

// Params tune a simulation; zero values fall back to defaults. Grid levels,
// spacing and the ATR window default to fixed constants; only the mm spread
// is derived from market conditions (the recent candles).
type Params struct {
	Levels     int     `json:"levels,omitempty"`      // grid rungs per side
	SpacingPct float64 `json:"spacing_pct,omitempty"` // grid rung spacing
	SpreadPct  float64 `json:"spread_pct,omitempty"`  // mm half-spread
	AtrWindow  int     `json:"atr_window,omitempty"`  // mm spread sizing window
}

type Input struct {
	Symbol      string
	MidPrice    float64
	Size        float64 // total display size committed
	Leverage    float64
	MakerFeePct float64
	Candles     []types.Candle // recent window for volatility sizing
}

type Level struct {
	Side      string  `json:"side"` // buy | sell
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
	MarginUSD float64 `json:"margin_usd"`
}

type Result struct {
	Strategy       Name    `json:"strategy"`
	Levels         []Level `json:"levels"`
	TotalMarginUSD float64 `json:"total_margin_usd"`
	FeePerCycleUSD float64 `json:"fee_per_cycle_usd"`
	SpreadPct      float64 `json:"spread_pct,omitempty"`
}

const (
	defaultGridLevels  = 5
	defaultGridSpacing = 0.5 // percent
	defaultAtrWindow   = 14
	minSpreadPct       = 0.05
)

// Simulate prices the requested strategy. It performs no I/O.
func Simulate(name Name, in Input, p Params) (*Result, error) {
	if in.MidPrice <= 0 {
		return nil, fmt.Errorf("strategy: mid price must be positive")
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("strategy: size must be positive")
	}
	if in.Leverage < 1 {
		in.Leverage = 1
	}
	switch name {
	case Grid:
		return simulateGrid(in, p), nil
	case MM:
		return simulateMM(in, p), nil
	default:
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
}

func simulateGrid(in Input, p Params) *Result {
	levels := p.Levels
	if levels <= 0 {
		levels = defaultGridLevels
	}
	spacing := p.SpacingPct
	if spacing <= 0 {
		spacing = defaultGridSpacing
	}

	qty := in.Size / float64(2*levels)
	res := &Result{Strategy: Grid}
	for i := 1; i <= levels; i++ {
		offset := in.MidPrice * spacing / 100 * float64(i)
		buy := Level{Side: "buy", Price: in.MidPrice - offset, Qty: qty}
		sell := Level{Side: "sell", Price: in.MidPrice + offset, Qty: qty}
		buy.MarginUSD = buy.Price * qty / in.Leverage
		sell.MarginUSD = sell.Price * qty / in.Leverage
		res.Levels = append(res.Levels, buy, sell)
	}
	for _, l := range res.Levels {
		res.TotalMarginUSD += l.MarginUSD
		res.FeePerCycleUSD += l.Price * l.Qty * in.MakerFeePct
	}
	return res
}

// simulateMM quotes one bid and one ask around mid. Without an explicit
// spread the half-spread follows recent volatility (ATR as a percentage
// of price), floored so quotes never cross.
func simulateMM(in Input, p Params) *Result {
	spread := p.SpreadPct
	if spread <= 0 {
		window := p.AtrWindow
		if window <= 0 {
			window = defaultAtrWindow
		}
		if atrIdx, err := indicator.CalculateATRIndex(in.Candles, window); err == nil {
			spread = atrIdx / 2
		} else if vol, err := indicator.CalculateVolatility(in.Candles, window); err == nil {
			// shorter windows lack the ATR warmup; fall back to
			// close-to-close volatility
			spread = vol / in.MidPrice * 100 / 2
		}
		spread = math.Max(spread, minSpreadPct)
	}

	qty := in.Size / 2
	bid := Level{Side: "buy", Price: in.MidPrice * (1 - spread/100), Qty: qty}
	ask := Level{Side: "sell", Price: in.MidPrice * (1 + spread/100), Qty: qty}
	bid.MarginUSD = bid.Price * qty / in.Leverage
	ask.MarginUSD = ask.Price * qty / in.Leverage

	res := &Result{
		Strategy:  MM,
		Levels:    []Level{bid, ask},
		SpreadPct: spread,
	}
	for _, l := range res.Levels {
		res.TotalMarginUSD += l.MarginUSD
		res.FeePerCycleUSD += l.Price * l.Qty * in.MakerFeePct
	}
	return res
}
