// Package execsim models order execution against a depth snapshot:
// depth-weighted slippage, spread/impact effective pricing, and
// transaction fees. Everything here is pure computation; it is safe to
// call concurrently and with missing or stale depth data.
package execsim

import (
	"math"

	"github.com/shopspring/decimal"
)

// Side is the direction of a simulated order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// DepthLevel is one rung of an order book, best-to-worst ordering is the
// caller's responsibility.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

const (
	// DefaultSlippage applies when no depth data is available.
	DefaultSlippage = 0.001
	// IlliquidSlippage applies when the book cannot absorb the full order.
	IlliquidSlippage = 0.005
	// impactFactor scales the market-impact component of effective price.
	impactFactor = 0.5
)

// Slippage walks the given side of the book best-to-worst and returns the
// fractional slippage |avg fill − best| / best for a full fill of quantity.
// Missing depth returns DefaultSlippage; insufficient liquidity returns
// IlliquidSlippage. Price accumulation uses decimal arithmetic so large
// notionals do not drift.
func Slippage(levels []DepthLevel, quantity int64) float64 {
	if quantity <= 0 {
		return 0
	}
	if len(levels) == 0 {
		return DefaultSlippage
	}

	remaining := quantity
	cost := decimal.Zero
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		executed := remaining
		if lvl.Quantity < executed {
			executed = lvl.Quantity
		}
		if executed <= 0 {
			continue
		}
		cost = cost.Add(decimal.NewFromFloat(lvl.Price).Mul(decimal.NewFromInt(executed)))
		remaining -= executed
	}
	if remaining > 0 {
		return IlliquidSlippage
	}

	avg, _ := cost.Div(decimal.NewFromInt(quantity)).Float64()
	best := levels[0].Price
	if best <= 0 {
		return DefaultSlippage
	}
	return math.Abs(avg-best) / best
}

// EffectivePrice adjusts a reference price for spread and market impact.
// Base slippage is half the bid-ask spread; the impact term grows linearly
// with the requested action strength (order size proxy). Buys pay up,
// sells give back.
func EffectivePrice(price, spread float64, side Side, strength float64) float64 {
	base := spread / 2
	impact := base * math.Abs(strength) * impactFactor
	slip := base + impact
	if side == Sell {
		return price - slip
	}
	return price + slip
}

// Fee returns the transaction fee for a fill of the given notional value.
func Fee(notional, rate float64) float64 {
	return notional * rate
}
