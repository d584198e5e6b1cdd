// Package monitor consumes trade and portfolio-value events and tracks
// performance and system health independently of the trading core. It is
// purely additive aggregation; nothing here vetoes a trade.
package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/quantarc/tradesim/internal/risk"
)

// PerfMetrics is a snapshot of trading performance.
type PerfMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalReturn   float64 `json:"total_return"`
	CurrentEquity float64 `json:"current_equity"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	PeakEquity    float64 `json:"peak_equity"`
}

// Performance aggregates closed trades and the equity curve.
type Performance struct {
	mu             sync.Mutex
	initialCapital float64

	trades   int
	wins     int
	losses   int
	totalPnL float64

	currentEquity float64
	peakEquity    float64
	maxDrawdown   float64
	returns       []float64
	lastEquity    float64
}

func NewPerformance(initialCapital float64) *Performance {
	return &Performance{
		initialCapital: initialCapital,
		currentEquity:  initialCapital,
		peakEquity:     initialCapital,
		lastEquity:     initialCapital,
	}
}

// RecordTrade counts a closed trade into win/loss and P&L totals.
func (p *Performance) RecordTrade(t risk.Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades++
	p.totalPnL += t.PnL
	switch {
	case t.PnL > 0:
		p.wins++
	case t.PnL < 0:
		p.losses++
	}
}

// UpdateEquity appends one equity observation, updating peak and max
// drawdown.
func (p *Performance) UpdateEquity(value float64, now time.Time) {
	_ = now // reserved for a time-bucketed equity curve

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastEquity > 0 {
		p.returns = append(p.returns, value/p.lastEquity-1)
	}
	p.lastEquity = value
	p.currentEquity = value

	if value > p.peakEquity {
		p.peakEquity = value
	}
	if p.peakEquity > 0 {
		if dd := (p.peakEquity - value) / p.peakEquity; dd > p.maxDrawdown {
			p.maxDrawdown = dd
		}
	}
}

// Metrics snapshots the current aggregates.
func (p *Performance) Metrics() PerfMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	winRate := 0.0
	if p.trades > 0 {
		winRate = float64(p.wins) / float64(p.trades)
	}
	return PerfMetrics{
		TotalTrades:   p.trades,
		Wins:          p.wins,
		Losses:        p.losses,
		WinRate:       winRate,
		TotalPnL:      p.totalPnL,
		TotalReturn:   (p.currentEquity - p.initialCapital) / p.initialCapital,
		CurrentEquity: p.currentEquity,
		MaxDrawdown:   p.maxDrawdown,
		SharpeRatio:   sharpe(p.returns),
		PeakEquity:    p.peakEquity,
	}
}

// sharpe annualizes mean/std of equity returns; 0 on insufficient data or
// zero variance.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(252)
}
