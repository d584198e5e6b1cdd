// Package env implements the deterministic trading environment: one
// discrete time step per call, a scalar action in [-1, 1], long-only
// portfolio mutation, reward shaping, and episode statistics on
// termination.
package env

import (
	"fmt"
	"math"
	"time"

	"github.com/quantarc/tradesim/internal/execsim"
	"github.com/quantarc/tradesim/internal/observ"
	"github.com/quantarc/tradesim/internal/risk"
)

// Frame is one bar of market data: the feature vector the agent observes,
// the de-normalized reference price used for trade economics, and an
// optional spread for effective pricing.
type Frame struct {
	Time     time.Time
	Features []float64
	Price    float64
	Spread   float64
}

// Config holds the per-session environment parameters.
type Config struct {
	InitialBalance  float64 `yaml:"initial_balance"`
	TransactionCost float64 `yaml:"transaction_cost"`
	MaxPositionSize float64 `yaml:"max_position_size"`
	Symbol          string  `yaml:"symbol"`
}

// DefaultConfig mirrors a paper account: 100k starting balance, 0.1% fee,
// full-balance position cap.
func DefaultConfig() Config {
	return Config{
		InitialBalance:  100000.0,
		TransactionCost: 0.001,
		MaxPositionSize: 1.0,
		Symbol:          "SIM",
	}
}

// EpisodeStats is the read-only summary computed at termination.
type EpisodeStats struct {
	TotalReturn   float64 `json:"total_return"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	TotalTrades   int     `json:"total_trades"`
	FinalBalance  float64 `json:"final_balance"`
	BuyHoldReturn float64 `json:"buy_hold_return"`
	VsBuyHold     float64 `json:"vs_buy_hold"`
}

// StepResult carries one step's outputs. Stats is nil until the terminal
// step.
type StepResult struct {
	Observation []float64
	Reward      float64
	Terminated  bool
	Stats       *EpisodeStats
}

// Env advances portfolio state one bar at a time. It is single-threaded by
// contract: a Step call completes fully before the next begins.
type Env struct {
	frames []Frame
	cfg    Config
	rm     *risk.Manager // optional pre-trade gatekeeper

	step        int
	cash        float64
	shares      int64
	totalTrades int
	maxNetWorth float64

	portfolioValues []float64
	rewards         []float64
	terminated      bool
}

// New validates the series and returns a reset environment. A nil risk
// manager disables pre-trade gating.
func New(frames []Frame, cfg Config, rm *risk.Manager) (*Env, error) {
	if len(frames) < 2 {
		return nil, fmt.Errorf("env: need at least 2 frames, got %d", len(frames))
	}
	arity := len(frames[0].Features)
	for i, f := range frames {
		if len(f.Features) != arity {
			return nil, fmt.Errorf("env: frame %d has %d features, want %d", i, len(f.Features), arity)
		}
		if f.Price < 0 {
			return nil, fmt.Errorf("env: frame %d has negative price %.4f", i, f.Price)
		}
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("env: initial balance must be positive, got %.2f", cfg.InitialBalance)
	}

	e := &Env{frames: frames, cfg: cfg, rm: rm}
	e.Reset()
	return e, nil
}

// Reset restores the initial balance and returns the first observation.
func (e *Env) Reset() []float64 {
	e.step = 0
	e.cash = e.cfg.InitialBalance
	e.shares = 0
	e.totalTrades = 0
	e.maxNetWorth = e.cfg.InitialBalance
	e.portfolioValues = []float64{e.cfg.InitialBalance}
	e.rewards = nil
	e.terminated = false
	return e.observation()
}

// Step executes one action. Panics if called after termination; callers
// must Reset first.
func (e *Env) Step(action float64) StepResult {
	if e.terminated {
		panic("env: Step called on terminated episode")
	}
	action = clamp(action, -1, 1)
	frame := e.frames[e.step]
	price := frame.Price

	feePaid := e.executeTrade(action, frame)
	reward := e.reward(price, feePaid)
	e.rewards = append(e.rewards, reward)

	pv := e.portfolioValue(price)
	e.portfolioValues = append(e.portfolioValues, pv)

	if e.rm != nil && e.shares > 0 {
		e.rm.UpdateTrailingStop(e.cfg.Symbol, price)
	}

	e.step++
	done := e.step >= len(e.frames)-1
	observ.IncCounter("env_steps_total", nil)

	result := StepResult{
		Observation: e.observation(),
		Reward:      reward,
		Terminated:  done,
	}
	if done {
		e.terminated = true
		stats := e.episodeStats(price)
		result.Stats = &stats
		observ.Log("episode_terminated", map[string]any{
			"total_return": stats.TotalReturn,
			"sharpe":       stats.SharpeRatio,
			"max_drawdown": stats.MaxDrawdown,
			"trades":       stats.TotalTrades,
		})
	}
	return result
}

// Terminated reports whether the episode has ended.
func (e *Env) Terminated() bool { return e.terminated }

// Cash returns the current cash balance.
func (e *Env) Cash() float64 { return e.cash }

// Shares returns the current share count.
func (e *Env) Shares() int64 { return e.shares }

// PortfolioValue recomputes cash + shares at the current bar's price.
// Never stored as ground truth.
func (e *Env) PortfolioValue() float64 {
	return e.portfolioValue(e.frames[e.currentIndex()].Price)
}

// CurrentFrame returns the bar the next Step will execute against.
func (e *Env) CurrentFrame() Frame { return e.frames[e.currentIndex()] }

func (e *Env) currentIndex() int {
	if e.step >= len(e.frames) {
		return len(e.frames) - 1
	}
	return e.step
}

func (e *Env) portfolioValue(price float64) float64 {
	return e.cash + float64(e.shares)*price
}

// executeTrade converts the action into a fill and returns the fee paid.
// Insufficient funds downgrade the trade to zero size; nothing here
// returns an error.
func (e *Env) executeTrade(action float64, frame Frame) float64 {
	price := frame.Price
	if price <= 0 {
		return 0
	}

	switch {
	case action > 0:
		if !e.allowedByRisk(frame) {
			return 0
		}
		notional := e.cash * math.Min(action, e.cfg.MaxPositionSize)
		fillPrice := execsim.EffectivePrice(price, frame.Spread, execsim.Buy, action)
		shares := int64(notional / fillPrice)
		if shares <= 0 {
			return 0
		}
		cost := float64(shares) * fillPrice
		fee := execsim.Fee(cost, e.cfg.TransactionCost)
		if cost+fee > e.cash {
			return 0
		}
		hadPosition := e.shares > 0
		e.shares += shares
		e.cash -= cost + fee
		e.totalTrades++
		observ.IncCounter("env_trades_total", map[string]string{"side": "buy"})
		if e.rm != nil && !hadPosition {
			// Best effort: a stale position from a previous episode keeps
			// its original entry.
			_ = e.rm.OpenPosition(e.cfg.Symbol, fillPrice, shares, frame.Time)
		}
		return fee

	case action < 0 && e.shares > 0:
		sellRatio := math.Min(-action, 1.0)
		shares := int64(float64(e.shares) * sellRatio)
		if shares <= 0 {
			return 0
		}
		fillPrice := execsim.EffectivePrice(price, frame.Spread, execsim.Sell, action)
		revenue := float64(shares) * fillPrice
		fee := execsim.Fee(revenue, e.cfg.TransactionCost)
		e.cash += revenue - fee
		e.shares -= shares
		e.totalTrades++
		observ.IncCounter("env_trades_total", map[string]string{"side": "sell"})
		if e.rm != nil && e.shares == 0 {
			if _, ok := e.rm.Position(e.cfg.Symbol); ok {
				_, _ = e.rm.ClosePosition(e.cfg.Symbol, fillPrice, frame.Time)
			}
		}
		return fee
	}
	return 0
}

// allowedByRisk consults the risk manager before adding exposure. A
// refusal means "do nothing this step", never an error.
func (e *Env) allowedByRisk(frame Frame) bool {
	if e.rm == nil {
		return true
	}
	pv := e.portfolioValue(frame.Price)
	ok, reason := e.rm.CanTrade(pv, e.cash, frame.Time)
	if !ok {
		observ.IncCounter("env_trades_blocked_total", nil)
		observ.Log("trade_blocked", map[string]any{"reason": reason})
	}
	return ok
}

// reward is the step reward: scaled portfolio return, a light fee
// penalty, a periodic bonus for beating buy-and-hold, and a flat bonus
// for new portfolio highs.
func (e *Env) reward(price, feePaid float64) float64 {
	pv := e.portfolioValue(price)

	prev := e.cfg.InitialBalance
	if len(e.portfolioValues) > 0 {
		prev = e.portfolioValues[len(e.portfolioValues)-1]
	}
	reward := (pv - prev) / prev * 100

	reward -= (feePaid / e.cfg.InitialBalance) * 2

	// Compare against buy-and-hold every 50 steps; bonus only, never a
	// penalty.
	if len(e.portfolioValues) > 50 && e.step%50 == 0 {
		marketReturn := price/e.frames[0].Price - 1
		totalReturn := pv/e.cfg.InitialBalance - 1
		if totalReturn > marketReturn {
			reward += (totalReturn - marketReturn) * 20
		}
	}

	if pv > e.maxNetWorth {
		e.maxNetWorth = pv
		reward += 0.5
	}
	return reward
}

// observation is the bar's feature vector plus four normalized portfolio
// features.
func (e *Env) observation() []float64 {
	frame := e.frames[e.currentIndex()]
	price := frame.Price

	pv := e.portfolioValue(price)
	positionRatio := 0.0
	if pv > 0 {
		positionRatio = float64(e.shares) * price / pv
	}

	obs := make([]float64, 0, len(frame.Features)+4)
	obs = append(obs, frame.Features...)
	obs = append(obs,
		e.cash/e.cfg.InitialBalance,
		float64(e.shares)*price/e.cfg.InitialBalance,
		pv/e.cfg.InitialBalance,
		positionRatio,
	)
	return obs
}

func (e *Env) episodeStats(price float64) EpisodeStats {
	finalValue := e.portfolioValue(price)
	initialPrice := e.frames[0].Price

	totalReturn := (finalValue - e.cfg.InitialBalance) / e.cfg.InitialBalance
	buyHold := 0.0
	if initialPrice > 0 {
		buyHold = (price - initialPrice) / initialPrice
	}

	return EpisodeStats{
		TotalReturn:   totalReturn,
		SharpeRatio:   annualizedSharpe(e.rewards),
		MaxDrawdown:   maxDrawdown(e.portfolioValues),
		TotalTrades:   e.totalTrades,
		FinalBalance:  finalValue,
		BuyHoldReturn: buyHold,
		VsBuyHold:     totalReturn - buyHold,
	}
}

// annualizedSharpe is mean/std of step rewards scaled by sqrt(252).
// Returns 0 for fewer than 2 samples or zero variance, never NaN.
func annualizedSharpe(rewards []float64) float64 {
	if len(rewards) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rewards {
		mean += r
	}
	mean /= float64(len(rewards))

	variance := 0.0
	for _, r := range rewards {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rewards))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(252)
}

// maxDrawdown is the minimum of (value − running max) / running max over
// the portfolio-value history. Zero or negative.
func maxDrawdown(values []float64) float64 {
	minDD := 0.0
	runningMax := math.Inf(-1)
	for _, v := range values {
		if v > runningMax {
			runningMax = v
		}
		if runningMax > 0 {
			if dd := (v - runningMax) / runningMax; dd < minDD {
				minDD = dd
			}
		}
	}
	return minDD
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
