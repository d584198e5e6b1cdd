// Package risk gates and sizes every proposed trade, tracks open
// positions with trailing stop-losses, and enforces account-level
// circuit breakers (daily loss, max drawdown, manual halt).
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quantarc/tradesim/internal/observ"
)

// TripCause records why the circuit breaker tripped. Daily-loss trips
// auto-clear on the next calendar day; drawdown and manual trips require
// ResumeTrading unless auto_resume_on_drawdown is set.
type TripCause string

const (
	TripNone      TripCause = ""
	TripDailyLoss TripCause = "daily_loss"
	TripDrawdown  TripCause = "drawdown"
	TripManual    TripCause = "manual"
)

// Manager is the per-session risk state machine. All methods are safe for
// concurrent use; a single mutex guards positions, counters, and breaker
// flags.
type Manager struct {
	mu     sync.Mutex
	limits Limits

	positions map[string]*Position

	dailyStartValue float64
	peakValue       float64
	tradesToday     int
	currentDate     string

	tradingEnabled bool
	breakerTripped bool
	tripCause      TripCause

	history []Trade
}

// Metrics is a read-only snapshot of the manager's risk posture.
type Metrics struct {
	TradingEnabled  bool      `json:"trading_enabled"`
	CircuitBreaker  bool      `json:"circuit_breaker"`
	TripCause       TripCause `json:"trip_cause,omitempty"`
	TradesToday     int       `json:"trades_today"`
	MaxTrades       int       `json:"max_trades"`
	OpenPositions   int       `json:"open_positions"`
	PortfolioValue  float64   `json:"portfolio_value"`
	DailyPnL        float64   `json:"daily_pnl"`
	DailyPnLPct     float64   `json:"daily_pnl_pct"`
	CurrentDrawdown float64   `json:"current_drawdown"`
	PeakValue       float64   `json:"peak_value"`
}

func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:         limits,
		positions:      make(map[string]*Position),
		tradingEnabled: true,
	}
}

// Limits returns the immutable session limits.
func (m *Manager) Limits() Limits { return m.limits }

// CanTrade runs every pre-trade gate in order and returns the first
// refusal. A new calendar day resets daily counters and clears a
// daily-loss breaker trip before any gate runs.
func (m *Manager) CanTrade(portfolioValue, cash float64, now time.Time) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDayLocked(portfolioValue, now)

	if m.breakerTripped {
		observ.IncCounter("risk_trades_blocked_total", map[string]string{"gate": "circuit_breaker"})
		return false, fmt.Sprintf("circuit breaker tripped (%s) - trading disabled", m.tripCause)
	}
	if !m.tradingEnabled {
		observ.IncCounter("risk_trades_blocked_total", map[string]string{"gate": "disabled"})
		return false, "trading manually disabled"
	}

	if m.dailyStartValue > 0 {
		loss := (m.dailyStartValue - portfolioValue) / m.dailyStartValue
		if loss > m.limits.DailyLossLimit {
			reason := fmt.Sprintf("circuit breaker: daily loss %.2f%% exceeds limit %.1f%%",
				loss*100, m.limits.DailyLossLimit*100)
			m.tripLocked(TripDailyLoss, reason)
			return false, reason
		}
	}

	if m.peakValue > 0 {
		dd := (m.peakValue - portfolioValue) / m.peakValue
		if dd > m.limits.MaxDrawdown {
			reason := fmt.Sprintf("circuit breaker: drawdown %.2f%% exceeds limit %.1f%%",
				dd*100, m.limits.MaxDrawdown*100)
			m.tripLocked(TripDrawdown, reason)
			return false, reason
		}
	}

	if cash < m.limits.MinBalance {
		observ.IncCounter("risk_trades_blocked_total", map[string]string{"gate": "min_balance"})
		return false, fmt.Sprintf("balance %.2f below minimum %.2f", cash, m.limits.MinBalance)
	}

	if m.tradesToday >= m.limits.MaxTradesPerDay {
		observ.IncCounter("risk_trades_blocked_total", map[string]string{"gate": "trade_limit"})
		return false, fmt.Sprintf("max trades per day (%d) reached", m.limits.MaxTradesPerDay)
	}

	return true, ""
}

// PositionSize converts an action strength into a share quantity. Notional
// is |action| of available cash, capped at MaxPositionSize of portfolio
// value, scaled down when volatility exceeds the threshold, and re-capped
// so it never exceeds cash. Pass volatility <= 0 when unknown.
func (m *Manager) PositionSize(action, cash, portfolioValue, price, volatility float64) int64 {
	if price <= 0 {
		return 0
	}

	notional := abs(action) * cash
	if limit := portfolioValue * m.limits.MaxPositionSize; notional > limit {
		notional = limit
	}
	if volatility > m.limits.VolatilityThreshold && volatility > 0 {
		notional *= m.limits.VolatilityThreshold / volatility
	}

	shares := int64(notional / price)
	if float64(shares)*price > cash {
		shares = int64(cash / price)
	}
	if shares < 0 {
		shares = 0
	}
	return shares
}

// OpenPosition registers a new position with its initial stop-loss and
// counts the trade. At most one open position per symbol.
func (m *Manager) OpenPosition(symbol string, entryPrice float64, quantity int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.positions[symbol]; exists {
		return fmt.Errorf("open position: %s already has an open position", symbol)
	}

	stop := entryPrice * (1 - m.limits.StopLossPct)
	m.positions[symbol] = &Position{
		Symbol:        symbol,
		EntryPrice:    entryPrice,
		Quantity:      quantity,
		StopLossPrice: stop,
		HighestPrice:  entryPrice,
		EntryTime:     now,
	}
	m.tradesToday++

	observ.IncCounter("risk_positions_opened_total", map[string]string{"symbol": symbol})
	observ.Log("position_opened", map[string]any{
		"symbol": symbol, "entry": entryPrice, "quantity": quantity, "stop": stop,
	})
	return nil
}

// UpdateTrailingStop ratchets the stop upward when price makes a new high
// since entry. The stop never moves down.
func (m *Manager) UpdateTrailingStop(symbol string, currentPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return
	}
	if currentPrice > pos.HighestPrice {
		pos.HighestPrice = currentPrice
		pos.StopLossPrice = currentPrice * (1 - m.limits.StopLossPct)
	}
}

// CheckStopLoss reports whether the position should exit at currentPrice.
func (m *Manager) CheckStopLoss(symbol string, currentPrice float64) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return false, ""
	}
	if currentPrice <= pos.StopLossPrice {
		lossPct := (pos.EntryPrice - currentPrice) / pos.EntryPrice
		return true, fmt.Sprintf("stop-loss triggered: %s @ %.2f (loss %.2f%%)",
			symbol, currentPrice, lossPct*100)
	}
	return false, ""
}

// ClosePosition removes the position, computes realized P&L, and appends
// an immutable Trade to the history.
func (m *Manager) ClosePosition(symbol string, exitPrice float64, now time.Time) (Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return Trade{}, fmt.Errorf("close position: no open position for %s", symbol)
	}

	trade := Trade{
		ID:          ulid.Make().String(),
		Symbol:      symbol,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		Quantity:    pos.Quantity,
		PnL:         (exitPrice - pos.EntryPrice) * float64(pos.Quantity),
		PnLPct:      (exitPrice - pos.EntryPrice) / pos.EntryPrice,
		EntryTime:   pos.EntryTime,
		ExitTime:    now,
		StopLossHit: exitPrice <= pos.StopLossPrice,
	}
	m.history = append(m.history, trade)
	delete(m.positions, symbol)

	observ.IncCounter("risk_positions_closed_total", map[string]string{"symbol": symbol})
	observ.Log("position_closed", map[string]any{
		"symbol": symbol, "exit": exitPrice, "pnl": trade.PnL, "stop_loss_hit": trade.StopLossHit,
	})
	return trade, nil
}

// EmergencyStop halts all trading until ResumeTrading is called. Date
// rollover does not clear a manual halt.
func (m *Manager) EmergencyStop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tripLocked(TripManual, "emergency stop: "+reason)
}

// ResumeTrading clears the breaker and re-enables trading.
func (m *Manager) ResumeTrading() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tradingEnabled = true
	m.breakerTripped = false
	m.tripCause = TripNone
	observ.SetGauge("circuit_breaker_tripped", 0, nil)
	observ.Log("trading_resumed", nil)
}

// Position returns a copy of the tracked position for symbol.
func (m *Manager) Position(symbol string) (Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// OpenSymbols lists symbols with open positions.
func (m *Manager) OpenSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.positions))
	for sym := range m.positions {
		out = append(out, sym)
	}
	return out
}

// History returns a copy of the closed-trade history.
func (m *Manager) History() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Trade, len(m.history))
	copy(out, m.history)
	return out
}

// Metrics snapshots the current risk posture against portfolioValue.
func (m *Manager) Metrics(portfolioValue float64) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt := Metrics{
		TradingEnabled: m.tradingEnabled,
		CircuitBreaker: m.breakerTripped,
		TripCause:      m.tripCause,
		TradesToday:    m.tradesToday,
		MaxTrades:      m.limits.MaxTradesPerDay,
		OpenPositions:  len(m.positions),
		PortfolioValue: portfolioValue,
		PeakValue:      m.peakValue,
	}
	if m.dailyStartValue > 0 {
		mt.DailyPnL = portfolioValue - m.dailyStartValue
		mt.DailyPnLPct = mt.DailyPnL / m.dailyStartValue
	}
	if m.peakValue > 0 {
		mt.CurrentDrawdown = (m.peakValue - portfolioValue) / m.peakValue
	}
	return mt
}

// rollDayLocked resets daily counters on a calendar date change and
// auto-clears breaker trips whose cause permits it.
func (m *Manager) rollDayLocked(portfolioValue float64, now time.Time) {
	date := now.UTC().Format("2006-01-02")
	if m.currentDate == date {
		return
	}
	m.currentDate = date
	m.dailyStartValue = portfolioValue
	m.tradesToday = 0

	if m.peakValue == 0 || portfolioValue > m.peakValue {
		m.peakValue = portfolioValue
	}

	if m.breakerTripped {
		switch m.tripCause {
		case TripDailyLoss:
			m.clearBreakerLocked()
		case TripDrawdown:
			if m.limits.AutoResumeOnDrawdown {
				m.clearBreakerLocked()
			}
		}
	}

	observ.Log("daily_counters_reset", map[string]any{
		"date": date, "start_value": portfolioValue,
	})
}

func (m *Manager) clearBreakerLocked() {
	m.breakerTripped = false
	m.tradingEnabled = true
	m.tripCause = TripNone
	observ.SetGauge("circuit_breaker_tripped", 0, nil)
	observ.Log("circuit_breaker_cleared", nil)
}

func (m *Manager) tripLocked(cause TripCause, reason string) {
	m.breakerTripped = true
	m.tradingEnabled = false
	m.tripCause = cause
	observ.SetGauge("circuit_breaker_tripped", 1, nil)
	observ.IncCounter("risk_circuit_breaker_trips_total", map[string]string{"cause": string(cause)})
	observ.Log("circuit_breaker_tripped", map[string]any{"cause": string(cause), "reason": reason})
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
