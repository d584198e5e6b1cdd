package risk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quantarc/tradesim/internal/observ"
)

// historyTail bounds how many closed trades survive a save/load cycle.
const historyTail = 100

type persistedState struct {
	Positions               map[string]*Position `json:"positions"`
	DailyStartValue         float64              `json:"daily_start_value"`
	PeakPortfolioValue      float64              `json:"peak_portfolio_value"`
	TradesToday             int                  `json:"trades_today"`
	CurrentDate             string               `json:"current_date"`
	TradingEnabled          bool                 `json:"trading_enabled"`
	CircuitBreakerTriggered bool                 `json:"circuit_breaker_triggered"`
	TripCause               TripCause            `json:"trip_cause,omitempty"`
	TradeHistory            []Trade              `json:"trade_history"`
}

// SaveState writes the full risk state to path atomically (temp file +
// rename). The trade history is truncated to its most recent tail.
func (m *Manager) SaveState(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tail := m.history
	if len(tail) > historyTail {
		tail = tail[len(tail)-historyTail:]
	}

	state := persistedState{
		Positions:               m.positions,
		DailyStartValue:         m.dailyStartValue,
		PeakPortfolioValue:      m.peakValue,
		TradesToday:             m.tradesToday,
		CurrentDate:             m.currentDate,
		TradingEnabled:          m.tradingEnabled,
		CircuitBreakerTriggered: m.breakerTripped,
		TripCause:               m.tripCause,
		TradeHistory:            tail,
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal risk state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp risk state: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename risk state: %w", err)
	}

	observ.Log("risk_state_saved", map[string]any{"path": path})
	return nil
}

// LoadState restores state from path. A missing file means a fresh
// session, not an error.
func (m *Manager) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			observ.Log("risk_state_missing", map[string]any{"path": path})
			return nil
		}
		return fmt.Errorf("read risk state: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("unmarshal risk state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if state.Positions != nil {
		m.positions = state.Positions
	} else {
		m.positions = make(map[string]*Position)
	}
	m.dailyStartValue = state.DailyStartValue
	m.peakValue = state.PeakPortfolioValue
	m.tradesToday = state.TradesToday
	m.currentDate = state.CurrentDate
	m.tradingEnabled = state.TradingEnabled
	m.breakerTripped = state.CircuitBreakerTriggered
	m.tripCause = state.TripCause
	m.history = state.TradeHistory

	observ.Log("risk_state_loaded", map[string]any{"path": path, "positions": len(m.positions)})
	return nil
}
