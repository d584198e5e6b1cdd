package risk

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestCanTradeAllGatesPass(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	ok, reason := m.CanTrade(100000, 100000, day1)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestDailyLossCircuitBreaker(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())

	// Seed daily start value.
	ok, _ := m.CanTrade(100000, 100000, day1)
	require.True(t, ok)

	// 6% loss on the same day trips the breaker.
	ok, reason := m.CanTrade(94000, 94000, day1.Add(2*time.Hour))
	assert.False(t, ok)
	assert.Contains(t, reason, "daily loss")
	assert.True(t, m.Metrics(94000).CircuitBreaker)

	// Breaker stays tripped for the rest of the day.
	ok, reason = m.CanTrade(99000, 99000, day1.Add(3*time.Hour))
	assert.False(t, ok)
	assert.Contains(t, reason, "circuit breaker")

	// A new calendar day clears a daily-loss trip.
	ok, _ = m.CanTrade(94000, 94000, day1.Add(24*time.Hour))
	assert.True(t, ok)
	assert.False(t, m.Metrics(94000).CircuitBreaker)
}

func TestDrawdownTripNeedsManualResume(t *testing.T) {
	t.Parallel()

	// Widen the daily-loss limit so the drawdown gate is the one that fires.
	limits := DefaultLimits()
	limits.DailyLossLimit = 0.5
	m := NewManager(limits)
	ok, _ := m.CanTrade(100000, 100000, day1)
	require.True(t, ok)

	// 16% below peak trips the drawdown breaker.
	ok, reason := m.CanTrade(84000, 84000, day1.Add(time.Hour))
	require.False(t, ok)
	assert.Contains(t, reason, "drawdown")

	// Unlike a daily-loss trip, a new day does not clear it.
	ok, _ = m.CanTrade(84000, 84000, day1.Add(24*time.Hour))
	assert.False(t, ok)

	m.ResumeTrading()
	ok, _ = m.CanTrade(99000, 99000, day1.Add(25*time.Hour))
	assert.True(t, ok)
}

func TestDrawdownAutoResumeKnob(t *testing.T) {
	t.Parallel()

	limits := DefaultLimits()
	limits.AutoResumeOnDrawdown = true
	limits.DailyLossLimit = 0.5
	m := NewManager(limits)

	ok, _ := m.CanTrade(100000, 100000, day1)
	require.True(t, ok)
	ok, _ = m.CanTrade(84000, 84000, day1.Add(time.Hour))
	require.False(t, ok)

	// The drawdown itself still blocks against the prior peak, but the
	// breaker flag is cleared on the new day.
	ok, _ = m.CanTrade(99000, 99000, day1.Add(24*time.Hour))
	assert.True(t, ok)
}

func TestEmergencyStopSurvivesDateRollover(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	m.EmergencyStop("operator intervention")

	ok, reason := m.CanTrade(100000, 100000, day1)
	assert.False(t, ok)
	assert.Contains(t, reason, "manual")

	ok, _ = m.CanTrade(100000, 100000, day1.Add(48*time.Hour))
	assert.False(t, ok)

	m.ResumeTrading()
	ok, _ = m.CanTrade(100000, 100000, day1.Add(49*time.Hour))
	assert.True(t, ok)
}

func TestMinBalanceAndTradeLimitGates(t *testing.T) {
	t.Parallel()

	limits := DefaultLimits()
	limits.MaxTradesPerDay = 2
	m := NewManager(limits)

	ok, reason := m.CanTrade(100000, 5000, day1)
	assert.False(t, ok)
	assert.Contains(t, reason, "below minimum")

	require.NoError(t, m.OpenPosition("TCS", 1000, 5, day1))
	_, err := m.ClosePosition("TCS", 1010, day1)
	require.NoError(t, err)
	require.NoError(t, m.OpenPosition("TCS", 1010, 5, day1))

	ok, reason = m.CanTrade(100000, 100000, day1)
	assert.False(t, ok)
	assert.Contains(t, reason, "max trades per day")
}

func TestPositionSizing(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())

	tests := []struct {
		name       string
		action     float64
		cash       float64
		portfolio  float64
		price      float64
		volatility float64
		want       int64
	}{
		{"capped_by_max_position_size", 1.0, 100000, 100000, 100, 0, 200},
		{"scales_with_action", 0.1, 100000, 100000, 100, 0, 100},
		{"volatility_scaling", 1.0, 100000, 100000, 100, 0.06, 100},
		{"capped_by_cash", 1.0, 5000, 100000, 100, 0, 50},
		{"zero_price", 1.0, 100000, 100000, 0, 0, 0},
		{"negative_action_sizes_same", -1.0, 100000, 100000, 100, 0, 200},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := m.PositionSize(tt.action, tt.cash, tt.portfolio, tt.price, tt.volatility)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStopLossTrigger(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	require.NoError(t, m.OpenPosition("RELIANCE", 2500, 10, day1))

	pos, ok := m.Position("RELIANCE")
	require.True(t, ok)
	assert.InDelta(t, 2450.0, pos.StopLossPrice, 1e-9)

	hit, reason := m.CheckStopLoss("RELIANCE", 2449)
	assert.True(t, hit)
	assert.Contains(t, reason, "stop-loss")

	hit, _ = m.CheckStopLoss("RELIANCE", 2451)
	assert.False(t, hit)

	// Unknown symbol never triggers.
	hit, _ = m.CheckStopLoss("INFY", 1)
	assert.False(t, hit)
}

func TestTrailingStopOnlyMovesUp(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	require.NoError(t, m.OpenPosition("RELIANCE", 2500, 10, day1))

	m.UpdateTrailingStop("RELIANCE", 2600)
	pos, _ := m.Position("RELIANCE")
	assert.InDelta(t, 2600*(1-0.02), pos.StopLossPrice, 1e-9)
	assert.InDelta(t, 2600, pos.HighestPrice, 1e-9)

	// A lower price never lowers the stop.
	m.UpdateTrailingStop("RELIANCE", 2550)
	m.UpdateTrailingStop("RELIANCE", 2600)
	pos, _ = m.Position("RELIANCE")
	assert.InDelta(t, 2600*(1-0.02), pos.StopLossPrice, 1e-9)
}

func TestOnePositionPerSymbol(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	require.NoError(t, m.OpenPosition("TCS", 3500, 5, day1))
	assert.Error(t, m.OpenPosition("TCS", 3600, 5, day1))

	pos, _ := m.Position("TCS")
	assert.InDelta(t, 3500, pos.EntryPrice, 1e-9)
}

func TestClosePositionRecordsTrade(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	require.NoError(t, m.OpenPosition("TCS", 3500, 5, day1))

	trade, err := m.ClosePosition("TCS", 3570, day1.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 350.0, trade.PnL, 1e-9)
	assert.InDelta(t, 0.02, trade.PnLPct, 1e-9)
	assert.False(t, trade.StopLossHit)
	assert.NotEmpty(t, trade.ID)

	_, ok := m.Position("TCS")
	assert.False(t, ok)
	assert.Len(t, m.History(), 1)

	_, err = m.ClosePosition("TCS", 3570, day1)
	assert.Error(t, err)
}

func TestStopLossHitFlagOnClose(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	require.NoError(t, m.OpenPosition("INFY", 1500, 10, day1))

	trade, err := m.ClosePosition("INFY", 1460, day1.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, trade.StopLossHit)
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "risk_state.json")

	m := NewManager(DefaultLimits())
	ok, _ := m.CanTrade(100000, 100000, day1)
	require.True(t, ok)
	require.NoError(t, m.OpenPosition("RELIANCE", 2500, 10, day1))
	require.NoError(t, m.OpenPosition("TCS", 3500, 5, day1))
	_, err := m.ClosePosition("TCS", 3450, day1.Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, m.SaveState(path))

	restored := NewManager(DefaultLimits())
	require.NoError(t, restored.LoadState(path))

	pos, ok := restored.Position("RELIANCE")
	require.True(t, ok)
	assert.InDelta(t, 2500, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 2450, pos.StopLossPrice, 1e-9)

	want := m.Metrics(100000)
	got := restored.Metrics(100000)
	assert.Equal(t, want, got)
	assert.Len(t, restored.History(), 1)
}

func TestLoadStateMissingFileIsFresh(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultLimits())
	require.NoError(t, m.LoadState(filepath.Join(t.TempDir(), "nope.json")))

	ok, _ := m.CanTrade(100000, 100000, day1)
	assert.True(t, ok)
}
