package env

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantarc/tradesim/internal/risk"
)

func flatFrames(n int, price float64) []Frame {
	frames := make([]Frame, n)
	t0 := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	for i := range frames {
		frames[i] = Frame{
			Time:     t0.Add(time.Duration(i) * time.Minute),
			Features: []float64{price, 0.5, -0.25},
			Price:    price,
		}
	}
	return frames
}

func trendFrames(n int, start, step float64) []Frame {
	frames := flatFrames(n, start)
	for i := range frames {
		frames[i].Price = start + float64(i)*step
		frames[i].Features[0] = frames[i].Price
	}
	return frames
}

func TestResetReturnsInitialObservation(t *testing.T) {
	t.Parallel()

	e, err := New(flatFrames(10, 100), DefaultConfig(), nil)
	require.NoError(t, err)

	obs := e.Reset()
	require.Len(t, obs, 3+4)
	assert.InDelta(t, 1.0, obs[3], 1e-9) // cash / initial
	assert.InDelta(t, 0.0, obs[4], 1e-9) // shares value
	assert.InDelta(t, 1.0, obs[5], 1e-9) // portfolio / initial
	assert.InDelta(t, 0.0, obs[6], 1e-9) // position ratio
}

func TestCashNeverNegative(t *testing.T) {
	t.Parallel()

	e, err := New(trendFrames(200, 100, 0.5), DefaultConfig(), nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for !e.Terminated() {
		action := rng.Float64()*2 - 1
		e.Step(action)
		assert.GreaterOrEqual(t, e.Cash(), 0.0)
		assert.GreaterOrEqual(t, e.Shares(), int64(0))
	}
}

func TestSellWithNoSharesIsNoop(t *testing.T) {
	t.Parallel()

	e, err := New(flatFrames(10, 100), DefaultConfig(), nil)
	require.NoError(t, err)

	res := e.Step(-1.0)
	assert.Equal(t, int64(0), e.Shares())
	assert.InDelta(t, 100000.0, e.Cash(), 1e-9)
	assert.False(t, res.Terminated)
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	e, err := New(flatFrames(10, 100), cfg, nil)
	require.NoError(t, err)

	// action 1.0 would be rejected: cost plus fee exceeds cash.
	e.Step(0.9)
	assert.Greater(t, e.Shares(), int64(0))
	bought := e.Shares()

	e.Step(-1.0)
	assert.Equal(t, int64(0), e.Shares())

	// Round trip on a flat price loses exactly the two fees.
	lost := 100000.0 - e.Cash()
	assert.InDelta(t, float64(bought)*100*cfg.TransactionCost*2, lost, 1e-6)
}

func TestPartialSell(t *testing.T) {
	t.Parallel()

	e, err := New(flatFrames(10, 100), DefaultConfig(), nil)
	require.NoError(t, err)

	e.Step(0.9)
	held := e.Shares()
	e.Step(-0.5)
	assert.Equal(t, held-held/2, e.Shares())
}

func TestTerminationAndConstantPriceSharpe(t *testing.T) {
	t.Parallel()

	n := 10
	e, err := New(flatFrames(n, 100), DefaultConfig(), nil)
	require.NoError(t, err)

	var last StepResult
	steps := 0
	for !e.Terminated() {
		last = e.Step(0)
		steps++
	}
	assert.Equal(t, n-1, steps)
	require.NotNil(t, last.Stats)

	// No volatility: Sharpe must be 0, not NaN.
	assert.Equal(t, 0.0, last.Stats.SharpeRatio)
	assert.InDelta(t, 0.0, last.Stats.TotalReturn, 1e-9)
	assert.Equal(t, 0, last.Stats.TotalTrades)
	assert.InDelta(t, 0.0, last.Stats.MaxDrawdown, 1e-9)
}

func TestEpisodeStatsOnTrend(t *testing.T) {
	t.Parallel()

	e, err := New(trendFrames(100, 100, 1), DefaultConfig(), nil)
	require.NoError(t, err)

	var last StepResult
	e.Step(0.9) // buy at 100, ride the trend
	for !e.Terminated() {
		last = e.Step(0)
	}
	require.NotNil(t, last.Stats)

	assert.Greater(t, last.Stats.TotalReturn, 0.0)
	assert.Greater(t, last.Stats.SharpeRatio, 0.0)
	assert.InDelta(t, (199.0-100.0)/100.0, last.Stats.BuyHoldReturn, 1e-9)
	assert.Equal(t, 1, last.Stats.TotalTrades)
}

func TestStepAfterTerminationPanics(t *testing.T) {
	t.Parallel()

	e, err := New(flatFrames(3, 100), DefaultConfig(), nil)
	require.NoError(t, err)

	e.Step(0)
	e.Step(0)
	require.True(t, e.Terminated())
	assert.Panics(t, func() { e.Step(0) })

	// Reset makes it usable again.
	e.Reset()
	assert.NotPanics(t, func() { e.Step(0) })
}

func TestRiskManagerVetoBlocksBuys(t *testing.T) {
	t.Parallel()

	rm := risk.NewManager(risk.DefaultLimits())
	rm.EmergencyStop("test halt")

	e, err := New(flatFrames(10, 100), DefaultConfig(), rm)
	require.NoError(t, err)

	e.Step(1.0)
	assert.Equal(t, int64(0), e.Shares())
	assert.InDelta(t, 100000.0, e.Cash(), 1e-9)
}

func TestRiskManagerTracksEnvPosition(t *testing.T) {
	t.Parallel()

	rm := risk.NewManager(risk.DefaultLimits())
	cfg := DefaultConfig()
	e, err := New(trendFrames(10, 100, 1), cfg, rm)
	require.NoError(t, err)

	e.Step(0.5)
	pos, ok := rm.Position(cfg.Symbol)
	require.True(t, ok)
	assert.Equal(t, e.Shares(), pos.Quantity)

	// Trailing stop follows rising prices.
	e.Step(0)
	e.Step(0)
	updated, _ := rm.Position(cfg.Symbol)
	assert.GreaterOrEqual(t, updated.StopLossPrice, pos.StopLossPrice)

	// Selling out closes the tracked position.
	e.Step(-1.0)
	_, ok = rm.Position(cfg.Symbol)
	assert.False(t, ok)
	assert.Len(t, rm.History(), 1)
}

func TestNewRejectsBadSeries(t *testing.T) {
	t.Parallel()

	_, err := New(nil, DefaultConfig(), nil)
	assert.Error(t, err)

	frames := flatFrames(5, 100)
	frames[2].Features = []float64{1}
	_, err = New(frames, DefaultConfig(), nil)
	assert.Error(t, err)

	frames = flatFrames(5, 100)
	frames[1].Price = -1
	_, err = New(frames, DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.InitialBalance = 0
	_, err = New(flatFrames(5, 100), cfg, nil)
	assert.Error(t, err)
}

func TestMaxPositionSizeCapsNotional(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxPositionSize = 0.2
	e, err := New(flatFrames(10, 100), cfg, nil)
	require.NoError(t, err)

	e.Step(1.0)
	// Notional capped at 20% of cash.
	assert.LessOrEqual(t, float64(e.Shares())*100, 20000.0)
	assert.Greater(t, e.Shares(), int64(0))
}
