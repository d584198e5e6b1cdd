package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantarc/tradesim/internal/alerts"
	"github.com/quantarc/tradesim/internal/marketdata"
	"github.com/quantarc/tradesim/internal/risk"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func validQuote(price float64) marketdata.Quote {
	return marketdata.Quote{LastPrice: price, Volume: 1000, Timestamp: now}
}

func TestPerformanceAggregation(t *testing.T) {
	t.Parallel()

	p := NewPerformance(100000)
	p.RecordTrade(risk.Trade{Symbol: "A", PnL: 500})
	p.RecordTrade(risk.Trade{Symbol: "A", PnL: -200})
	p.RecordTrade(risk.Trade{Symbol: "B", PnL: 300})

	m := p.Metrics()
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.InDelta(t, 2.0/3.0, m.WinRate, 1e-9)
	assert.InDelta(t, 600.0, m.TotalPnL, 1e-9)
}

func TestEquityCurveDrawdownAndSharpe(t *testing.T) {
	t.Parallel()

	p := NewPerformance(100000)
	for i, v := range []float64{101000, 102000, 98000, 99000, 103000} {
		p.UpdateEquity(v, now.Add(time.Duration(i)*time.Minute))
	}

	m := p.Metrics()
	assert.InDelta(t, 103000.0, m.CurrentEquity, 1e-9)
	assert.InDelta(t, 103000.0, m.PeakEquity, 1e-9)
	assert.InDelta(t, (102000.0-98000.0)/102000.0, m.MaxDrawdown, 1e-9)
	assert.NotZero(t, m.SharpeRatio)
	assert.InDelta(t, 0.03, m.TotalReturn, 1e-9)
}

func TestFlatEquitySharpeIsZero(t *testing.T) {
	t.Parallel()

	p := NewPerformance(100000)
	for i := 0; i < 10; i++ {
		p.UpdateEquity(100000, now.Add(time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 0.0, p.Metrics().SharpeRatio)
}

func TestHealthScorePenalties(t *testing.T) {
	t.Parallel()

	h := NewHealth(100, time.Minute)

	// No data yet: stale penalty puts us at 50 (critical threshold is <50).
	s := h.Status(now)
	assert.Equal(t, 50, s.Score)
	assert.Equal(t, StatusDegraded, s.Status)
	assert.False(t, s.DataFresh)

	// Fresh valid data restores full health.
	require.True(t, h.CheckDataQuality(validQuote(250), now))
	s = h.Status(now)
	assert.Equal(t, 100, s.Score)
	assert.Equal(t, StatusHealthy, s.Status)

	// Latency breach knocks off 20.
	for i := 0; i < 5; i++ {
		h.RecordLatency(500)
	}
	s = h.Status(now)
	assert.Equal(t, 80, s.Score)
	assert.Equal(t, StatusHealthy, s.Status)

	// Data going stale drops it to critical.
	s = h.Status(now.Add(5 * time.Minute))
	assert.Equal(t, StatusCritical, s.Status)
	assert.False(t, s.DataFresh)
}

func TestDataQualityRejectsBadQuotes(t *testing.T) {
	t.Parallel()

	h := NewHealth(100, time.Minute)

	assert.False(t, h.CheckDataQuality(marketdata.Quote{LastPrice: 0, Volume: 10, Timestamp: now}, now))
	assert.False(t, h.CheckDataQuality(marketdata.Quote{LastPrice: 100, Volume: -1, Timestamp: now}, now))
	assert.False(t, h.CheckDataQuality(marketdata.Quote{LastPrice: 100, Volume: 10}, now))
	assert.False(t, h.Fresh(now))

	assert.True(t, h.CheckDataQuality(validQuote(100), now))
	assert.True(t, h.Fresh(now))
}

func TestConsecutiveErrorsClear(t *testing.T) {
	t.Parallel()

	h := NewHealth(100, time.Minute)
	h.RecordError("feed", "timeout", now)
	h.RecordError("feed", "timeout", now)
	assert.Equal(t, 2, h.Status(now).ConsecutiveErrors)

	h.ClearErrors()
	assert.Equal(t, 0, h.Status(now).ConsecutiveErrors)
}

type captureSink struct{ sent []string }

func (c *captureSink) Send(subject, body string, severity alerts.Severity) error {
	c.sent = append(c.sent, subject)
	return nil
}

func TestTrackerEscalations(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	am := alerts.NewManager(0, sink)
	tr := NewTracker(100000, NewHealth(100, time.Minute), am)

	// Small loss: no alert.
	tr.RecordTrade(risk.Trade{Symbol: "TCS", PnL: -100})
	assert.Empty(t, sink.sent)

	// Outsized loss alerts.
	tr.RecordTrade(risk.Trade{Symbol: "TCS", PnL: -6000})
	require.Len(t, sink.sent, 1)
	assert.Contains(t, sink.sent[0], "large_loss")

	// Deep drawdown alerts.
	tr.UpdateEquity(100000, now)
	tr.UpdateEquity(85000, now.Add(time.Minute))
	assert.Contains(t, sink.sent[len(sink.sent)-1], "high_drawdown")

	snap := tr.Snapshot(now.Add(time.Minute))
	assert.Equal(t, 2, snap.Performance.TotalTrades)
	assert.NotEmpty(t, snap.RecentAlerts)
}
