package monitor

import (
	"fmt"
	"time"

	"github.com/quantarc/tradesim/internal/alerts"
	"github.com/quantarc/tradesim/internal/marketdata"
	"github.com/quantarc/tradesim/internal/observ"
	"github.com/quantarc/tradesim/internal/risk"
)

const (
	largeLossThreshold = -5000.0
	drawdownAlertPct   = 0.10
)

// Tracker ties performance, health, and alerting together: each event is
// aggregated and, where warranted, escalated through the alert manager.
type Tracker struct {
	Performance *Performance
	Health      *Health
	Alerts      *alerts.Manager
}

// Snapshot is the dashboard view of a session.
type Snapshot struct {
	Performance  PerfMetrics    `json:"performance"`
	Health       HealthStatus   `json:"health"`
	RecentAlerts []alerts.Alert `json:"recent_alerts"`
}

func NewTracker(initialCapital float64, health *Health, am *alerts.Manager) *Tracker {
	return &Tracker{
		Performance: NewPerformance(initialCapital),
		Health:      health,
		Alerts:      am,
	}
}

// RecordTrade aggregates a closed trade and alerts on outsized losses.
func (t *Tracker) RecordTrade(trade risk.Trade) {
	t.Performance.RecordTrade(trade)

	if trade.PnL < largeLossThreshold {
		t.Alerts.Alert("large_loss", alerts.SeverityWarning,
			fmt.Sprintf("large loss: %.2f on %s", trade.PnL, trade.Symbol))
	}
}

// UpdateEquity aggregates a portfolio-value sample and alerts when the
// running drawdown crosses the alert threshold.
func (t *Tracker) UpdateEquity(value float64, now time.Time) {
	t.Performance.UpdateEquity(value, now)
	observ.SetGauge("portfolio_value", value, nil)

	if m := t.Performance.Metrics(); m.MaxDrawdown > drawdownAlertPct {
		t.Alerts.Alert("high_drawdown", alerts.SeverityCritical,
			fmt.Sprintf("drawdown reached %.2f%%", m.MaxDrawdown*100))
	}
}

// CheckHealth records feed vitals and escalates a critical status.
func (t *Tracker) CheckHealth(latencyMs float64, q marketdata.Quote, now time.Time) {
	t.Health.RecordLatency(latencyMs)
	if t.Health.CheckDataQuality(q, now) {
		t.Health.ClearErrors()
	} else {
		t.Health.RecordError("data_quality", "quote failed validation", now)
	}

	if status := t.Health.Status(now); status.Status == StatusCritical {
		t.Alerts.Alert("system_health", alerts.SeverityCritical,
			fmt.Sprintf("system health critical: score=%d fresh=%t", status.Score, status.DataFresh))
	}
}

// Snapshot returns the dashboard view.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Performance:  t.Performance.Metrics(),
		Health:       t.Health.Status(now),
		RecentAlerts: t.Alerts.History(),
	}
}
