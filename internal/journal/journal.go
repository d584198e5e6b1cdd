// Package journal persists the session audit trail: closed trades and
// equity snapshots. The simulation core never reads from it on the hot
// path; it exists for restarts, dashboards, and post-run analysis.
package journal

import (
	"time"

	"github.com/quantarc/tradesim/internal/risk"
)

// EquitySnapshot is one point on the recorded equity curve.
type EquitySnapshot struct {
	Time  time.Time
	Cash  float64
	Value float64
}

// Journal records session events durably.
type Journal interface {
	RecordTrade(t risk.Trade) error
	RecordEquity(s EquitySnapshot) error
	RecentTrades(n int) ([]risk.Trade, error)
	Close() error
}

// Nop discards everything; used when no journal path is configured.
type Nop struct{}

func (Nop) RecordTrade(risk.Trade) error           { return nil }
func (Nop) RecordEquity(EquitySnapshot) error      { return nil }
func (Nop) RecentTrades(int) ([]risk.Trade, error) { return nil, nil }
func (Nop) Close() error                           { return nil }
