package risk

import "time"

// Position is an open long position tracked by the manager. One position
// per symbol; the stop only ever moves up as HighestPrice rises.
type Position struct {
	Symbol        string    `json:"symbol"`
	EntryPrice    float64   `json:"entry_price"`
	Quantity      int64     `json:"quantity"`
	StopLossPrice float64   `json:"stop_loss_price"`
	HighestPrice  float64   `json:"highest_price"`
	EntryTime     time.Time `json:"entry_time"`
}

// Trade is the immutable record of a closed position.
type Trade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Quantity    int64     `json:"quantity"`
	PnL         float64   `json:"pnl"`
	PnLPct      float64   `json:"pnl_pct"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	StopLossHit bool      `json:"stop_loss_hit"`
}
