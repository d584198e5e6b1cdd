// Package marketdata supplies the simulation core with bars, quotes, and
// depth snapshots. Real ingestion lives outside this repository; this
// package covers CSV replay and deterministic synthetic series for
// backtests and tests.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/quantarc/tradesim/internal/env"
	"github.com/quantarc/tradesim/internal/execsim"
)

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Quote is a point-in-time snapshot with order-book depth, best-to-worst
// on both sides.
type Quote struct {
	LastPrice float64              `json:"last_price"`
	BidDepth  []execsim.DepthLevel `json:"bid_depth"`
	AskDepth  []execsim.DepthLevel `json:"ask_depth"`
	Volume    int64                `json:"volume"`
	Timestamp time.Time            `json:"timestamp"`
}

// Spread is best ask minus best bid, 0 when either side is missing.
func (q Quote) Spread() float64 {
	if len(q.BidDepth) == 0 || len(q.AskDepth) == 0 {
		return 0
	}
	return q.AskDepth[0].Price - q.BidDepth[0].Price
}

// LoadBarsCSV reads bars from a CSV file with a
// date,open,high,low,close,volume header. Dates are RFC3339 or
// YYYY-MM-DD.
func LoadBarsCSV(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil { // header
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var bars []Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("csv line %d: want 6 columns, got %d", line, len(rec))
		}

		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		vals := make([]float64, 4)
		for i, col := range rec[1:5] {
			v, err := strconv.ParseFloat(col, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d col %d: %w", line, i+2, err)
			}
			vals[i] = v
		}
		vol, err := strconv.ParseInt(rec[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d volume: %w", line, err)
		}

		bars = append(bars, Bar{
			Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vol,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("bars csv %s: no data rows", path)
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

// Synthetic generates a seeded geometric random walk of daily bars.
// Deterministic for a given seed.
func Synthetic(n int, startPrice float64, seed int64) []Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]Bar, n)
	t0 := time.Date(2026, 1, 5, 9, 15, 0, 0, time.UTC)
	price := startPrice
	for i := range bars {
		drift := rng.NormFloat64() * 0.01
		open := price
		close := open * (1 + drift)
		high := math.Max(open, close) * (1 + rng.Float64()*0.005)
		low := math.Min(open, close) * (1 - rng.Float64()*0.005)
		bars[i] = Bar{
			Time:   t0.AddDate(0, 0, i),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 100000 + rng.Int63n(900000),
		}
		price = close
	}
	return bars
}

// Frames converts bars into environment frames. Features are scale-free
// ratios so the observation stays comparable across price regimes; the
// raw close rides along as the de-normalized reference price. spreadBps
// sets the synthetic bid-ask spread in basis points.
func Frames(bars []Bar, spreadBps float64) []env.Frame {
	if len(bars) == 0 {
		return nil
	}
	base := bars[0].Close
	frames := make([]env.Frame, len(bars))
	for i, b := range bars {
		ret := 0.0
		if i > 0 && bars[i-1].Close > 0 {
			ret = b.Close/bars[i-1].Close - 1
		}
		frames[i] = env.Frame{
			Time: b.Time,
			Features: []float64{
				b.Close/base - 1,
				ret,
				safeRatio(b.High, b.Low) - 1,
				safeRatio(b.Close, b.Open) - 1,
				math.Log1p(float64(b.Volume)),
			},
			Price:  b.Close,
			Spread: b.Close * spreadBps / 10000,
		}
	}
	return frames
}

func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 1
	}
	return a / b
}

// SyntheticQuote builds a quote with depth ladders around the bar close,
// five levels a tick apart on each side.
func SyntheticQuote(bar Bar, seed int64) Quote {
	rng := rand.New(rand.NewSource(seed))
	tick := bar.Close * 0.0005
	if tick <= 0 {
		tick = 0.01
	}

	bids := make([]execsim.DepthLevel, 5)
	asks := make([]execsim.DepthLevel, 5)
	for i := 0; i < 5; i++ {
		qty := 100 + rng.Int63n(400)
		bids[i] = execsim.DepthLevel{Price: bar.Close - tick*float64(i+1), Quantity: qty}
		asks[i] = execsim.DepthLevel{Price: bar.Close + tick*float64(i+1), Quantity: qty}
	}
	return Quote{
		LastPrice: bar.Close,
		BidDepth:  bids,
		AskDepth:  asks,
		Volume:    bar.Volume,
		Timestamp: bar.Time,
	}
}
