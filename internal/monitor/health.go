package monitor

import (
	"sync"
	"time"

	"github.com/quantarc/tradesim/internal/marketdata"
	"github.com/quantarc/tradesim/internal/observ"
)

// Health status levels.
const (
	StatusHealthy  = "HEALTHY"
	StatusDegraded = "DEGRADED"
	StatusCritical = "CRITICAL"
)

// HealthStatus is the scored health snapshot. The score starts at 100 and
// loses fixed penalties for latency breach, elevated error rate, and
// stale data.
type HealthStatus struct {
	Status            string  `json:"status"`
	Score             int     `json:"score"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ConsecutiveErrors int     `json:"consecutive_errors"`
	DataFresh         bool    `json:"data_fresh"`
}

const (
	healthWindow     = 100
	errorRateWindow  = 5 * time.Minute
	latencyPenalty   = 20
	errorRatePenalty = 30
	stalePenalty     = 50
)

type errorRecord struct {
	at   time.Time
	kind string
}

// Health tracks data-feed latency, error streaks, and data freshness.
type Health struct {
	mu           sync.Mutex
	maxLatencyMs float64
	staleAfter   time.Duration

	latencies         []float64
	errors            []errorRecord
	consecutiveErrors int
	lastDataUpdate    time.Time
}

// NewHealth builds a monitor that flags latencies above maxLatencyMs and
// data older than staleAfter.
func NewHealth(maxLatencyMs float64, staleAfter time.Duration) *Health {
	return &Health{maxLatencyMs: maxLatencyMs, staleAfter: staleAfter}
}

// RecordLatency notes one data-feed latency sample.
func (h *Health) RecordLatency(ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latencies = append(h.latencies, ms)
	if len(h.latencies) > healthWindow {
		h.latencies = h.latencies[len(h.latencies)-healthWindow:]
	}
	if ms > h.maxLatencyMs {
		observ.Log("high_latency", map[string]any{"latency_ms": ms, "threshold_ms": h.maxLatencyMs})
	}
}

// RecordError notes one system error; consecutive errors accumulate until
// ClearErrors.
func (h *Health) RecordError(kind, msg string, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errors = append(h.errors, errorRecord{at: now, kind: kind})
	if len(h.errors) > healthWindow {
		h.errors = h.errors[len(h.errors)-healthWindow:]
	}
	h.consecutiveErrors++
	observ.IncCounter("monitor_errors_total", map[string]string{"kind": kind})
	observ.Log("monitor_error", map[string]any{"kind": kind, "message": msg, "consecutive": h.consecutiveErrors})
}

// ClearErrors resets the consecutive-error streak after a successful
// operation.
func (h *Health) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveErrors = 0
}

// CheckDataQuality validates a quote and marks the feed as updated when
// it passes.
func (h *Health) CheckDataQuality(q marketdata.Quote, now time.Time) bool {
	ok := q.LastPrice > 0 && q.Volume >= 0 && !q.Timestamp.IsZero()

	h.mu.Lock()
	defer h.mu.Unlock()

	if ok {
		h.lastDataUpdate = now
	} else {
		observ.Log("data_quality_failed", map[string]any{
			"last_price": q.LastPrice, "volume": q.Volume,
		})
	}
	return ok
}

// Fresh reports whether valid data arrived within the staleness window.
func (h *Health) Fresh(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freshLocked(now)
}

func (h *Health) freshLocked(now time.Time) bool {
	if h.lastDataUpdate.IsZero() {
		return false
	}
	return now.Sub(h.lastDataUpdate) <= h.staleAfter
}

// Status computes the scored health snapshot at now.
func (h *Health) Status(now time.Time) HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	avgLatency := 0.0
	if len(h.latencies) > 0 {
		for _, l := range h.latencies {
			avgLatency += l
		}
		avgLatency /= float64(len(h.latencies))
	}

	recentErrors := 0
	for _, e := range h.errors {
		if now.Sub(e.at) < errorRateWindow {
			recentErrors++
		}
	}
	errorRate := float64(recentErrors) / errorRateWindow.Minutes()

	fresh := h.freshLocked(now)

	score := 100
	if avgLatency > h.maxLatencyMs {
		score -= latencyPenalty
	}
	if errorRate > 0.1 {
		score -= errorRatePenalty
	}
	if !fresh {
		score -= stalePenalty
	}
	if score < 0 {
		score = 0
	}

	status := StatusHealthy
	if score < 80 {
		status = StatusDegraded
	}
	if score < 50 {
		status = StatusCritical
	}

	return HealthStatus{
		Status:            status,
		Score:             score,
		AvgLatencyMs:      avgLatency,
		ErrorRate:         errorRate,
		ConsecutiveErrors: h.consecutiveErrors,
		DataFresh:         fresh,
	}
}
