// Package alerts fans rate-limited alerts out to configured sinks.
// Rate limiting is per alert type, behind a shared thread-safe limiter
// map, so a flapping condition cannot spam every channel.
package alerts

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantarc/tradesim/internal/observ"
)

// Severity classifies alerts; sinks may filter on it.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Sink delivers a formatted alert to one external channel.
type Sink interface {
	Send(subject, body string, severity Severity) error
}

// Alert is one entry in the bounded alert history.
type Alert struct {
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const historyLimit = 100

// Manager deduplicates alerts per type and delivers them to every sink.
// Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	sinks       []Sink
	limiters    map[string]*rate.Limiter
	minInterval time.Duration
	history     []Alert
}

// NewManager builds a manager that allows one alert per type per
// minInterval. Zero minInterval disables rate limiting.
func NewManager(minInterval time.Duration, sinks ...Sink) *Manager {
	return &Manager{
		sinks:       sinks,
		limiters:    make(map[string]*rate.Limiter),
		minInterval: minInterval,
	}
}

// Alert records and delivers one alert unless the type is rate limited.
// Returns true if the alert was delivered.
func (m *Manager) Alert(alertType string, severity Severity, message string) bool {
	m.mu.Lock()
	if !m.allowLocked(alertType) {
		m.mu.Unlock()
		observ.IncCounter("alerts_suppressed_total", map[string]string{"type": alertType})
		return false
	}

	m.history = append(m.history, Alert{
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
	sinks := make([]Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.mu.Unlock()

	subject := string(severity) + ": " + alertType
	for _, sink := range sinks {
		if err := sink.Send(subject, message, severity); err != nil {
			observ.IncCounter("alert_sink_errors_total", map[string]string{"type": alertType})
			observ.Log("alert_sink_error", map[string]any{"type": alertType, "error": err.Error()})
		}
	}
	observ.IncCounter("alerts_sent_total", map[string]string{"type": alertType, "severity": string(severity)})
	return true
}

// History returns a copy of the recent alert tail.
func (m *Manager) History() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Manager) allowLocked(alertType string) bool {
	if m.minInterval <= 0 {
		return true
	}
	lim, ok := m.limiters[alertType]
	if !ok {
		lim = rate.NewLimiter(rate.Every(m.minInterval), 1)
		m.limiters[alertType] = lim
	}
	return lim.Allow()
}
