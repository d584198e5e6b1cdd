package alerts

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (c *captureSink) Send(subject, body string, severity Severity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("sink down")
	}
	c.sent = append(c.sent, subject)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestAlertFanOut(t *testing.T) {
	t.Parallel()

	a, b := &captureSink{}, &captureSink{}
	m := NewManager(0, a, b)

	require.True(t, m.Alert("stop_loss", SeverityWarning, "stopped out"))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, "WARNING: stop_loss", a.sent[0])
}

func TestRateLimitPerType(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	m := NewManager(time.Hour, sink)

	assert.True(t, m.Alert("circuit_breaker", SeverityCritical, "tripped"))
	assert.False(t, m.Alert("circuit_breaker", SeverityCritical, "tripped again"))

	// A different type is not affected.
	assert.True(t, m.Alert("large_loss", SeverityWarning, "big loss"))
	assert.Equal(t, 2, sink.count())
}

func TestSinkErrorDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bad := &captureSink{fail: true}
	good := &captureSink{}
	m := NewManager(0, bad, good)

	require.True(t, m.Alert("system_health", SeverityCritical, "degraded"))
	assert.Equal(t, 1, good.count())
}

func TestHistoryBounded(t *testing.T) {
	t.Parallel()

	m := NewManager(0, LogSink{})
	for i := 0; i < historyLimit+20; i++ {
		m.Alert("churn", SeverityInfo, "x")
	}
	assert.Len(t, m.History(), historyLimit)
}
