package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name        string
		errorRate   float64
		utilization float64
		want        float64
	}{
		{name: "idle healthy pool", errorRate: 0, utilization: 0, want: 100},
		{name: "errors only", errorRate: 25, utilization: 50, want: 75},
		{name: "utilization below threshold is free", errorRate: 0, utilization: 80, want: 100},
		{name: "utilization above threshold", errorRate: 0, utilization: 100, want: 90},
		{name: "combined", errorRate: 10, utilization: 90, want: 85},
		{name: "clamped at zero", errorRate: 120, utilization: 100, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, healthScore(tt.errorRate, tt.utilization), 1e-9)
		})
	}
}

func TestStatsErrorRate(t *testing.T) {
	var s stats
	assert.Zero(t, s.errorRateLocked(), "no attempts yet")

	s.totalQueries = 9
	s.totalErrors = 1
	assert.InDelta(t, 10.0, s.errorRateLocked(), 1e-9)

	s.totalQueries = 0
	s.totalErrors = 5
	assert.InDelta(t, 100.0, s.errorRateLocked(), 1e-9)
}

func TestStatsRollingAverage(t *testing.T) {
	var s stats

	s.noteQueryLocked(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, s.avgQueryTime)

	s.noteQueryLocked(300 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, s.avgQueryTime)

	s.noteQueryLocked(200 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, s.avgQueryTime)
	assert.Equal(t, uint64(3), s.totalQueries)
}

func TestMetrics_SnapshotIsACopy(t *testing.T) {
	p, _ := newTestPool(t, testConfig())

	m := p.Metrics()
	m.RemovedByReason[ReasonExpired] = 99

	assert.Zero(t, p.Metrics().RemovedByReason[ReasonExpired], "caller mutation does not leak back")
}

func TestMetrics_UtilizationTracksLeases(t *testing.T) {
	p, _ := newTestPool(t, testConfig()) // max=3

	c, err := p.Acquire(context.Background(), "")
	assert.NoError(t, err)

	m := p.Metrics()
	assert.InDelta(t, 100.0/3, m.Performance.ConnectionUtilization, 1e-9)
	p.Release(c)

	assert.Zero(t, p.Metrics().Performance.ConnectionUtilization)
}
