package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityPass_QuietPoolFlagsNothing(t *testing.T) {
	clock := frozenNow()
	p, _ := newTestPool(t, testConfig(), WithClock(clock))

	p.securityPass()

	m := p.Metrics()
	assert.Zero(t, m.Security.SuspiciousActivity)
	assert.Equal(t, clock.Now(), m.Security.LastSecurityCheck)
}

func TestSecurityPass_FlagsConnectionFailures(t *testing.T) {
	p, _ := newTestPool(t, testConfig())

	p.mu.Lock()
	p.stats.failedConnections = failedConnThreshold + 1
	p.mu.Unlock()

	p.securityPass()
	assert.Equal(t, 1, p.Metrics().Security.SuspiciousActivity)

	// Counter is cumulative across passes.
	p.securityPass()
	assert.Equal(t, 2, p.Metrics().Security.SuspiciousActivity)
}

func TestSecurityPass_FlagsErrorRate(t *testing.T) {
	p, _ := newTestPool(t, testConfig())

	p.mu.Lock()
	p.stats.totalQueries = 8
	p.stats.totalErrors = 2 // 20% of attempts
	p.mu.Unlock()

	p.securityPass()
	assert.Equal(t, 1, p.Metrics().Security.SuspiciousActivity)
}

func TestSecurityPass_FlagsStaleLease(t *testing.T) {
	clock := frozenNow()
	p, _ := newTestPool(t, testConfig(), WithClock(clock))

	c, err := p.Acquire(context.Background(), "")
	require.NoError(t, err)

	clock.Advance(staleLeaseAge + time.Minute)
	p.securityPass()

	assert.Equal(t, 1, p.Metrics().Security.SuspiciousActivity)
	p.Release(c)
}

func TestSecurityPass_IndependentConditionsAccumulate(t *testing.T) {
	clock := frozenNow()
	p, _ := newTestPool(t, testConfig(), WithClock(clock))

	c, err := p.Acquire(context.Background(), "")
	require.NoError(t, err)

	p.mu.Lock()
	p.stats.failedConnections = failedConnThreshold + 5
	p.stats.totalQueries = 1
	p.stats.totalErrors = 1
	p.mu.Unlock()
	clock.Advance(staleLeaseAge + time.Minute)

	p.securityPass()
	assert.Equal(t, 3, p.Metrics().Security.SuspiciousActivity)
	p.Release(c)
}

func TestSecurityLoop_RunsWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SecurityMonitoring = true
	cfg.SecurityCheckInterval = 10 * time.Millisecond
	p, _ := newTestPool(t, cfg)

	p.mu.Lock()
	p.stats.failedConnections = failedConnThreshold + 1
	p.mu.Unlock()

	require.Eventually(t, func() bool {
		return p.Metrics().Security.SuspiciousActivity >= 1
	}, 3*time.Second, 5*time.Millisecond)
}
