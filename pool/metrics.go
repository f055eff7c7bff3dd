package pool

import "time"

// Removal reasons, used in logs and as the prometheus counter label.
const (
	ReasonExpired      = "expired"
	ReasonIdleTimeout  = "idle_timeout"
	ReasonHealthCheck  = "health_check"
	ReasonConnectivity = "connectivity"
)

// PerformanceMetrics is the performance slice of a Metrics snapshot.
type PerformanceMetrics struct {
	SlowQueries           uint64
	ConnectionUtilization float64 // percent of MaxConns currently leased
	HealthScore           float64 // 0..100
}

// SecurityMetrics is the security slice of a Metrics snapshot.
type SecurityMetrics struct {
	FailedConnections  uint64
	SuspiciousActivity int
	LastSecurityCheck  time.Time
}

// Metrics is a point-in-time snapshot of pool state. It is recomputed
// after every state change and returned by value.
type Metrics struct {
	TotalConns      int
	ActiveConns     int
	IdleConns       int
	WaitingRequests int

	TotalQueries     uint64
	AverageQueryTime time.Duration
	ErrorRate        float64 // percent of queries that failed

	ConnsCreated    uint64
	RemovedByReason map[string]uint64

	Performance PerformanceMetrics
	Security    SecurityMetrics
}

// stats holds the cumulative counters behind Metrics. Guarded by Pool.mu.
type stats struct {
	created         uint64
	removedByReason map[string]uint64

	totalQueries uint64
	totalErrors  uint64
	slowQueries  uint64
	avgQueryTime time.Duration

	failedConnections uint64
	suspicious        int
	lastSecurityCheck time.Time
}

// noteQueryLocked folds one successful query into the rolling average.
func (s *stats) noteQueryLocked(elapsed time.Duration) {
	s.totalQueries++
	s.avgQueryTime += (elapsed - s.avgQueryTime) / time.Duration(s.totalQueries)
}

func (s *stats) errorRateLocked() float64 {
	attempts := s.totalQueries + s.totalErrors
	if attempts == 0 {
		return 0
	}
	return float64(s.totalErrors) / float64(attempts) * 100
}

// Metrics returns the latest snapshot.
func (p *Pool) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pool) recomputeMetricsLocked() {
	p.metrics = p.snapshotLocked()
}

func (p *Pool) snapshotLocked() Metrics {
	active := 0
	for _, c := range p.conns {
		if c.active || c.probing {
			active++
		}
	}
	total := len(p.conns)

	utilization := 0.0
	if p.cfg.MaxConns > 0 {
		utilization = float64(active) / float64(p.cfg.MaxConns) * 100
	}

	removed := make(map[string]uint64, len(p.stats.removedByReason))
	for reason, n := range p.stats.removedByReason {
		removed[reason] = n
	}

	errorRate := p.stats.errorRateLocked()

	return Metrics{
		TotalConns:      total,
		ActiveConns:     active,
		IdleConns:       total - active,
		WaitingRequests: len(p.waiters),

		TotalQueries:     p.stats.totalQueries,
		AverageQueryTime: p.stats.avgQueryTime,
		ErrorRate:        errorRate,

		ConnsCreated:    p.stats.created,
		RemovedByReason: removed,

		Performance: PerformanceMetrics{
			SlowQueries:           p.stats.slowQueries,
			ConnectionUtilization: utilization,
			HealthScore:           healthScore(errorRate, utilization),
		},
		Security: SecurityMetrics{
			FailedConnections:  p.stats.failedConnections,
			SuspiciousActivity: p.stats.suspicious,
			LastSecurityCheck:  p.stats.lastSecurityCheck,
		},
	}
}

// healthScore condenses error rate and saturation into a single 0..100
// gauge: every failed percent costs a point, utilization above 80% costs
// half a point per percent.
func healthScore(errorRate, utilization float64) float64 {
	score := 100 - errorRate
	if utilization > 80 {
		score -= (utilization - 80) / 2
	}
	if score < 0 {
		return 0
	}
	return score
}

func (p *Pool) noteSlowQuery() {
	p.mu.Lock()
	p.stats.slowQueries++
	p.recomputeMetricsLocked()
	p.mu.Unlock()
}
