// Package prommetrics exposes pool metrics as a prometheus Collector.
package prommetrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voltgrid/dbpool/pool"
)

// Source provides pool snapshots; *pool.Pool satisfies it.
type Source interface {
	Metrics() pool.Metrics
}

// Collector converts a Metrics snapshot into prometheus metrics on every
// scrape. It holds no state of its own.
type Collector struct {
	src Source

	totalConns  *prometheus.Desc
	activeConns *prometheus.Desc
	idleConns   *prometheus.Desc
	waiting     *prometheus.Desc

	queriesTotal *prometheus.Desc
	avgQueryTime *prometheus.Desc
	errorRate    *prometheus.Desc
	slowQueries  *prometheus.Desc
	utilization  *prometheus.Desc
	healthScore  *prometheus.Desc

	connsCreated *prometheus.Desc
	connsRemoved *prometheus.Desc

	failedConns *prometheus.Desc
	suspicious  *prometheus.Desc
}

// NewCollector builds a Collector with metric names prefixed by
// namespace (subsystem is fixed to "dbpool").
func NewCollector(src Source, namespace string) (*Collector, error) {
	if src == nil {
		return nil, errors.New("prommetrics: source is nil")
	}

	name := func(suffix string) string {
		return prometheus.BuildFQName(namespace, "dbpool", suffix)
	}

	return &Collector{
		src: src,

		totalConns:  prometheus.NewDesc(name("connections_total"), "Connections currently owned by the pool", nil, nil),
		activeConns: prometheus.NewDesc(name("connections_active"), "Connections currently leased", nil, nil),
		idleConns:   prometheus.NewDesc(name("connections_idle"), "Connections currently idle", nil, nil),
		waiting:     prometheus.NewDesc(name("waiting_requests"), "Acquire calls queued for a connection", nil, nil),

		queriesTotal: prometheus.NewDesc(name("queries_total"), "Successful queries executed through the pool", nil, nil),
		avgQueryTime: prometheus.NewDesc(name("query_time_avg_seconds"), "Rolling average query duration", nil, nil),
		errorRate:    prometheus.NewDesc(name("error_rate_percent"), "Share of queries that failed", nil, nil),
		slowQueries:  prometheus.NewDesc(name("slow_queries_total"), "Queries slower than the configured threshold", nil, nil),
		utilization:  prometheus.NewDesc(name("utilization_percent"), "Leased share of MaxConns", nil, nil),
		healthScore:  prometheus.NewDesc(name("health_score"), "Composite pool health, 0 to 100", nil, nil),

		connsCreated: prometheus.NewDesc(name("connections_created_total"), "Connections established since start", nil, nil),
		connsRemoved: prometheus.NewDesc(name("connections_removed_total"), "Connections removed since start", []string{"reason"}, nil),

		failedConns: prometheus.NewDesc(name("failed_connections_total"), "Connection attempts that failed", nil, nil),
		suspicious:  prometheus.NewDesc(name("suspicious_activity_total"), "Findings flagged by the security monitor", nil, nil),
	}, nil
}

// Register builds a Collector and registers it with reg.
func Register(reg prometheus.Registerer, src Source, namespace string) (*Collector, error) {
	if reg == nil {
		return nil, errors.New("prommetrics: registerer is nil")
	}
	c, err := NewCollector(src, namespace)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.activeConns
	ch <- c.idleConns
	ch <- c.waiting
	ch <- c.queriesTotal
	ch <- c.avgQueryTime
	ch <- c.errorRate
	ch <- c.slowQueries
	ch <- c.utilization
	ch <- c.healthScore
	ch <- c.connsCreated
	ch <- c.connsRemoved
	ch <- c.failedConns
	ch <- c.suspicious
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(c.totalConns, float64(m.TotalConns))
	gauge(c.activeConns, float64(m.ActiveConns))
	gauge(c.idleConns, float64(m.IdleConns))
	gauge(c.waiting, float64(m.WaitingRequests))

	counter(c.queriesTotal, float64(m.TotalQueries))
	gauge(c.avgQueryTime, m.AverageQueryTime.Seconds())
	gauge(c.errorRate, m.ErrorRate)
	counter(c.slowQueries, float64(m.Performance.SlowQueries))
	gauge(c.utilization, m.Performance.ConnectionUtilization)
	gauge(c.healthScore, m.Performance.HealthScore)

	counter(c.connsCreated, float64(m.ConnsCreated))
	for reason, n := range m.RemovedByReason {
		counter(c.connsRemoved, float64(n), reason)
	}

	counter(c.failedConns, float64(m.Security.FailedConnections))
	counter(c.suspicious, float64(m.Security.SuspiciousActivity))
}
