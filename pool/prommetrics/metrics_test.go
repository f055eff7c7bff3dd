//go:build unit

package prommetrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltgrid/dbpool/pool"
)

type staticSource struct {
	m pool.Metrics
}

func (s staticSource) Metrics() pool.Metrics { return s.m }

func snapshot() pool.Metrics {
	return pool.Metrics{
		TotalConns:       3,
		ActiveConns:      2,
		IdleConns:        1,
		WaitingRequests:  4,
		TotalQueries:     120,
		AverageQueryTime: 250 * time.Millisecond,
		ErrorRate:        5,
		ConnsCreated:     7,
		RemovedByReason: map[string]uint64{
			pool.ReasonExpired:      2,
			pool.ReasonConnectivity: 1,
		},
		Performance: pool.PerformanceMetrics{
			SlowQueries:           6,
			ConnectionUtilization: 66.7,
			HealthScore:           95,
		},
		Security: pool.SecurityMetrics{
			FailedConnections:  1,
			SuspiciousActivity: 2,
		},
	}
}

func TestNewCollector_NilSource(t *testing.T) {
	_, err := NewCollector(nil, "app")
	assert.Error(t, err)
}

func TestCollector_Collect(t *testing.T) {
	c, err := NewCollector(staticSource{m: snapshot()}, "app")
	require.NoError(t, err)

	expected := `
		# HELP app_dbpool_connections_total Connections currently owned by the pool
		# TYPE app_dbpool_connections_total gauge
		app_dbpool_connections_total 3
		# HELP app_dbpool_connections_active Connections currently leased
		# TYPE app_dbpool_connections_active gauge
		app_dbpool_connections_active 2
		# HELP app_dbpool_connections_idle Connections currently idle
		# TYPE app_dbpool_connections_idle gauge
		app_dbpool_connections_idle 1
		# HELP app_dbpool_waiting_requests Acquire calls queued for a connection
		# TYPE app_dbpool_waiting_requests gauge
		app_dbpool_waiting_requests 4
		# HELP app_dbpool_queries_total Successful queries executed through the pool
		# TYPE app_dbpool_queries_total counter
		app_dbpool_queries_total 120
		# HELP app_dbpool_query_time_avg_seconds Rolling average query duration
		# TYPE app_dbpool_query_time_avg_seconds gauge
		app_dbpool_query_time_avg_seconds 0.25
		# HELP app_dbpool_connections_removed_total Connections removed since start
		# TYPE app_dbpool_connections_removed_total counter
		app_dbpool_connections_removed_total{reason="connectivity"} 1
		app_dbpool_connections_removed_total{reason="expired"} 2
		# HELP app_dbpool_suspicious_activity_total Findings flagged by the security monitor
		# TYPE app_dbpool_suspicious_activity_total counter
		app_dbpool_suspicious_activity_total 2
	`
	err = testutil.CollectAndCompare(c, strings.NewReader(expected),
		"app_dbpool_connections_total",
		"app_dbpool_connections_active",
		"app_dbpool_connections_idle",
		"app_dbpool_waiting_requests",
		"app_dbpool_queries_total",
		"app_dbpool_query_time_avg_seconds",
		"app_dbpool_connections_removed_total",
		"app_dbpool_suspicious_activity_total",
	)
	assert.NoError(t, err)
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	src := staticSource{m: snapshot()}

	_, err := Register(reg, src, "app")
	require.NoError(t, err)

	// Double registration of an identical collector is tolerated.
	_, err = Register(reg, src, "app")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"app_dbpool_error_rate_percent",
		"app_dbpool_slow_queries_total",
		"app_dbpool_utilization_percent",
		"app_dbpool_health_score",
		"app_dbpool_connections_created_total",
		"app_dbpool_failed_connections_total",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestRegister_NilRegisterer(t *testing.T) {
	_, err := Register(nil, staticSource{}, "app")
	assert.Error(t, err)
}
