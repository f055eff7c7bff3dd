// Package metrics serves pool metrics and health over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	// Registry to serve; a fresh one is created when nil. Register the
	// pool collector (pool/prommetrics) against it.
	Registry *prometheus.Registry

	// Health must respect ctx.Done() and return promptly on cancellation.
	Health func(ctx context.Context) error

	MetricsPath string // default /metrics
	HealthPath  string // default /health

	HealthTimeout time.Duration // default 500ms

	// DisableRuntimeCollectors skips the process and Go collectors.
	DisableRuntimeCollectors bool
}

// New builds an http.Handler exposing the metrics and health endpoints
// and returns the registry it serves.
func New(opts Options) (http.Handler, *prometheus.Registry) {
	metricsPath := normalizePath(opts.MetricsPath, "/metrics")
	healthPath := normalizePath(opts.HealthPath, "/health")

	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = 500 * time.Millisecond
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	if !opts.DisableRuntimeCollectors {
		registerCollector(reg, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registerCollector(reg, collectors.NewGoCollector())
	}

	mux := http.NewServeMux()

	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})

	mux.HandleFunc(metricsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		metricsHandler.ServeHTTP(w, r)
	})

	mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		runHealthCheck(w, r, opts.Health, healthTimeout)
	})

	return mux, reg
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return
		}
	}
}

func runHealthCheck(w http.ResponseWriter, r *http.Request, check func(context.Context) error, timeout time.Duration) {
	if check == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	case <-ctx.Done():
		w.Header().Set("Retry-After", "1")
		http.Error(w, "health check timeout", http.StatusServiceUnavailable)
	}
}

func normalizePath(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = def
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func methodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
