package pool

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by FromEnv. Every Config field has one;
// unset or unparsable values keep the code defaults.
const (
	EnvURL                   = "DBPOOL_URL"
	EnvMinConns              = "DBPOOL_MIN_CONNS"
	EnvMaxConns              = "DBPOOL_MAX_CONNS"
	EnvAcquireTimeout        = "DBPOOL_ACQUIRE_TIMEOUT"
	EnvIdleTimeout           = "DBPOOL_IDLE_TIMEOUT"
	EnvMaxLifetime           = "DBPOOL_MAX_LIFETIME"
	EnvHealthCheckInterval   = "DBPOOL_HEALTH_CHECK_INTERVAL"
	EnvSlowQueryThreshold    = "DBPOOL_SLOW_QUERY_THRESHOLD"
	EnvReplaceMaxElapsed     = "DBPOOL_REPLACE_MAX_ELAPSED"
	EnvSecurityMonitoring    = "DBPOOL_SECURITY_MONITORING"
	EnvSecurityCheckInterval = "DBPOOL_SECURITY_CHECK_INTERVAL"

	// Region URLs use one variable per region, e.g.
	// DBPOOL_REGION_URL_EU_WEST=postgres://... becomes region "eu-west".
	envRegionURLPrefix = "DBPOOL_REGION_URL_"
)

// FromEnv builds a Config from environment variables with code defaults.
func FromEnv() Config {
	cfg := Config{
		URL:                   strings.TrimSpace(os.Getenv(EnvURL)),
		MinConns:              envInt(EnvMinConns, 0),
		MaxConns:              envInt(EnvMaxConns, 0),
		AcquireTimeout:        envDuration(EnvAcquireTimeout, 0),
		IdleTimeout:           envDuration(EnvIdleTimeout, 0),
		MaxLifetime:           envDuration(EnvMaxLifetime, 0),
		HealthCheckInterval:   envDuration(EnvHealthCheckInterval, 0),
		SlowQueryThreshold:    envDuration(EnvSlowQueryThreshold, 0),
		ReplaceMaxElapsed:     envDuration(EnvReplaceMaxElapsed, 0),
		SecurityMonitoring:    envBool(EnvSecurityMonitoring, true),
		SecurityCheckInterval: envDuration(EnvSecurityCheckInterval, 0),
	}

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envRegionURLPrefix) {
			continue
		}
		region := regionFromEnvName(name)
		if region == "" || strings.TrimSpace(value) == "" {
			continue
		}
		if cfg.RegionURLs == nil {
			cfg.RegionURLs = map[string]string{}
		}
		cfg.RegionURLs[region] = strings.TrimSpace(value)
	}

	return cfg
}

func regionFromEnvName(name string) string {
	suffix := strings.TrimPrefix(name, envRegionURLPrefix)
	return strings.ReplaceAll(strings.ToLower(suffix), "_", "-")
}

func envInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func envBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
