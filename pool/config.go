package pool

import (
	"errors"
	"strings"
	"time"
)

// Security thresholds checked by the security monitor.
const (
	failedConnThreshold = 10
	errorRateThreshold  = 10.0 // percent
	staleLeaseAge       = 10 * time.Minute
)

// Config is the per-pool policy. It is read once by New and never
// mutated afterwards.
type Config struct {
	// URL is the default database URL. RegionURLs maps a region tag to a
	// region-specific URL; regions without an entry fall back to URL.
	URL        string
	RegionURLs map[string]string

	MinConns int // warm connections the pool keeps outside shutdown
	MaxConns int // hard ceiling on total connections

	AcquireTimeout      time.Duration // queue wait and dial budget
	IdleTimeout         time.Duration // idle age before reclaim
	MaxLifetime         time.Duration // total age before reclaim
	HealthCheckInterval time.Duration
	SlowQueryThreshold  time.Duration

	// ReplaceMaxElapsed bounds the backoff spent re-creating a removed
	// connection before giving up. Zero takes the default; a negative
	// value disables retries (single attempt).
	ReplaceMaxElapsed time.Duration

	SecurityMonitoring    bool
	SecurityCheckInterval time.Duration
}

var (
	errEmptyURL                = errors.New("pool: empty URL")
	errNegativeMinConns        = errors.New("pool: min conns must be >= 0")
	errNegativeMaxConns        = errors.New("pool: max conns must be >= 0")
	errMinConnsExceedsMaxConns = errors.New("pool: min conns must be <= max conns")
)

const (
	defaultMinConns              = 2
	defaultMaxConns              = 10
	defaultAcquireTimeout        = 5 * time.Second
	defaultIdleTimeout           = 5 * time.Minute
	defaultMaxLifetime           = 30 * time.Minute
	defaultHealthCheckInterval   = 30 * time.Second
	defaultSlowQueryThreshold    = time.Second
	defaultReplaceMaxElapsed     = 30 * time.Second
	defaultSecurityCheckInterval = 5 * time.Minute
)

func (c Config) validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errEmptyURL
	}
	if c.MinConns < 0 {
		return errNegativeMinConns
	}
	if c.MaxConns < 0 {
		return errNegativeMaxConns
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return errMinConnsExceedsMaxConns
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MinConns == 0 {
		c.MinConns = defaultMinConns
	}
	if c.MaxConns == 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = defaultMaxLifetime
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.SlowQueryThreshold <= 0 {
		c.SlowQueryThreshold = defaultSlowQueryThreshold
	}
	if c.ReplaceMaxElapsed < 0 {
		c.ReplaceMaxElapsed = 0
	} else if c.ReplaceMaxElapsed == 0 {
		c.ReplaceMaxElapsed = defaultReplaceMaxElapsed
	}
	if c.SecurityCheckInterval <= 0 {
		c.SecurityCheckInterval = defaultSecurityCheckInterval
	}
	return c
}

// urlFor resolves the dial URL for a region, falling back to the default.
func (c Config) urlFor(region string) string {
	if region != "" {
		if u, ok := c.RegionURLs[region]; ok && strings.TrimSpace(u) != "" {
			return u
		}
	}
	return c.URL
}
