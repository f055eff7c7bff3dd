package pool

import (
	"context"
	"time"
)

const probeTimeout = 3 * time.Second

func (p *Pool) startMonitors() {
	p.monitorWG.Add(1)
	go p.healthLoop()

	if p.cfg.SecurityMonitoring {
		p.monitorWG.Add(1)
		go p.securityLoop()
	}
}

func (p *Pool) healthLoop() {
	defer p.monitorWG.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.monitorDone:
			return
		case <-ticker.C:
			p.healthPass()
		}
	}
}

// healthPass reclaims connections in one sweep: expired first, then idle
// past the idle timeout (but never below MinConns), then idle
// connections that fail a ping probe. Removal happens after the sweep so
// auto-replacement sees the final pool size.
func (p *Pool) healthPass() {
	type victim struct {
		conn   *Conn
		reason string
	}
	var victims []victim
	var probes []*Conn

	now := p.clock.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	remaining := len(p.conns)
	for _, c := range p.conns {
		switch {
		case now.Sub(c.createdAt) > p.cfg.MaxLifetime:
			victims = append(victims, victim{c, ReasonExpired})
			remaining--
		case c.active || c.probing:
			// leased, out of scope for idle scans
		case now.Sub(c.lastUsed) > p.cfg.IdleTimeout && remaining > p.cfg.MinConns:
			victims = append(victims, victim{c, ReasonIdleTimeout})
			remaining--
		default:
			// probe lease: keeps Acquire away while the ping is in flight
			c.probing = true
			probes = append(probes, c)
		}
	}
	p.mu.Unlock()

	for _, c := range probes {
		if err := p.probe(c); err != nil {
			p.log.Warnw("health probe failed", "conn_id", c.id, "err", err)
			victims = append(victims, victim{c, ReasonHealthCheck})
		}
	}

	p.mu.Lock()
	for _, c := range probes {
		c.probing = false
	}
	p.recomputeMetricsLocked()
	p.mu.Unlock()

	for _, v := range victims {
		p.remove(v.conn, v.reason)
	}

	// Top up after startup dial failures or replacements that ran out of
	// backoff budget. Each replacement re-checks the deficit before dialing.
	p.mu.Lock()
	deficit := 0
	if !p.closed {
		deficit = p.cfg.MinConns - len(p.conns) - p.reserved
	}
	p.mu.Unlock()
	for i := 0; i < deficit; i++ {
		p.scheduleReplacement("")
	}

	p.log.Debugw("health check pass",
		"probed", len(probes),
		"removed", len(victims),
		"total_conns", p.Metrics().TotalConns,
	)
}

func (p *Pool) probe(c *Conn) error {
	ctx, cancel := context.WithTimeout(p.baseCtx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := c.client.Ping(ctx)
	c.setHealth(err == nil, p.clock.Now(), time.Since(start))
	return err
}
