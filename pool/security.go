package pool

import "time"

func (p *Pool) securityLoop() {
	defer p.monitorWG.Done()

	ticker := time.NewTicker(p.cfg.SecurityCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.monitorDone:
			return
		case <-ticker.C:
			p.securityPass()
		}
	}
}

// securityPass inspects aggregate failure statistics and flags
// anomalies. It is advisory: findings are logged and counted, no
// connection is ever revoked here.
func (p *Pool) securityPass() {
	type finding struct {
		msg string
		kv  []any
	}
	var findings []finding

	now := p.clock.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	if failed := p.stats.failedConnections; failed > failedConnThreshold {
		findings = append(findings, finding{
			msg: "elevated connection failures",
			kv:  []any{"failed_connections", failed, "threshold", failedConnThreshold},
		})
	}

	if rate := p.stats.errorRateLocked(); rate > errorRateThreshold {
		findings = append(findings, finding{
			msg: "elevated query error rate",
			kv:  []any{"error_rate_pct", rate, "threshold_pct", errorRateThreshold},
		})
	}

	for _, c := range p.conns {
		if c.active && !c.probing && now.Sub(c.lastUsed) > staleLeaseAge {
			findings = append(findings, finding{
				msg: "long-held connection lease, possible leak",
				kv:  []any{"conn_id", c.id, "held_for", now.Sub(c.lastUsed)},
			})
			break // one finding per pass, regardless of how many leases look stale
		}
	}

	p.stats.suspicious += len(findings)
	p.stats.lastSecurityCheck = now
	p.recomputeMetricsLocked()
	p.mu.Unlock()

	for _, f := range findings {
		p.log.Warnw("security check: "+f.msg, f.kv...)
	}
}
