package pool

import (
	"context"
	"time"
)

// Do leases a region-compatible connection, runs fn against its client,
// and releases it whatever the outcome. Successful calls feed the query
// counters and the rolling average; failures that look like connectivity
// loss remove and replace the connection while the original error still
// reaches the caller.
func (p *Pool) Do(ctx context.Context, region string, fn func(ctx context.Context, c Client) error) error {
	conn, err := p.Acquire(ctx, region)
	if err != nil {
		return err
	}

	removed := false
	defer func() {
		if !removed {
			p.Release(conn)
		}
	}()

	conn.activeQueries.Add(1)
	start := time.Now()
	err = fn(ctx, conn.client)
	elapsed := time.Since(start)
	conn.activeQueries.Add(-1)

	if err != nil {
		if !conn.observed {
			conn.errorCount.Add(1)
		}
		p.mu.Lock()
		p.stats.totalErrors++
		p.recomputeMetricsLocked()
		p.mu.Unlock()

		if IsDisconnect(err) {
			removed = true
			p.remove(conn, ReasonConnectivity)
		}
		return err
	}

	if !conn.observed {
		conn.queryCount.Add(1)
		if th := p.cfg.SlowQueryThreshold; th > 0 && elapsed >= th {
			conn.slowQueries.Add(1)
			p.noteSlowQuery()
		}
	}

	p.mu.Lock()
	p.stats.noteQueryLocked(elapsed)
	p.recomputeMetricsLocked()
	p.mu.Unlock()
	return nil
}

// Query is a generic convenience over Do for operations that produce a
// value.
func Query[T any](ctx context.Context, p *Pool, region string, fn func(ctx context.Context, c Client) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, region, func(ctx context.Context, c Client) error {
		v, err := fn(ctx, c)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
