package pool

import (
	"sync"
	"sync/atomic"
	"time"
)

// HealthSnapshot is the result of the most recent probe of a connection.
type HealthSnapshot struct {
	Healthy      bool
	LastCheck    time.Time
	ResponseTime time.Duration
}

// Conn is a pooled connection handle. A Conn is either idle (owned by the
// pool, eligible for reuse and reclaim) or leased (held by one caller
// between Acquire and Release); never both.
type Conn struct {
	id     string
	region string
	client Client

	// observed is set when the client accepted an Observer subscription;
	// Do then leaves per-connection counters to the driver events.
	observed bool

	// Guarded by the owning pool's mutex.
	active    bool
	probing   bool // leased by the health monitor for a ping
	createdAt time.Time
	lastUsed  time.Time

	queryCount    atomic.Uint64
	errorCount    atomic.Uint64
	slowQueries   atomic.Uint64
	activeQueries atomic.Int64

	healthMu sync.Mutex
	health   HealthSnapshot
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) Region() string { return c.region }

// Client exposes the underlying handle for direct use between Acquire
// and Release.
func (c *Conn) Client() Client { return c.client }

func (c *Conn) QueryCount() uint64   { return c.queryCount.Load() }
func (c *Conn) ErrorCount() uint64   { return c.errorCount.Load() }
func (c *Conn) SlowQueries() uint64  { return c.slowQueries.Load() }
func (c *Conn) ActiveQueries() int64 { return c.activeQueries.Load() }

func (c *Conn) Health() HealthSnapshot {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	return c.health
}

func (c *Conn) setHealth(healthy bool, at time.Time, rt time.Duration) {
	c.healthMu.Lock()
	c.health = HealthSnapshot{Healthy: healthy, LastCheck: at, ResponseTime: rt}
	c.healthMu.Unlock()
}

// connObserver feeds driver-level query events into connection counters.
type connObserver struct {
	pool *Pool
	conn *Conn
}

func (o *connObserver) QueryCompleted(elapsed time.Duration) {
	o.conn.queryCount.Add(1)
	if th := o.pool.cfg.SlowQueryThreshold; th > 0 && elapsed >= th {
		o.conn.slowQueries.Add(1)
		o.pool.noteSlowQuery()
	}
}

func (o *connObserver) QueryFailed(err error) {
	o.conn.errorCount.Add(1)
	o.pool.log.Debugw("client query failed", "conn_id", o.conn.id, "err", err)
}

func (o *connObserver) Notice(msg string) {
	o.pool.log.Debugw("client notice", "conn_id", o.conn.id, "notice", msg)
}
