// Package pool implements a client-agnostic database connection pool
// with a FIFO waiter queue, periodic health and security monitoring,
// and graceful shutdown.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voltgrid/dbpool/foundation/logger"
	"github.com/voltgrid/dbpool/foundation/retry"
	"github.com/voltgrid/dbpool/foundation/timeutil"
)

const closeTimeout = 5 * time.Second

type waitResult struct {
	conn *Conn
	err  error
}

// waiter is one queued Acquire call. It is resolved exactly once: by a
// released connection, by its timeout, by caller cancellation, or by
// shutdown.
type waiter struct {
	region string
	ch     chan waitResult // buffered, the resolver never blocks
	timer  *time.Timer
}

// Pool owns a bounded set of client handles. Construct with New, pass by
// reference, and call Shutdown when done; there is no package-level
// instance.
type Pool struct {
	cfg    Config
	dialer Dialer
	log    logger.Logger
	clock  timeutil.Clock

	mu       sync.Mutex
	conns    map[string]*Conn
	waiters  []*waiter
	reserved int // slots held by in-flight dials, counted against MaxConns
	closed   bool

	stats   stats
	metrics Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc

	monitorDone chan struct{}
	monitorWG   sync.WaitGroup
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithDialer sets the client factory. Required.
func WithDialer(d Dialer) Option { return func(p *Pool) { p.dialer = d } }

// WithLogger sets the log sink. Defaults to a no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClock sets the time source, for deterministic lifetime and idle
// accounting in tests. Defaults to UTC system time.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pool) {
		if c != nil {
			p.clock = c
		}
	}
}

// New validates cfg, warms the pool up to MinConns (individual dial
// failures are logged, not fatal), and starts the monitors.
func New(ctx context.Context, cfg Config, opts ...Option) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:         cfg,
		log:         logger.Nop(),
		clock:       timeutil.UTCClock{},
		conns:       make(map[string]*Conn),
		monitorDone: make(chan struct{}),
	}
	p.stats.removedByReason = make(map[string]uint64)
	for _, opt := range opts {
		opt(p)
	}
	if p.dialer == nil {
		return nil, errDialerRequired
	}
	p.baseCtx, p.baseCancel = context.WithCancel(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.MinConns; i++ {
		if !p.reserveSlot() {
			break
		}
		g.Go(func() error {
			if _, err := p.connect(gctx, "", false); err != nil {
				p.log.Warnw("startup connection failed", "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.startMonitors()
	p.log.Infow("pool started",
		"min_conns", cfg.MinConns,
		"max_conns", cfg.MaxConns,
		"warm_conns", p.Metrics().TotalConns,
	)
	return p, nil
}

// Acquire leases a connection, preferring an idle one tagged with region
// (empty region matches any). With no idle match it dials a new
// connection while below MaxConns, otherwise it queues FIFO behind
// earlier callers until a connection is released, AcquireTimeout fires,
// or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context, region string) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrShuttingDown
	}

	if c := p.idleConnLocked(region); c != nil {
		c.active = true
		c.lastUsed = p.clock.Now()
		p.recomputeMetricsLocked()
		p.mu.Unlock()
		return c, nil
	}

	if len(p.conns)+p.reserved < p.cfg.MaxConns {
		p.reserved++
		p.mu.Unlock()
		return p.connect(ctx, region, true)
	}

	w := &waiter{region: region, ch: make(chan waitResult, 1)}
	p.waiters = append(p.waiters, w)
	w.timer = time.AfterFunc(p.cfg.AcquireTimeout, func() { p.expireWaiter(w) })
	p.recomputeMetricsLocked()
	p.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.conn, res.err
	case <-ctx.Done():
		p.dropWaiter(w)
		// The handoff may have raced the cancellation; give the
		// connection back rather than leak the lease.
		select {
		case res := <-w.ch:
			if res.conn != nil {
				p.Release(res.conn)
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Release returns a leased connection. If callers are queued, the
// connection is handed to the longest-waiting compatible one instead of
// going idle. Releasing a connection the pool no longer tracks is a
// warned no-op.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if cur, ok := p.conns[c.id]; !ok || cur != c {
		p.mu.Unlock()
		p.log.Warnw("release of unknown connection", "conn_id", c.id)
		return
	}
	c.lastUsed = p.clock.Now()

	if w := p.takeWaiterLocked(c.region); w != nil {
		c.active = true
		p.recomputeMetricsLocked()
		p.mu.Unlock()
		w.ch <- waitResult{conn: c}
		return
	}

	c.active = false
	p.recomputeMetricsLocked()
	p.mu.Unlock()
}

// idleConnLocked picks an idle connection compatible with region.
func (p *Pool) idleConnLocked(region string) *Conn {
	for _, c := range p.conns {
		if c.active || c.probing {
			continue
		}
		if region != "" && c.region != region {
			continue
		}
		return c
	}
	return nil
}

// takeWaiterLocked pops the longest-waiting waiter a connection with the
// given region tag can serve.
func (p *Pool) takeWaiterLocked(region string) *waiter {
	for i, w := range p.waiters {
		if w.region != "" && w.region != region {
			continue
		}
		p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
		w.timer.Stop()
		return w
	}
	return nil
}

// expireWaiter resolves a queued waiter with ErrAcquireTimeout. A no-op
// if the waiter was already served or dropped.
func (p *Pool) expireWaiter(w *waiter) {
	if !p.removeWaiter(w) {
		return
	}
	w.ch <- waitResult{err: ErrAcquireTimeout}
}

// dropWaiter removes a cancelled waiter from the queue.
func (p *Pool) dropWaiter(w *waiter) {
	if p.removeWaiter(w) {
		w.timer.Stop()
	}
}

func (p *Pool) removeWaiter(w *waiter) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, queued := range p.waiters {
		if queued == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.recomputeMetricsLocked()
			return true
		}
	}
	return false
}

// reserveSlot claims capacity for an upcoming dial. connect releases the
// reservation whichever way the dial ends.
func (p *Pool) reserveSlot() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.conns)+p.reserved >= p.cfg.MaxConns {
		return false
	}
	p.reserved++
	return true
}

// connect dials a new connection against a previously reserved slot,
// subscribes the observer when the client supports it, and runs the
// initial probe. With lease set the connection comes back already
// marked active.
func (p *Pool) connect(ctx context.Context, region string, lease bool) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	client, err := p.dialer.Dial(dialCtx, p.cfg.urlFor(region))
	if err != nil {
		p.noteConnectFailure(region, err)
		return nil, &ConnectError{Region: region, Err: err}
	}

	now := p.clock.Now()
	c := &Conn{
		id:        uuid.NewString(),
		region:    region,
		client:    client,
		createdAt: now,
		lastUsed:  now,
	}
	if o, ok := client.(Observable); ok {
		o.Subscribe(&connObserver{pool: p, conn: c})
		c.observed = true
	}

	start := time.Now()
	if err := client.Ping(dialCtx); err != nil {
		p.closeClient(client)
		p.noteConnectFailure(region, err)
		return nil, &ConnectError{Region: region, Err: err}
	}
	c.setHealth(true, now, time.Since(start))

	p.mu.Lock()
	if p.reserved > 0 {
		p.reserved--
	}
	if p.closed {
		p.mu.Unlock()
		p.closeClient(client)
		return nil, ErrShuttingDown
	}
	c.active = lease
	p.conns[c.id] = c
	p.stats.created++
	p.recomputeMetricsLocked()
	p.mu.Unlock()

	p.log.Debugw("connection established", "conn_id", c.id, "region", region)
	return c, nil
}

func (p *Pool) noteConnectFailure(region string, err error) {
	p.mu.Lock()
	if p.reserved > 0 {
		p.reserved--
	}
	p.stats.failedConnections++
	p.recomputeMetricsLocked()
	p.mu.Unlock()
	p.log.Warnw("connection attempt failed", "region", region, "err", err)
}

// remove drops a connection from the pool, closes its client, and
// schedules a replacement when the pool fell below MinConns.
func (p *Pool) remove(c *Conn, reason string) {
	p.mu.Lock()
	if cur, ok := p.conns[c.id]; !ok || cur != c {
		p.mu.Unlock()
		return
	}
	delete(p.conns, c.id)
	p.stats.removedByReason[reason]++
	below := !p.closed && len(p.conns)+p.reserved < p.cfg.MinConns
	p.recomputeMetricsLocked()
	p.mu.Unlock()

	p.closeClient(c.client)
	p.log.Infow("connection removed", "conn_id", c.id, "reason", reason)

	if below {
		p.scheduleReplacement(c.region)
	}
}

// scheduleReplacement re-creates a removed connection in the background
// with bounded backoff, so a down database produces a finite amount of
// dial churn instead of a retry storm.
func (p *Pool) scheduleReplacement(region string) {
	go func() {
		err := retry.Bounded(p.baseCtx, p.cfg.ReplaceMaxElapsed, func() error {
			p.mu.Lock()
			if p.closed || len(p.conns)+p.reserved >= p.cfg.MinConns {
				p.mu.Unlock()
				return nil // someone else refilled the pool
			}
			p.reserved++
			p.mu.Unlock()

			_, err := p.connect(p.baseCtx, region, false)
			if errors.Is(err, ErrShuttingDown) {
				return retry.Permanent(err)
			}
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrShuttingDown) {
			p.log.Warnw("replacement connection could not be established", "region", region, "err", err)
		}
	}()
}

func (p *Pool) closeClient(client Client) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		p.log.Warnw("client close failed", "err", err)
	}
}

// Shutdown stops the monitors, rejects queued waiters with
// ErrShuttingDown, and closes every connection in parallel. Per-client
// close failures are logged, never fatal; Shutdown is idempotent.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.baseCancel()
	close(p.monitorDone)
	p.monitorWG.Wait()

	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.conns = make(map[string]*Conn)
	p.recomputeMetricsLocked()
	p.mu.Unlock()

	for _, w := range waiters {
		w.timer.Stop()
		w.ch <- waitResult{err: ErrShuttingDown}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range conns {
		g.Go(func() error {
			if err := c.client.Close(gctx); err != nil {
				p.log.Warnw("connection close failed during shutdown", "conn_id", c.id, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	p.log.Infow("pool shut down", "connections_closed", len(conns), "waiters_rejected", len(waiters))
	p.log.SafeSync()
	return nil
}
