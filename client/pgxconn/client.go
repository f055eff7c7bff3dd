// Package pgxconn adapts a single pgx connection to the pool client
// interface. Query events reach the pool observer through a pgx tracer,
// server notices through the pgconn notice handler.
package pgxconn

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voltgrid/dbpool/pool"
)

// Client wraps one *pgx.Conn. The pool manages pooling; each Client is a
// single connection.
type Client struct {
	conn   *pgx.Conn
	tracer *tracer
}

// Dialer dials pgx connections from a URL.
type Dialer struct{}

func (Dialer) Dial(ctx context.Context, url string) (pool.Client, error) {
	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	tr := &tracer{}
	cfg.Tracer = tr
	cfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		tr.notice(n.Message)
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, tracer: tr}, nil
}

func (c *Client) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

func (c *Client) Close(ctx context.Context) error { return c.conn.Close(ctx) }

// Subscribe wires the pool observer into the tracer.
func (c *Client) Subscribe(o pool.Observer) { c.tracer.subscribe(o) }

// Conn exposes the raw pgx connection for queries.
func (c *Client) Conn() *pgx.Conn { return c.conn }

type ctxKey struct{}

// tracer implements pgx.QueryTracer and forwards timing to the observer.
type tracer struct {
	mu  sync.RWMutex
	obs pool.Observer
}

func (t *tracer) subscribe(o pool.Observer) {
	t.mu.Lock()
	t.obs = o
	t.mu.Unlock()
}

func (t *tracer) observer() pool.Observer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.obs
}

func (t *tracer) notice(msg string) {
	if o := t.observer(); o != nil {
		o.Notice(msg)
	}
}

func (t *tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, ctxKey{}, time.Now())
}

func (t *tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	o := t.observer()
	if o == nil {
		return
	}
	if data.Err != nil {
		o.QueryFailed(data.Err)
		return
	}
	if start, ok := ctx.Value(ctxKey{}).(time.Time); ok {
		o.QueryCompleted(time.Since(start))
	}
}
